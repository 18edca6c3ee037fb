// Package pdf renders payment receipts for ledger entries.
package pdf

import (
	"context"
	"io"
)

// ReceiptLine is one charge component on a receipt.
type ReceiptLine struct {
	Description string
	Amount      string
}

// ReceiptData carries everything the receipt layout needs, preformatted.
type ReceiptData struct {
	ReceiptNumber string
	PaidAt        string
	ResourceTitle string
	ResourceID    string
	PeriodCovered string
	PaymentID     string
	Lines         []ReceiptLine
	Total         string
}

type Provider interface {
	GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error)
}
