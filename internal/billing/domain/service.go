package domain

import (
	"context"
	"errors"
	"time"

	"github.com/stayloop/stayloop/pkg/db/pagination"
	pricingdomain "github.com/stayloop/stayloop/internal/pricing/domain"
)

var (
	ErrObligationNotFound  = errors.New("obligation_not_found")
	ErrLedgerEntryNotFound = errors.New("ledger_entry_not_found")
	ErrInvalidPaymentData  = errors.New("invalid_payment_data")
	ErrPaymentNotCaptured  = errors.New("payment_not_captured")
	// ErrPaymentNotRecorded signals that the gateway confirmed the payment
	// but the local commit failed; callers retry the apply step only and
	// must never re-charge.
	ErrPaymentNotRecorded = errors.New("payment_not_recorded")
)

// CreateOrderRequest asks for a gateway order covering one or more periods.
type CreateOrderRequest struct {
	ResourceID string `json:"-"`
	Periods    int    `json:"periods"`
	CouponCode string `json:"coupon_code,omitempty"`
}

// CreateOrderResponse returns the gateway order plus the priced breakdown
// the client should present before collecting payment.
type CreateOrderResponse struct {
	OrderID   string                        `json:"order_id"`
	Receipt   string                        `json:"receipt"`
	Breakdown pricingdomain.ChargeBreakdown `json:"breakdown"`
}

// ApplyPaymentRequest carries a verified-payment confirmation from the
// client after gateway checkout completes.
type ApplyPaymentRequest struct {
	ResourceID        string `json:"-"`
	Amount            int64  `json:"amount"`
	PeriodsCovered    int    `json:"periods_covered"`
	ExternalPaymentID string `json:"payment_id"`
	ExternalOrderID   string `json:"order_id"`
	Signature         string `json:"signature"`
}

// Validate enforces the apply-payment preconditions; violations are caller
// errors, never silently clamped.
func (r ApplyPaymentRequest) Validate() error {
	if r.Amount <= 0 || r.PeriodsCovered < 1 {
		return ErrInvalidPaymentData
	}
	if r.ExternalPaymentID == "" || r.ExternalOrderID == "" {
		return ErrInvalidPaymentData
	}
	return nil
}

// ObligationView is a read-only projection of an obligation's billing state.
type ObligationView struct {
	ResourceID        string     `json:"resource_id"`
	RatePerPeriod     int64      `json:"rate_per_period"`
	DueAt             time.Time  `json:"due_at"`
	Status            string     `json:"status"`
	GracePeriodEndsAt *time.Time `json:"grace_period_ends_at,omitempty"`
	SuspendedAt       *time.Time `json:"suspended_at,omitempty"`
	SuspensionReason  string     `json:"suspension_reason,omitempty"`
	LastPaymentAt     *time.Time `json:"last_payment_at,omitempty"`
	TotalPaid         int64      `json:"total_paid"`
	EntryCount        int        `json:"entry_count"`
}

// LedgerEntryView is a read-only copy of one applied payment record.
type LedgerEntryView struct {
	ID                string    `json:"id"`
	Amount            int64     `json:"amount"`
	PeriodsCovered    int       `json:"periods_covered"`
	ExternalPaymentID string    `json:"external_payment_id"`
	ExternalOrderID   string    `json:"external_order_id"`
	AppliedAt         time.Time `json:"applied_at"`
	ValidUntil        time.Time `json:"valid_until"`
	EntryStatus       string    `json:"entry_status"`
}

type ListLedgerRequest struct {
	ResourceID string
	PageToken  string
	PageSize   int32
}

type ListLedgerResponse struct {
	pagination.PageInfo
	Entries []LedgerEntryView `json:"entries"`
}

// ReconcileResult summarizes one sweep pass over an obligation type.
type ReconcileResult struct {
	Scanned     int
	Transitions map[string]int
}

// Service is the recurring obligation tracker for both engines.
type Service interface {
	// Owner-side listing service charges.
	CreateListingOrder(ctx context.Context, req CreateOrderRequest) (CreateOrderResponse, error)
	ApplyListingPayment(ctx context.Context, req ApplyPaymentRequest) (ObligationView, error)
	GetListingObligation(ctx context.Context, listingID string) (ObligationView, error)
	ListListingLedger(ctx context.Context, req ListLedgerRequest) (ListLedgerResponse, error)
	GetListingLedgerEntry(ctx context.Context, listingID, entryID string) (LedgerEntryView, error)

	// Tenant-side rent obligations.
	CreateLeaseOrder(ctx context.Context, req CreateOrderRequest) (CreateOrderResponse, error)
	ApplyLeasePayment(ctx context.Context, req ApplyPaymentRequest) (ObligationView, error)
	GetLeaseObligation(ctx context.Context, leaseID string) (ObligationView, error)
	ListLeaseLedger(ctx context.Context, req ListLedgerRequest) (ListLedgerResponse, error)
	GetLeaseLedgerEntry(ctx context.Context, leaseID, entryID string) (LedgerEntryView, error)

	// Reconciliation, invoked by the sweep and the on-demand endpoint.
	ReconcileListings(ctx context.Context, batchSize int) (ReconcileResult, error)
	ReconcileLeases(ctx context.Context, batchSize int) (ReconcileResult, error)
}
