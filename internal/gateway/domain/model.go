// Package domain defines the payment gateway contract: order creation,
// payment lookup, and checkout signature verification.
package domain

import (
	"context"
	"errors"
)

var (
	ErrInvalidSignature   = errors.New("invalid_signature")
	ErrGatewayUnavailable = errors.New("gateway_unavailable")
	ErrOrderFailed        = errors.New("gateway_order_failed")
	ErrPaymentNotFound    = errors.New("gateway_payment_not_found")
)

// PaymentStatusCaptured is the only payment state that may be applied to an
// obligation; anything else is rejected.
const PaymentStatusCaptured = "captured"

// Order is a gateway-side payment intent created before checkout.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// Payment is the gateway's record of a completed (or attempted) charge.
type Payment struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Method   string `json:"method,omitempty"`
}

// CreateOrderRequest carries the priced charge to the gateway. Amount is in
// minor units.
type CreateOrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

// Client is the outbound gateway port. VerifySignature is pure and never
// touches the network.
type Client interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error)
	FetchPayment(ctx context.Context, paymentID string) (Payment, error)
	VerifySignature(orderID, paymentID, signature string) error
}
