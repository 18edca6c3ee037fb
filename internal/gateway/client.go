// Package gateway implements the Razorpay-style checkout client: basic-auth
// REST calls for orders and payments, HMAC-SHA256 over
// "orderId|paymentId" for checkout verification.
package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/stayloop/stayloop/internal/config"
	"github.com/stayloop/stayloop/internal/gateway/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log *zap.Logger
	Cfg config.Config
}

type client struct {
	log       *zap.Logger
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
}

func New(p Params) domain.Client {
	return &client{
		log:       p.Log.Named("gateway.client"),
		baseURL:   strings.TrimRight(p.Cfg.GatewayBaseURL, "/"),
		keyID:     p.Cfg.GatewayKeyID,
		keySecret: p.Cfg.GatewayKeySecret,
		http:      &http.Client{Timeout: p.Cfg.GatewayTimeout},
	}
}

type orderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

func (c *client) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.Order, error) {
	payload, err := json.Marshal(orderRequest{
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	})
	if err != nil {
		return domain.Order{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(payload))
	if err != nil {
		return domain.Order{}, err
	}
	httpReq.SetBasicAuth(c.keyID, c.keySecret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.log.Warn("gateway order request failed", zap.Error(err))
		return domain.Order{}, domain.ErrGatewayUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return domain.Order{}, domain.ErrGatewayUnavailable
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return domain.Order{}, fmt.Errorf("%w: status %d", domain.ErrOrderFailed, resp.StatusCode)
	}

	var order domain.Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (c *client) FetchPayment(ctx context.Context, paymentID string) (domain.Payment, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/payments/"+url.PathEscape(paymentID), nil)
	if err != nil {
		return domain.Payment{}, err
	}
	httpReq.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.log.Warn("gateway payment lookup failed", zap.Error(err))
		return domain.Payment{}, domain.ErrGatewayUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return domain.Payment{}, domain.ErrGatewayUnavailable
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return domain.Payment{}, fmt.Errorf("%w: status %d", domain.ErrPaymentNotFound, resp.StatusCode)
	}

	var payment domain.Payment
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return domain.Payment{}, err
	}
	return payment, nil
}

// VerifySignature checks the checkout callback signature:
// hex(HMAC-SHA256(keySecret, orderId + "|" + paymentId)).
func (c *client) VerifySignature(orderID, paymentID, signature string) error {
	if orderID == "" || paymentID == "" || signature == "" {
		return domain.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))

	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(signature))) != 1 {
		return domain.ErrInvalidSignature
	}
	return nil
}

// IsRetryable reports whether the caller may safely retry the gateway call.
func IsRetryable(err error) bool {
	return errors.Is(err, domain.ErrGatewayUnavailable)
}
