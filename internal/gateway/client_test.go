package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stayloop/stayloop/internal/config"
	"github.com/stayloop/stayloop/internal/gateway/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testKeySecret = "test_secret"

func newTestClient(t *testing.T, baseURL string) domain.Client {
	t.Helper()
	return New(Params{
		Log: zap.NewNop(),
		Cfg: config.Config{
			GatewayBaseURL:   baseURL,
			GatewayKeyID:     "test_key",
			GatewayKeySecret: testKeySecret,
			GatewayTimeout:   2 * time.Second,
		},
	})
}

func signPayload(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(testKeySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	c := newTestClient(t, "http://unused")

	sig := signPayload("order_1", "pay_1")
	assert.NoError(t, c.VerifySignature("order_1", "pay_1", sig))

	// Hex case must not matter.
	assert.NoError(t, c.VerifySignature("order_1", "pay_1", strings.ToUpper(sig)))
}

func TestVerifySignatureRejectsTampering(t *testing.T) {
	c := newTestClient(t, "http://unused")

	sig := signPayload("order_1", "pay_1")
	assert.ErrorIs(t, c.VerifySignature("order_1", "pay_2", sig), domain.ErrInvalidSignature)
	assert.ErrorIs(t, c.VerifySignature("order_2", "pay_1", sig), domain.ErrInvalidSignature)
	assert.ErrorIs(t, c.VerifySignature("order_1", "pay_1", "deadbeef"), domain.ErrInvalidSignature)
	assert.ErrorIs(t, c.VerifySignature("", "pay_1", sig), domain.ErrInvalidSignature)
	assert.ErrorIs(t, c.VerifySignature("order_1", "pay_1", ""), domain.ErrInvalidSignature)
}

func TestCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "test_key", user)
		assert.Equal(t, testKeySecret, pass)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_abc","amount":5220000,"currency":"INR","receipt":"svc_x","status":"created"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	order, err := c.CreateOrder(context.Background(), domain.CreateOrderRequest{
		Amount:   5220000,
		Currency: "INR",
		Receipt:  "svc_x",
	})
	require.NoError(t, err)
	assert.Equal(t, "order_abc", order.ID)
	assert.Equal(t, int64(5220000), order.Amount)
}

func TestCreateOrderErrors(t *testing.T) {
	status := http.StatusInternalServerError
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	_, err := c.CreateOrder(context.Background(), domain.CreateOrderRequest{Amount: 100, Currency: "INR"})
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)

	status = http.StatusBadRequest
	_, err = c.CreateOrder(context.Background(), domain.CreateOrderRequest{Amount: 100, Currency: "INR"})
	assert.ErrorIs(t, err, domain.ErrOrderFailed)
}

func TestCreateOrderUnreachableGateway(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")

	_, err := c.CreateOrder(context.Background(), domain.CreateOrderRequest{Amount: 100, Currency: "INR"})
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}

func TestFetchPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/pay_123", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pay_123","order_id":"order_abc","amount":5220000,"currency":"INR","status":"captured","method":"upi"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	payment, err := c.FetchPayment(context.Background(), "pay_123")
	require.NoError(t, err)
	assert.Equal(t, "pay_123", payment.ID)
	assert.Equal(t, domain.PaymentStatusCaptured, payment.Status)
}

func TestFetchPaymentNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.FetchPayment(context.Background(), "pay_missing")
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(domain.ErrGatewayUnavailable))
	assert.False(t, IsRetryable(domain.ErrOrderFailed))
	assert.False(t, IsRetryable(nil))
}
