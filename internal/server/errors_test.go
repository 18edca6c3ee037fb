package server

import (
	"fmt"
	"net/http"
	"testing"

	billingdomain "github.com/stayloop/stayloop/internal/billing/domain"
	gatewaydomain "github.com/stayloop/stayloop/internal/gateway/domain"
	leasedomain "github.com/stayloop/stayloop/internal/lease/domain"
	listingdomain "github.com/stayloop/stayloop/internal/listing/domain"
	pricingdomain "github.com/stayloop/stayloop/internal/pricing/domain"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"invalid signature", gatewaydomain.ErrInvalidSignature, http.StatusBadRequest, "invalid_signature"},
		{"payment not captured", billingdomain.ErrPaymentNotCaptured, http.StatusConflict, "payment_not_captured"},
		{"payment not recorded", billingdomain.ErrPaymentNotRecorded, http.StatusBadGateway, "payment_not_recorded"},
		{"wrapped payment not recorded", fmt.Errorf("%w: tx failed", billingdomain.ErrPaymentNotRecorded), http.StatusBadGateway, "payment_not_recorded"},
		{"gateway down", gatewaydomain.ErrGatewayUnavailable, http.StatusServiceUnavailable, "gateway_unavailable"},
		{"order rejected", gatewaydomain.ErrOrderFailed, http.StatusBadGateway, "gateway_order_failed"},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{"listing missing", listingdomain.ErrNotFound, http.StatusNotFound, "not_found"},
		{"lease missing", leasedomain.ErrNotFound, http.StatusNotFound, "not_found"},
		{"obligation missing", billingdomain.ErrObligationNotFound, http.StatusNotFound, "not_found"},
		{"ledger entry missing", billingdomain.ErrLedgerEntryNotFound, http.StatusNotFound, "not_found"},
		{"invalid duration", pricingdomain.ErrInvalidDuration, http.StatusBadRequest, "validation_error"},
		{"invalid coupon", pricingdomain.ErrInvalidCoupon, http.StatusBadRequest, "validation_error"},
		{"invalid payment data", billingdomain.ErrInvalidPaymentData, http.StatusBadRequest, "validation_error"},
		{"invalid owner", listingdomain.ErrInvalidOwner, http.StatusBadRequest, "validation_error"},
		{"unknown error", fmt.Errorf("something odd"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantType, payload.Type)
		})
	}
}

func TestMapErrorValidationPayload(t *testing.T) {
	status, payload := mapError(invalidRequestError())
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", payload.Type)
	assert.Len(t, payload.Errors, 1)
	assert.Equal(t, "request", payload.Errors[0].Field)
}

func TestClassifyErrorForLog(t *testing.T) {
	kind, code := classifyErrorForLog(billingdomain.ErrPaymentNotRecorded)
	assert.Equal(t, "server_error", kind)
	assert.Equal(t, "payment_not_recorded", code)

	kind, code = classifyErrorForLog(gatewaydomain.ErrInvalidSignature)
	assert.Equal(t, "client_error", kind)
	assert.Equal(t, "invalid_signature", code)

	kind, _ = classifyErrorForLog(nil)
	assert.Empty(t, kind)
}
