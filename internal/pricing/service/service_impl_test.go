package service

import (
	"testing"

	"github.com/stayloop/stayloop/internal/config"
	"github.com/stayloop/stayloop/internal/pricing/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T, cfg config.PricingConfig) domain.Service {
	t.Helper()
	return NewService(Params{
		Log:    zap.NewNop(),
		Policy: config.NewStaticPricingConfigHolder(cfg),
	})
}

func TestPerPeriodRate(t *testing.T) {
	svc := newTestService(t, config.DefaultPricingConfig())

	cases := []struct {
		name  string
		basis domain.RateBasis
		want  int64
	}{
		{"apartment by bedroom label", domain.RateBasis{UnitType: "apartment", BedroomLabel: "3bhk"}, 54},
		{"label with spacing", domain.RateBasis{UnitType: "apartment", BedroomLabel: "2 BHK"}, 36},
		{"pg counts rooms", domain.RateBasis{UnitType: "pg", Rooms: 4}, 72},
		{"pg falls back to beds", domain.RateBasis{UnitType: "PG", Beds: 3}, 54},
		{"hostel counts rooms", domain.RateBasis{UnitType: "hostel", Rooms: 10}, 180},
		{"no capacity info floors at one unit", domain.RateBasis{UnitType: "studio"}, 18},
		{"unparseable label floors at one unit", domain.RateBasis{UnitType: "apartment", BedroomLabel: "studio"}, 18},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, svc.PerPeriodRate(tc.basis))
		})
	}
}

func TestComputeSubscriptionCharge(t *testing.T) {
	svc := newTestService(t, config.DefaultPricingConfig())

	breakdown, err := svc.ComputeSubscriptionCharge(20000, 3, "")
	require.NoError(t, err)

	assert.Equal(t, int64(60000), breakdown.BaseAmount)
	assert.Equal(t, int64(13), breakdown.DurationDiscountPercent)
	assert.Equal(t, int64(52200), breakdown.DiscountedAmount)
	assert.Equal(t, int64(0), breakdown.ConvenienceFee)
	assert.Equal(t, int64(52200), breakdown.FinalAmount)
	assert.Equal(t, int64(5220000), breakdown.AmountMinorUnits)
	assert.Equal(t, "INR", breakdown.Currency)
}

func TestComputeSubscriptionChargeWithCoupon(t *testing.T) {
	svc := newTestService(t, config.DefaultPricingConfig())

	breakdown, err := svc.ComputeSubscriptionCharge(20000, 3, "welcome10")
	require.NoError(t, err)

	// Coupon codes are case-insensitive and applied after the duration
	// discount.
	assert.Equal(t, "WELCOME10", breakdown.CouponCode)
	assert.Equal(t, int64(10), breakdown.CouponPercent)
	assert.Equal(t, int64(46980), breakdown.FinalAmount)
}

func TestComputeLeaseChargeAddsConvenienceFee(t *testing.T) {
	svc := newTestService(t, config.DefaultPricingConfig())

	breakdown, err := svc.ComputeLeaseCharge(20000, 3, "")
	require.NoError(t, err)

	assert.Equal(t, int64(60000), breakdown.BaseAmount)
	assert.Equal(t, int64(5), breakdown.DurationDiscountPercent)
	assert.Equal(t, int64(57000), breakdown.DiscountedAmount)
	assert.Equal(t, int64(1539), breakdown.ConvenienceFee)
	assert.Equal(t, int64(58539), breakdown.FinalAmount)
}

func TestComputeChargeValidation(t *testing.T) {
	svc := newTestService(t, config.DefaultPricingConfig())

	_, err := svc.ComputeSubscriptionCharge(20000, 2, "")
	assert.ErrorIs(t, err, domain.ErrInvalidDuration)

	_, err = svc.ComputeSubscriptionCharge(20000, 3, "NOPE")
	assert.ErrorIs(t, err, domain.ErrInvalidCoupon)

	_, err = svc.ComputeSubscriptionCharge(0, 3, "")
	assert.ErrorIs(t, err, domain.ErrInvalidRate)

	_, err = svc.ComputeLeaseCharge(-100, 1, "")
	assert.ErrorIs(t, err, domain.ErrInvalidRate)
}

func TestComputeChargeFloorsAtSmallestUnit(t *testing.T) {
	cfg := config.DefaultPricingConfig()
	cfg.Coupons = append(cfg.Coupons, config.Coupon{Code: "FREEBIE", Percent: 100})
	svc := newTestService(t, cfg)

	breakdown, err := svc.ComputeSubscriptionCharge(20000, 1, "FREEBIE")
	require.NoError(t, err)

	// A 100% coupon still produces a payable order.
	assert.Equal(t, int64(1), breakdown.FinalAmount)
	assert.Equal(t, int64(100), breakdown.AmountMinorUnits)
}

func TestCurrency(t *testing.T) {
	svc := newTestService(t, config.DefaultPricingConfig())
	assert.Equal(t, "INR", svc.Currency())
}
