package domain

import "errors"

var (
	ErrInvalidDuration = errors.New("invalid_duration")
	ErrInvalidCoupon   = errors.New("invalid_coupon")
	ErrInvalidRate     = errors.New("invalid_rate")
)

// Service computes charge amounts for both obligation types.
type Service interface {
	// PerPeriodRate derives a listing's service charge per billing period
	// from its declared capacity, floored at one per-unit rate.
	PerPeriodRate(basis RateBasis) int64

	// ComputeSubscriptionCharge prices an owner-side service charge.
	ComputeSubscriptionCharge(ratePerPeriod int64, periods int, couponCode string) (ChargeBreakdown, error)

	// ComputeLeaseCharge prices a tenant-side rent charge, including the
	// convenience fee applied after the duration discount.
	ComputeLeaseCharge(rentPerPeriod int64, periods int, couponCode string) (ChargeBreakdown, error)

	// Currency returns the active policy currency code.
	Currency() string
}
