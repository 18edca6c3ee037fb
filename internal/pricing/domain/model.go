// Package domain defines the charge calculator contract: per-period rates
// derived from unit capacity, duration discounts, the tenant-side convenience
// fee and coupon codes.
package domain

// RateBasis carries the capacity attributes a listing's per-period rate is
// derived from.
type RateBasis struct {
	UnitType     string `json:"unit_type"`
	Rooms        int    `json:"rooms"`
	Beds         int    `json:"beds"`
	BedroomLabel string `json:"bedroom_label"`
}

// ChargeBreakdown itemizes how a final charge amount was computed. Amounts
// are whole currency units; AmountMinorUnits is what goes to the gateway.
type ChargeBreakdown struct {
	Currency                string `json:"currency"`
	RatePerPeriod           int64  `json:"rate_per_period"`
	Periods                 int    `json:"periods"`
	BaseAmount              int64  `json:"base_amount"`
	DurationDiscountPercent int64  `json:"duration_discount_percent"`
	DiscountedAmount        int64  `json:"discounted_amount"`
	ConvenienceFee          int64  `json:"convenience_fee"`
	CouponCode              string `json:"coupon_code,omitempty"`
	CouponPercent           int64  `json:"coupon_percent"`
	FinalAmount             int64  `json:"final_amount"`
	AmountMinorUnits        int64  `json:"amount_minor_units"`
}
