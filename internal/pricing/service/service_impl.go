package service

import (
	"strconv"
	"strings"

	"github.com/stayloop/stayloop/internal/config"
	"github.com/stayloop/stayloop/internal/pricing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log    *zap.Logger
	Policy *config.PricingConfigHolder
}

type Service struct {
	log    *zap.Logger
	policy *config.PricingConfigHolder
}

func NewService(p Params) domain.Service {
	return &Service{
		log:    p.Log.Named("pricing.service"),
		policy: p.Policy,
	}
}

// Unit types where capacity is counted per room (falling back to beds)
// rather than parsed from a bedroom label.
var sharedRoomUnitTypes = map[string]struct{}{
	"pg":       {},
	"hostel":   {},
	"coliving": {},
	"shared":   {},
}

func (s *Service) PerPeriodRate(basis domain.RateBasis) int64 {
	cfg := s.policy.Current()

	units := 1
	if _, shared := sharedRoomUnitTypes[strings.ToLower(strings.TrimSpace(basis.UnitType))]; shared {
		switch {
		case basis.Rooms > 0:
			units = basis.Rooms
		case basis.Beds > 0:
			units = basis.Beds
		}
	} else if bedrooms := parseBedroomCount(basis.BedroomLabel); bedrooms > 0 {
		units = bedrooms
	}

	return int64(units) * cfg.PerUnitRate
}

func (s *Service) ComputeSubscriptionCharge(ratePerPeriod int64, periods int, couponCode string) (domain.ChargeBreakdown, error) {
	cfg := s.policy.Current()
	return s.compute(cfg, ratePerPeriod, periods, couponCode, discountTable(cfg.SubscriptionDiscounts), 0)
}

func (s *Service) ComputeLeaseCharge(rentPerPeriod int64, periods int, couponCode string) (domain.ChargeBreakdown, error) {
	cfg := s.policy.Current()
	return s.compute(cfg, rentPerPeriod, periods, couponCode, discountTable(cfg.LeaseDiscounts), cfg.ConvenienceFeeBps)
}

func (s *Service) Currency() string {
	return s.policy.Current().Currency
}

func (s *Service) compute(
	cfg config.PricingConfig,
	ratePerPeriod int64,
	periods int,
	couponCode string,
	discounts map[int]int64,
	feeBps int64,
) (domain.ChargeBreakdown, error) {
	if ratePerPeriod <= 0 {
		return domain.ChargeBreakdown{}, domain.ErrInvalidRate
	}
	discountPercent, ok := discounts[periods]
	if !ok {
		return domain.ChargeBreakdown{}, domain.ErrInvalidDuration
	}

	couponCode = strings.ToUpper(strings.TrimSpace(couponCode))
	var couponPercent int64
	if couponCode != "" {
		couponPercent, ok = couponTable(cfg.Coupons)[couponCode]
		if !ok {
			return domain.ChargeBreakdown{}, domain.ErrInvalidCoupon
		}
	}

	base := ratePerPeriod * int64(periods)
	discounted := roundHalfAway(base*(100-discountPercent), 100)

	afterFee := discounted
	var fee int64
	if feeBps > 0 {
		afterFee = roundHalfAway(discounted*(10000+feeBps), 10000)
		fee = afterFee - discounted
	}

	final := afterFee
	if couponPercent > 0 {
		final = roundHalfAway(final*(100-couponPercent), 100)
	}
	// A full discount still produces a payable order at the smallest unit.
	if final < 1 {
		final = 1
	}

	return domain.ChargeBreakdown{
		Currency:                cfg.Currency,
		RatePerPeriod:           ratePerPeriod,
		Periods:                 periods,
		BaseAmount:              base,
		DurationDiscountPercent: discountPercent,
		DiscountedAmount:        discounted,
		ConvenienceFee:          fee,
		CouponCode:              couponCode,
		CouponPercent:           couponPercent,
		FinalAmount:             final,
		AmountMinorUnits:        final * 100,
	}, nil
}

// roundHalfAway divides num by den rounding half away from zero.
func roundHalfAway(num, den int64) int64 {
	if den == 0 {
		return 0
	}
	neg := (num < 0) != (den < 0)
	if num < 0 {
		num = -num
	}
	if den < 0 {
		den = -den
	}
	q := num / den
	if (num%den)*2 >= den {
		q++
	}
	if neg {
		return -q
	}
	return q
}

func discountTable(entries []config.DurationDiscount) map[int]int64 {
	table := make(map[int]int64, len(entries))
	for _, entry := range entries {
		table[entry.Periods] = entry.Percent
	}
	return table
}

func couponTable(entries []config.Coupon) map[string]int64 {
	table := make(map[string]int64, len(entries))
	for _, entry := range entries {
		table[strings.ToUpper(strings.TrimSpace(entry.Code))] = entry.Percent
	}
	return table
}

// parseBedroomCount extracts the leading bedroom count from labels such as
// "3bhk" or "2 BHK". Returns 0 when the label carries no usable count.
func parseBedroomCount(label string) int {
	label = strings.TrimSpace(label)
	i := 0
	for i < len(label) && label[i] >= '0' && label[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0
	}
	count, err := strconv.Atoi(label[:i])
	if err != nil {
		return 0
	}
	return count
}
