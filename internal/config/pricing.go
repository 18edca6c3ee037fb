package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// DurationDiscount is a percentage off for paying several periods at once.
type DurationDiscount struct {
	Periods int   `mapstructure:"periods"`
	Percent int64 `mapstructure:"percent"`
}

// Coupon is a fixed percentage discount redeemable by code.
type Coupon struct {
	Code    string `mapstructure:"code"`
	Percent int64  `mapstructure:"percent"`
}

// PricingConfig carries the discount policy injected into the charge
// calculator. It is loaded once at startup and hot-reloaded on file change.
type PricingConfig struct {
	Currency              string             `mapstructure:"currency"`
	PerUnitRate           int64              `mapstructure:"perUnitRate"`
	ConvenienceFeeBps     int64              `mapstructure:"convenienceFeeBps"`
	SubscriptionDiscounts []DurationDiscount `mapstructure:"subscriptionDiscounts"`
	LeaseDiscounts        []DurationDiscount `mapstructure:"leaseDiscounts"`
	Coupons               []Coupon           `mapstructure:"coupons"`
}

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		Currency:          "INR",
		PerUnitRate:       18,
		ConvenienceFeeBps: 270,
		SubscriptionDiscounts: []DurationDiscount{
			{Periods: 1, Percent: 0},
			{Periods: 3, Percent: 13},
			{Periods: 6, Percent: 20},
			{Periods: 12, Percent: 25},
		},
		LeaseDiscounts: []DurationDiscount{
			{Periods: 1, Percent: 0},
			{Periods: 3, Percent: 5},
			{Periods: 6, Percent: 10},
			{Periods: 12, Percent: 15},
		},
		Coupons: []Coupon{
			{Code: "WELCOME10", Percent: 10},
			{Code: "STAY25", Percent: 25},
		},
	}
}

type PricingConfigHolder struct {
	current atomic.Value // holds PricingConfig
}

func NewPricingConfigHolder() (*PricingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/stayloop/config")
	v.AddConfigPath("/etc/stayloop")
	v.AddConfigPath(".")

	v.SetEnvPrefix("STAYLOOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultPricingConfig()
		v.SetDefault("pricing.currency", defaults.Currency)
		v.SetDefault("pricing.perUnitRate", defaults.PerUnitRate)
		v.SetDefault("pricing.convenienceFeeBps", defaults.ConvenienceFeeBps)
		v.SetDefault("pricing.subscriptionDiscounts", defaults.SubscriptionDiscounts)
		v.SetDefault("pricing.leaseDiscounts", defaults.LeaseDiscounts)
		v.SetDefault("pricing.coupons", defaults.Coupons)
	}

	holder := &PricingConfigHolder{}
	cfg, err := unmarshalPricing(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(cfg)

	v.OnConfigChange(func(_ fsnotify.Event) {
		updated, err := unmarshalPricing(v)
		if err != nil {
			log.Printf("pricing config reload failed: %v", err)
			return
		}
		holder.current.Store(updated)
	})
	v.WatchConfig()

	return holder, nil
}

// NewStaticPricingConfigHolder wraps a fixed policy without file watching.
func NewStaticPricingConfigHolder(cfg PricingConfig) *PricingConfigHolder {
	holder := &PricingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

// Current returns the active pricing policy snapshot.
func (h *PricingConfigHolder) Current() PricingConfig {
	cfg, _ := h.current.Load().(PricingConfig)
	return cfg
}

func unmarshalPricing(v *viper.Viper) (PricingConfig, error) {
	var cfg PricingConfig
	if err := v.UnmarshalKey("pricing", &cfg); err != nil {
		return PricingConfig{}, err
	}
	if err := validatePricing(cfg); err != nil {
		return PricingConfig{}, err
	}
	return cfg, nil
}

func validatePricing(cfg PricingConfig) error {
	if cfg.PerUnitRate <= 0 {
		return errors.New("pricing.perUnitRate must be positive")
	}
	if cfg.ConvenienceFeeBps < 0 {
		return errors.New("pricing.convenienceFeeBps must not be negative")
	}
	if len(cfg.SubscriptionDiscounts) == 0 || len(cfg.LeaseDiscounts) == 0 {
		return errors.New("pricing discount tables must not be empty")
	}
	for _, d := range append(append([]DurationDiscount{}, cfg.SubscriptionDiscounts...), cfg.LeaseDiscounts...) {
		if d.Periods < 1 || d.Percent < 0 || d.Percent > 100 {
			return errors.New("pricing discount entries must have periods >= 1 and percent in [0,100]")
		}
	}
	for _, c := range cfg.Coupons {
		if strings.TrimSpace(c.Code) == "" || c.Percent < 0 || c.Percent > 100 {
			return errors.New("pricing coupons must have a code and percent in [0,100]")
		}
	}
	return nil
}
