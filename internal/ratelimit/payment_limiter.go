// Package ratelimit provides the redis-backed token bucket guarding the
// payment endpoints and the distributed lock used by the sweep.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/stayloop/stayloop/internal/config"
)

const keyPaymentResource = "payments:apply:%s"

// PaymentLimiter throttles apply-payment requests per obligation so a
// misbehaving client cannot hammer the gateway verification path.
type PaymentLimiter struct {
	enabled bool

	bucket *TokenBucket

	rate  float64
	burst int
}

func NewPaymentLimiter(cfg config.Config, client *redis.Client) (*PaymentLimiter, error) {
	if !cfg.PaymentRateLimitEnabled {
		return nil, nil
	}
	if client == nil {
		return nil, errors.New("payment rate limit requires redis")
	}
	if cfg.PaymentRateLimitRate <= 0 || cfg.PaymentRateLimitBurst <= 0 {
		return nil, errors.New("payment rate limit must be positive")
	}

	return &PaymentLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    cfg.PaymentRateLimitRate,
		burst:   cfg.PaymentRateLimitBurst,
	}, nil
}

func (l *PaymentLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *PaymentLimiter) Allow(ctx context.Context, resourceID string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyPaymentResource, strings.TrimSpace(resourceID))
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}
