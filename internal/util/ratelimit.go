package util

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimiter throttles calls to an upstream API to a per-minute budget.
// A nil *RateLimiter never blocks.
type RateLimiter struct {
	limiter *rate.Limiter
	name    string
}

// NewRateLimiter creates a RateLimiter that allows perMinute operations per
// minute with a burst of 10% of the budget (at least 1). perMinute <= 0
// returns nil, meaning unlimited.
func NewRateLimiter(name string, perMinute int) *RateLimiter {
	if perMinute <= 0 {
		return nil
	}
	burst := max(1, perMinute/10)
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst),
		name:    name,
	}
}

// Wait blocks until a token is available or the context is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil {
		return nil
	}
	if err := rl.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter %s: %w", rl.name, err)
	}
	return nil
}

// Allow reports whether a call may happen now without blocking.
func (rl *RateLimiter) Allow() bool {
	if rl == nil {
		return true
	}
	return rl.limiter.Allow()
}
