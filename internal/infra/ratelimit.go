package infra

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket allowing maxTokens requests per window,
// with a burst of maxTokens.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter that refills maxTokens tokens every
// window. A non-positive maxTokens disables limiting.
func NewRateLimiter(maxTokens int, window time.Duration) *RateLimiter {
	if maxTokens <= 0 || window <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	every := window / time.Duration(maxTokens)
	return &RateLimiter{limiter: rate.NewLimiter(rate.Every(every), maxTokens)}
}

// NewRateLimiterPerSecond creates a limiter allowing rps requests per second.
func NewRateLimiterPerSecond(rps float64) *RateLimiter {
	if rps <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.limiter.Wait(ctx)
}

// Allow takes a token if one is available without blocking.
func (rl *RateLimiter) Allow() bool {
	return rl.limiter.Allow()
}
