package security

import (
	"context"
	"time"
)

// RateDecision is the outcome of counting one attempt against a window.
type RateDecision struct {
	Allowed    bool
	Count      int
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter counts attempts per key in a fixed window. Implementations
// must count atomically.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (RateDecision, error)
	Window() time.Duration
}
