package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/swastha-auth/internal/domain/security"
)

// Atomic INCR + PEXPIRE on the first hit. A counter that lost its TTL gets a
// fresh window instead of living forever.
var incrExpireScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if current == 1 or ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// WindowLimiter is a fixed-window counter stored in Redis.
type WindowLimiter struct {
	rdb    *redis.Client
	prefix string
	max    int
	window time.Duration
}

func NewWindowLimiter(rdb *redis.Client, prefix string, max int, window time.Duration) *WindowLimiter {
	return &WindowLimiter{rdb: rdb, prefix: prefix, max: max, window: window}
}

func (l *WindowLimiter) Window() time.Duration { return l.window }

// Allow counts one attempt for key. Errors are returned as-is; callers decide
// whether to fail open or closed.
func (l *WindowLimiter) Allow(ctx context.Context, key string) (security.RateDecision, error) {
	res, err := incrExpireScript.Run(ctx, l.rdb, []string{l.prefix + key}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return security.RateDecision{}, fmt.Errorf("rate window: %w", err)
	}
	if len(res) != 2 {
		return security.RateDecision{}, fmt.Errorf("rate window: unexpected reply %v", res)
	}
	count := int(res[0])
	ttl := time.Duration(res[1]) * time.Millisecond

	d := security.RateDecision{
		Allowed:   count <= l.max,
		Count:     count,
		Limit:     l.max,
		Remaining: l.max - count,
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !d.Allowed {
		d.RetryAfter = ttl
	}
	return d, nil
}

// Reset drops the counter for key.
func (l *WindowLimiter) Reset(ctx context.Context, key string) error {
	return l.rdb.Del(ctx, l.prefix+key).Err()
}

var _ security.RateLimiter = (*WindowLimiter)(nil)
