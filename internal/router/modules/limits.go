package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/swastha-auth/internal/infrastructure/redisstore"
	"github.com/oksasatya/swastha-auth/internal/interface/middleware"
)

// RouteLimits builds per-route rate-limit middleware backed by Redis.
// A nil Redis client disables limiting.
type RouteLimits struct {
	Redis  *redis.Client
	Logger *logrus.Logger
}

// Per limits requests to max per window. Each name gets its own Redis
// namespace (rl:<name>:) so limiters sharing a key function keep separate
// counters.
func (l RouteLimits) Per(name string, max int, window time.Duration, key middleware.KeyFunc) gin.HandlerFunc {
	if l.Redis == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.RateLimit(redisstore.NewWindowLimiter(l.Redis, "rl:"+name+":", max, window), key, l.Logger)
}
