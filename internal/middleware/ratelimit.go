package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/newtube/backend/pkg/response"
)

const rateLimitKeyPrefix = "ratelimit:"

// Used when NewRedisLimiter is given a non-positive limit or window.
const (
	DefaultRateLimitRequests = 50
	DefaultRateLimitWindow   = 10 * time.Second
)

// Limiter counts requests per key in fixed windows.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter is a fixed-window counter on Redis INCR + EXPIRE.
type RedisLimiter struct {
	client   *redis.Client
	requests int
	window   time.Duration
}

// NewRedisLimiter allows requests per window for each key.
func NewRedisLimiter(client *redis.Client, requests int, window time.Duration) *RedisLimiter {
	if requests <= 0 {
		requests = DefaultRateLimitRequests
	}
	if window <= 0 {
		window = DefaultRateLimitWindow
	}
	return &RedisLimiter{client: client, requests: requests, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	bucket := time.Now().UnixNano() / int64(l.window)
	k := fmt.Sprintf("%s%s:%d", rateLimitKeyPrefix, key, bucket)
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= int64(l.requests), nil
}

// RateLimit rejects requests once the authenticated user exhausts the window.
// Runs after JWT. Limiter errors let the request through.
func RateLimit(limiter Limiter, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			c.Next()
			return
		}
		allowed, err := limiter.Allow(c.Request.Context(), userID.String())
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			response.TooManyRequests(c, "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}
