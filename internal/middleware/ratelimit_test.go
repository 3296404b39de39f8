package middleware

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, requests int, window time.Duration) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLimiter(client, requests, window), mr
}

func TestRedisLimiterAllow(t *testing.T) {
	l, mr := newTestLimiter(t, 2, time.Hour)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "user-a")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, "user-a")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Allow(ctx, "user-b")
	require.NoError(t, err)
	assert.True(t, ok, "keys count separately")

	keys := mr.Keys()
	require.Len(t, keys, 2)
	for _, k := range keys {
		assert.True(t, strings.HasPrefix(k, rateLimitKeyPrefix))
		assert.Equal(t, time.Hour, mr.TTL(k))
	}
}

func TestRedisLimiterWindowExpires(t *testing.T) {
	l, mr := newTestLimiter(t, 1, time.Hour)
	ctx := context.Background()

	ok, err := l.Allow(ctx, "user-a")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = l.Allow(ctx, "user-a")
	require.NoError(t, err)
	require.False(t, ok)

	mr.FastForward(time.Hour + time.Second)
	ok, err = l.Allow(ctx, "user-a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLimiterDefaultsNonPositive(t *testing.T) {
	l, _ := newTestLimiter(t, 0, 0)
	assert.Equal(t, DefaultRateLimitRequests, l.requests)
	assert.Equal(t, DefaultRateLimitWindow, l.window)

	ok, err := l.Allow(context.Background(), "user-a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLimiterReportsRedisErrors(t *testing.T) {
	l, mr := newTestLimiter(t, 1, time.Hour)
	mr.SetError("ERR server unavailable")

	_, err := l.Allow(context.Background(), "user-a")
	assert.Error(t, err)
}
