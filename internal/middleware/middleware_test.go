package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type mockValidator struct{ mock.Mock }

func (m *mockValidator) Validate(token string) (uuid.UUID, error) {
	args := m.Called(token)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

type countingLimiter struct {
	limit int
	seen  map[string]int
	err   error
}

func (l *countingLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.seen[key]++
	return l.seen[key] <= l.limit, nil
}

func newRouter(v TokenValidator, l Limiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(JWT(v), RateLimit(l, nil))
	r.GET("/me", func(c *gin.Context) {
		id, _ := UserID(c)
		c.String(http.StatusOK, id.String())
	})
	return r
}

func get(r http.Handler, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWT(t *testing.T) {
	userID := uuid.New()
	v := &mockValidator{}
	v.On("Validate", "good").Return(userID, nil)
	v.On("Validate", "bad").Return(uuid.Nil, errors.New("invalid token"))
	r := newRouter(v, &countingLimiter{limit: 10, seen: map[string]int{}})

	w := get(r, "Bearer good")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID.String(), w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, get(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "Basic good").Code)

	w = get(r, "Bearer bad")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"UNAUTHORIZED"`)
	v.AssertExpectations(t)
}

func TestRateLimitPerUser(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()
	v := &mockValidator{}
	v.On("Validate", "alice").Return(alice, nil)
	v.On("Validate", "bob").Return(bob, nil)
	r := newRouter(v, &countingLimiter{limit: 2, seen: map[string]int{}})

	assert.Equal(t, http.StatusOK, get(r, "Bearer alice").Code)
	assert.Equal(t, http.StatusOK, get(r, "Bearer alice").Code)
	w := get(r, "Bearer alice")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "TOO_MANY_REQUESTS")

	assert.Equal(t, http.StatusOK, get(r, "Bearer bob").Code)
}

func TestRateLimitFailsOpen(t *testing.T) {
	v := &mockValidator{}
	v.On("Validate", "alice").Return(uuid.New(), nil)
	r := newRouter(v, &countingLimiter{err: errors.New("redis down")})
	assert.Equal(t, http.StatusOK, get(r, "Bearer alice").Code)
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS("http://localhost:3000"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoggerRecordsUserAndSkipsHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	userID := uuid.New()

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(ContextUserID, userID) })
	r.Use(Logger(zap.New(core)))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/trpc/studio.getOne", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for _, path := range []string{"/health", "/trpc/studio.getOne"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/trpc/studio.getOne", fields["path"])
	assert.Equal(t, int64(http.StatusNotFound), fields["status"])
	assert.Equal(t, userID.String(), fields["user_id"])
}
