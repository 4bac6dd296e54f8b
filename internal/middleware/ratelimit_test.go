package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "不同客户端独立计数")

	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow("a"), "窗口滑过后恢复")
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(1, time.Second)
	now := time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	now = now.Add(2 * time.Second)
	rl.Cleanup()
	assert.Empty(t, rl.requests)
}

func TestRateLimit(t *testing.T) {
	r := newEngine(RateLimit(NewRateLimiter(1, 30*time.Second)))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")
}
