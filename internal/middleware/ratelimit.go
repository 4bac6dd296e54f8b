package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kebiao/kebiao/pkg/errors"
	"github.com/kebiao/kebiao/pkg/logger"
)

// RateLimiter 滑动窗口请求频率限制器
type RateLimiter struct {
	requests map[string][]time.Time // key -> 请求时间
	limit    int                    // 时间窗口内最大请求数
	window   time.Duration          // 时间窗口
	now      func() time.Time
	mu       sync.Mutex
}

// NewRateLimiter 创建频率限制器
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Allow 检查是否允许请求
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	valid := rl.prune(rl.requests[key], now.Add(-rl.window))
	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}
	rl.requests[key] = append(valid, now)
	return true
}

func (rl *RateLimiter) prune(reqs []time.Time, windowStart time.Time) []time.Time {
	var valid []time.Time
	for _, t := range reqs {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}
	return valid
}

// Cleanup 清理过期记录
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	windowStart := rl.now().Add(-rl.window)
	for key, reqs := range rl.requests {
		if valid := rl.prune(reqs, windowStart); len(valid) == 0 {
			delete(rl.requests, key)
		} else {
			rl.requests[key] = valid
		}
	}
}

// Run 定期清理，直到 ctx 结束
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Cleanup()
		}
	}
}

// RateLimit 按客户端IP限流
func RateLimit(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.Allow(c.ClientIP()) {
			c.Next()
			return
		}
		logger.WithContext(c.Request.Context()).Warn().
			Str("client_ip", c.ClientIP()).
			Str("path", c.Request.URL.Path).
			Msg("请求频率超限")
		appErr := errors.New(errors.CodeRateLimited, "请求频率超限")
		c.Header("Retry-After", retryAfter(rl.window))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":   true,
			"code":    appErr.Code,
			"message": appErr.Message,
		})
	}
}

func retryAfter(window time.Duration) string {
	secs := int(window / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
