package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter is a fixed-window per-key limiter. Webhook bursts from a
// single provider are the main thing it throttles, so keys are scoped
// per provider and client IP rather than globally.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	window  time.Duration
	sweepAt time.Time

	now func() time.Time
}

type bucket struct {
	tokens  int
	resetAt time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Take consumes one token for key. It reports whether the request is
// allowed and how many tokens remain in the current window.
func (rl *RateLimiter) Take(key string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweepLocked(now)

	b, ok := rl.buckets[key]
	if !ok || now.After(b.resetAt) {
		rl.buckets[key] = &bucket{tokens: rl.limit - 1, resetAt: now.Add(rl.window)}
		return true, rl.limit - 1
	}
	if b.tokens > 0 {
		b.tokens--
		return true, b.tokens
	}
	return false, 0
}

// RetryAfter returns how long the caller should wait before the window
// for key resets. Zero when the key has tokens left.
func (rl *RateLimiter) RetryAfter(key string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok || b.tokens > 0 {
		return 0
	}
	wait := b.resetAt.Sub(rl.now())
	if wait < 0 {
		return 0
	}
	return wait
}

// sweepLocked drops buckets whose window has passed, at most once per
// window. Running it inline keeps the limiter goroutine-free.
func (rl *RateLimiter) sweepLocked(now time.Time) {
	if now.Before(rl.sweepAt) {
		return
	}
	for key, b := range rl.buckets {
		if now.After(b.resetAt) {
			delete(rl.buckets, key)
		}
	}
	rl.sweepAt = now.Add(rl.window)
}

// RateLimit throttles by client IP, scoped per provider on webhook
// routes so one platform's burst cannot starve the others.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return RateLimitByKey(limiter, func(c *gin.Context) string {
		if provider := c.Param("provider"); provider != "" {
			return provider + ":" + c.ClientIP()
		}
		return c.ClientIP()
	})
}

// RateLimitByKey throttles using a caller-supplied key extractor.
func RateLimitByKey(limiter *RateLimiter, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)

		allowed, remaining := limiter.Take(key)
		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			retryAfter := limiter.RetryAfter(key)
			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds()+1)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "RATE_LIMIT_EXCEEDED",
					"message": "Too many requests. Please try again later.",
				},
			})
			return
		}
		c.Next()
	}
}
