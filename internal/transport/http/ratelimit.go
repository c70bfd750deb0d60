package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// rateLimiter is a fixed-window request counter. A limit of zero disables it.
type rateLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	counter int
	reset   time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &rateLimiter{limit: limit, window: window}
}

func (r *rateLimiter) allow(now time.Time) bool {
	if r == nil || r.limit <= 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !now.Before(r.reset) {
		r.counter = 0
		r.reset = now.Add(r.window)
	}
	r.counter++
	return r.counter <= r.limit
}

// rateLimitMiddleware guards the credential endpoints against brute force.
func rateLimitMiddleware(limiter *rateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.allow(time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many requests"})
			return
		}
		c.Next()
	}
}
