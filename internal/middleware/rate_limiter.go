package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter throttles per-client request rates. Document uploads are
// the expensive path (disk writes plus a queued OCR job), so they get a
// tighter limiter than general reads.
type RateLimiter struct {
	ipLimiters     map[string]*rate.Limiter
	uploadLimiters map[string]*rate.Limiter
	ipMutex        sync.RWMutex
	uploadMutex    sync.RWMutex
	ipRate         rate.Limit
	uploadRate     rate.Limit
	ipBurst        int
	uploadBurst    int
	cleanupTicker  *time.Ticker
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(ipRequestsPerSecond, uploadsPerMinute float64, ipBurst, uploadBurst int) *RateLimiter {
	limiter := &RateLimiter{
		ipLimiters:     make(map[string]*rate.Limiter),
		uploadLimiters: make(map[string]*rate.Limiter),
		ipRate:         rate.Limit(ipRequestsPerSecond),
		uploadRate:     rate.Limit(uploadsPerMinute / 60),
		ipBurst:        ipBurst,
		uploadBurst:    uploadBurst,
		cleanupTicker:  time.NewTicker(5 * time.Minute),
	}

	go limiter.cleanup()

	return limiter
}

// cleanup periodically drops idle limiters to bound memory
func (rl *RateLimiter) cleanup() {
	for range rl.cleanupTicker.C {
		rl.ipMutex.Lock()
		rl.ipLimiters = make(map[string]*rate.Limiter)
		rl.ipMutex.Unlock()

		rl.uploadMutex.Lock()
		rl.uploadLimiters = make(map[string]*rate.Limiter)
		rl.uploadMutex.Unlock()
	}
}

// Stop stops the rate limiter cleanup
func (rl *RateLimiter) Stop() {
	rl.cleanupTicker.Stop()
}

func (rl *RateLimiter) getIPLimiter(ip string) *rate.Limiter {
	rl.ipMutex.RLock()
	limiter, exists := rl.ipLimiters[ip]
	rl.ipMutex.RUnlock()

	if !exists {
		rl.ipMutex.Lock()
		limiter = rate.NewLimiter(rl.ipRate, rl.ipBurst)
		rl.ipLimiters[ip] = limiter
		rl.ipMutex.Unlock()
	}

	return limiter
}

func (rl *RateLimiter) getUploadLimiter(key string) *rate.Limiter {
	rl.uploadMutex.RLock()
	limiter, exists := rl.uploadLimiters[key]
	rl.uploadMutex.RUnlock()

	if !exists {
		rl.uploadMutex.Lock()
		limiter = rate.NewLimiter(rl.uploadRate, rl.uploadBurst)
		rl.uploadLimiters[key] = limiter
		rl.uploadMutex.Unlock()
	}

	return limiter
}

// IPRateLimiterMiddleware limits requests based on IP address
func (rl *RateLimiter) IPRateLimiterMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		limiter := rl.getIPLimiter(c.ClientIP())

		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// UploadRateLimiterMiddleware limits document submissions. Keyed by the
// authenticated user when present, falling back to the client IP, so one
// uploader cannot flood the processing queue.
func (rl *RateLimiter) UploadRateLimiterMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if userID, exists := c.Get("user_id"); exists {
			key = "user:" + toString(userID)
		}

		limiter := rl.getUploadLimiter(key)
		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "upload rate limit exceeded, try again later",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func toString(v interface{}) string {
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
