// Package middleware provides HTTP middleware for the audit log API.
package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// maxBuckets is the maximum number of tracked IPs to prevent memory exhaustion.
const maxBuckets = 100_000

// RateLimiter is a per-IP token bucket limiter.
type RateLimiter struct {
	buckets map[string]*tokenBucket
	mu      sync.Mutex
	rate    float64
	burst   float64
	now     func() time.Time
}

// tokenBucket holds fractional tokens so low rates still refill smoothly.
type tokenBucket struct {
	tokens   float64
	lastFill time.Time
}

// take refills the bucket and consumes one token. When empty it reports how
// long until the next token is available.
func (b *tokenBucket) take(now time.Time, rate, burst float64) (bool, time.Duration) {
	b.tokens = math.Min(burst, b.tokens+now.Sub(b.lastFill).Seconds()*rate)
	b.lastFill = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}

	wait := time.Duration((1 - b.tokens) / rate * float64(time.Second))

	return false, wait
}

// NewRateLimiter creates a RateLimiter with the given requests per second and
// burst size. Stale buckets are evicted by a goroutine that stops with ctx.
func NewRateLimiter(ctx context.Context, ratePerSec, burst int) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*tokenBucket),
		rate:    float64(ratePerSec),
		burst:   float64(burst),
		now:     time.Now,
	}
	go rl.startCleanup(ctx)

	return rl
}

func (rl *RateLimiter) startCleanup(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	const maxAge = 10 * time.Minute

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := rl.now()
			rl.mu.Lock()
			for ip, b := range rl.buckets {
				if now.Sub(b.lastFill) > maxAge {
					delete(rl.buckets, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// allow reports whether key may proceed and, if not, how long to wait.
func (rl *RateLimiter) allow(key string) (bool, time.Duration, bool) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		if len(rl.buckets) >= maxBuckets {
			return false, time.Second, false
		}

		b = &tokenBucket{tokens: rl.burst, lastFill: now}
		rl.buckets[key] = b
	}

	allowed, wait := b.take(now, rl.rate, rl.burst)

	return allowed, wait, true
}

// Handler returns Gin middleware that applies rate limiting per client IP.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// SetTrustedProxies(nil) in the router keeps ClientIP from trusting
		// X-Forwarded-For.
		allowed, wait, tracked := rl.allow(c.ClientIP())
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))

			msg := "rate limit exceeded"
			if !tracked {
				msg = "too many clients"
			}

			respondError(c, http.StatusTooManyRequests, "rate_limited", msg)

			return
		}

		c.Next()
	}
}

// retryAfterSeconds rounds d up to whole seconds, minimum one.
func retryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
