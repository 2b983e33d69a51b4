package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Default per-tenant limit on log endpoints.
const (
	DefaultTenantRequests = 100
	DefaultTenantWindow   = 15 * time.Minute
)

// RateLimitConfig is a fixed-window limit.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Validate checks that both fields are positive.
func (c RateLimitConfig) Validate() error {
	if c.Requests <= 0 {
		return fmt.Errorf("rate limit requests must be > 0 (got %d)", c.Requests)
	}
	if c.Window <= 0 {
		return fmt.Errorf("rate limit window must be > 0 (got %s)", c.Window)
	}
	return nil
}

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateLimitStore keeps fixed-window counters.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, cfg RateLimitConfig) (Decision, error)
}

type windowCounter struct {
	count     int
	windowEnd time.Time
}

// MemoryRateLimitStore is a process-local RateLimitStore.
type MemoryRateLimitStore struct {
	mu       sync.Mutex
	counters map[string]*windowCounter
	now      func() time.Time
}

// NewMemoryRateLimitStore creates a MemoryRateLimitStore. Expired windows are
// swept by a goroutine that stops with ctx.
func NewMemoryRateLimitStore(ctx context.Context) *MemoryRateLimitStore {
	s := &MemoryRateLimitStore{
		counters: make(map[string]*windowCounter),
		now:      time.Now,
	}
	go s.cleanupLoop(ctx)

	return s
}

// Allow implements RateLimitStore.
func (s *MemoryRateLimitStore) Allow(_ context.Context, key string, cfg RateLimitConfig) (Decision, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.counters[key]
	if !ok || !now.Before(w.windowEnd) {
		w = &windowCounter{windowEnd: now.Add(cfg.Window)}
		s.counters[key] = w
	}

	if w.count >= cfg.Requests {
		return Decision{RetryAfter: w.windowEnd.Sub(now)}, nil
	}

	w.count++

	return Decision{Allowed: true, Remaining: cfg.Requests - w.count}, nil
}

func (s *MemoryRateLimitStore) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := s.now()
			s.mu.Lock()
			for k, w := range s.counters {
				if !now.Before(w.windowEnd) {
					delete(s.counters, k)
				}
			}
			s.mu.Unlock()
		}
	}
}

// RedisRateLimitStore shares counters across replicas with INCR and PEXPIRE.
type RedisRateLimitStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisRateLimitStore creates a RedisRateLimitStore.
func NewRedisRateLimitStore(client redis.Cmdable) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client, prefix: "auditlog:ratelimit:"}
}

// Allow implements RateLimitStore.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, cfg RateLimitConfig) (Decision, error) {
	k := s.prefix + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	ttl := pipe.PTTL(ctx, k)

	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit counter: %w", err)
	}

	remainingTTL := ttl.Val()

	// A fresh key, or one that lost its expiry, starts a new window.
	if incr.Val() == 1 || remainingTTL < 0 {
		if err := s.client.PExpire(ctx, k, cfg.Window).Err(); err != nil {
			return Decision{}, fmt.Errorf("rate limit expiry: %w", err)
		}
		remainingTTL = cfg.Window
	}

	count := int(incr.Val())
	if count > cfg.Requests {
		return Decision{RetryAfter: remainingTTL}, nil
	}

	return Decision{Allowed: true, Remaining: cfg.Requests - count}, nil
}

// TenantRateLimit limits requests per authenticated tenant. It must run after
// Authenticator. Store errors fail open.
func TenantRateLimit(store RateLimitStore, cfg RateLimitConfig, log *logrus.Logger) gin.HandlerFunc {
	limit := strconv.Itoa(cfg.Requests)

	return func(c *gin.Context) {
		tenantID := c.GetString(TenantIDKey)
		if tenantID == "" {
			c.Next()
			return
		}

		d, err := store.Allow(c.Request.Context(), "tenant:"+tenantID, cfg)
		if err != nil {
			log.WithError(err).WithField("tenant_id", tenantID).Warn("tenant rate limit unavailable")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", limit)
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

		if !d.Allowed {
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(d.RetryAfter)))
			respondError(c, http.StatusTooManyRequests, "rate_limited", "tenant rate limit exceeded")
			return
		}

		c.Next()
	}
}
