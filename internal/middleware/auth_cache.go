package middleware

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/persistorai/auditlog/internal/security"
)

const (
	tenantCacheTTL     = 5 * time.Minute
	negativeCacheTTL   = 30 * time.Second
	maxCacheEntries    = 10000
	cacheCleanupPeriod = 60 * time.Second
)

// errCachedNotFound is returned for negative cache hits.
var errCachedNotFound = errors.New("tenant not found (cached)")

// cachedTenant is one lookup result. An empty tenantID records a failed lookup.
type cachedTenant struct {
	tenantID  string
	fetchedAt time.Time
}

func (ct cachedTenant) ttl() time.Duration {
	if ct.tenantID == "" {
		return negativeCacheTTL
	}
	return tenantCacheTTL
}

// CachedTenantLookup wraps a TenantLookup with a bounded in-memory cache keyed
// by key hash, so raw API keys are never held in memory.
type CachedTenantLookup struct {
	inner TenantLookup
	mu    sync.RWMutex
	cache map[string]cachedTenant
	now   func() time.Time
}

// NewCachedTenantLookup creates a caching wrapper around inner. ctx bounds
// the lifetime of the background eviction goroutine.
func NewCachedTenantLookup(ctx context.Context, inner TenantLookup) *CachedTenantLookup {
	c := &CachedTenantLookup{
		inner: inner,
		cache: make(map[string]cachedTenant),
		now:   time.Now,
	}
	go c.evictLoop(ctx)

	return c
}

func (c *CachedTenantLookup) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(cacheCleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			c.evictExpired()
			c.mu.Unlock()
		}
	}
}

// evictExpired drops stale entries. Caller must hold c.mu.
func (c *CachedTenantLookup) evictExpired() {
	now := c.now()
	for k, v := range c.cache {
		if now.Sub(v.fetchedAt) >= v.ttl() {
			delete(c.cache, k)
		}
	}
}

// GetTenantByAPIKey returns a cached tenant ID or delegates to the inner
// lookup. Failed lookups are cached briefly so bad keys cannot hammer the store.
func (c *CachedTenantLookup) GetTenantByAPIKey(ctx context.Context, apiKey string) (string, error) {
	hk := security.HashAPIKey(apiKey)

	c.mu.RLock()
	entry, ok := c.cache[hk]
	c.mu.RUnlock()

	if ok && c.now().Sub(entry.fetchedAt) < entry.ttl() {
		if entry.tenantID == "" {
			return "", errCachedNotFound
		}
		return entry.tenantID, nil
	}

	tenantID, err := c.inner.GetTenantByAPIKey(ctx, apiKey)

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cache) >= maxCacheEntries {
		c.evictExpired()
		for k := range c.cache {
			if len(c.cache) < maxCacheEntries {
				break
			}
			delete(c.cache, k)
		}
	}

	if err != nil {
		c.cache[hk] = cachedTenant{fetchedAt: c.now()}
		return "", err
	}

	c.cache[hk] = cachedTenant{tenantID: tenantID, fetchedAt: c.now()}

	return tenantID, nil
}

// InvalidateTenant drops every cached key of tenantID, so a rotated key stops
// working on this replica immediately.
func (c *CachedTenantLookup) InvalidateTenant(tenantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, v := range c.cache {
		if v.tenantID == tenantID {
			delete(c.cache, k)
		}
	}
}
