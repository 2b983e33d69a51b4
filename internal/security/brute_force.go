package security

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Default brute-force limits.
const (
	BruteForceMaxAttempts = 5
	BruteForceWindow      = 15 * time.Minute
	BruteForceLockout     = 5 * time.Minute
	bruteForceCleanup     = 60 * time.Second
	bruteForceMaxRecords  = 10000
)

type failureRecord struct {
	attempts  int
	firstFail time.Time
	lockedAt  time.Time
}

// BruteForceGuard tracks authentication failures per credential hash and
// locks a credential out after too many failures within the window.
type BruteForceGuard struct {
	mu          sync.Mutex
	records     map[string]*failureRecord
	maxAttempts int
	window      time.Duration
	lockout     time.Duration
	log         *logrus.Logger
	now         func() time.Time
}

// NewBruteForceGuard creates a guard with the default limits and starts a
// cleanup goroutine that stops when ctx is cancelled.
func NewBruteForceGuard(ctx context.Context, log *logrus.Logger) *BruteForceGuard {
	g := &BruteForceGuard{
		records:     make(map[string]*failureRecord),
		maxAttempts: BruteForceMaxAttempts,
		window:      BruteForceWindow,
		lockout:     BruteForceLockout,
		log:         log,
		now:         time.Now,
	}
	go g.cleanupLoop(ctx)

	return g
}

// IsBlocked reports whether credential is currently locked out.
func (g *BruteForceGuard) IsBlocked(credential string) bool {
	kh := HashAPIKey(credential)

	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[kh]
	if !ok || rec.lockedAt.IsZero() {
		return false
	}

	return g.now().Sub(rec.lockedAt) < g.lockout
}

// RecordFailure counts a failed authentication attempt for credential.
func (g *BruteForceGuard) RecordFailure(credential string) {
	kh := HashAPIKey(credential)
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[kh]
	if !ok || now.Sub(rec.firstFail) > g.window {
		g.records[kh] = &failureRecord{attempts: 1, firstFail: now}
		return
	}

	rec.attempts++
	if rec.attempts >= g.maxAttempts && rec.lockedAt.IsZero() {
		rec.lockedAt = now
		g.log.WithField("key_hash", kh[:16]+"...").Warn("credential locked out after repeated auth failures")
	}
}

// ResetKey clears failure tracking for credential after a successful login.
func (g *BruteForceGuard) ResetKey(credential string) {
	kh := HashAPIKey(credential)

	g.mu.Lock()
	delete(g.records, kh)
	g.mu.Unlock()
}

func (g *BruteForceGuard) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(bruteForceCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.sweep()
		}
	}
}

// sweep drops expired records and trims the table to bruteForceMaxRecords.
func (g *BruteForceGuard) sweep() {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	for k, rec := range g.records {
		locked := !rec.lockedAt.IsZero()
		if (locked && now.Sub(rec.lockedAt) >= g.lockout) || (!locked && now.Sub(rec.firstFail) >= g.window) {
			delete(g.records, k)
		}
	}

	if extra := len(g.records) - bruteForceMaxRecords; extra > 0 {
		g.evictOldest(extra)
	}
}

// evictOldest removes the n records with the oldest first failure.
// Caller must hold g.mu.
func (g *BruteForceGuard) evictOldest(n int) {
	keys := make([]string, 0, len(g.records))
	for k := range g.records {
		keys = append(keys, k)
	}

	slices.SortFunc(keys, func(a, b string) int {
		return g.records[a].firstFail.Compare(g.records[b].firstFail)
	})

	for _, k := range keys[:n] {
		delete(g.records, k)
	}
}
