package security

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

// newTestGuard returns a guard whose clock is controlled by the returned pointer.
func newTestGuard(t *testing.T) (*BruteForceGuard, *time.Time) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := NewBruteForceGuard(ctx, log)
	g.now = func() time.Time { return clock }

	return g, &clock
}

func TestBruteForce_SuccessfulAuthResetsCount(t *testing.T) {
	t.Parallel()

	guard, _ := newTestGuard(t)

	guard.RecordFailure("key1")
	guard.RecordFailure("key1")
	guard.ResetKey("key1")

	if guard.IsBlocked("key1") {
		t.Fatal("key should not be blocked after reset")
	}
}

func TestBruteForce_FailureIncrementsAndBlocks(t *testing.T) {
	t.Parallel()

	guard, _ := newTestGuard(t)

	for range BruteForceMaxAttempts {
		guard.RecordFailure("badkey")
	}

	if !guard.IsBlocked("badkey") {
		t.Fatal("key should be blocked after max failures")
	}

	if guard.IsBlocked("otherkey") {
		t.Fatal("unrelated key should not be blocked")
	}
}

func TestBruteForce_NotBlockedBeforeMax(t *testing.T) {
	t.Parallel()

	guard, _ := newTestGuard(t)

	for range BruteForceMaxAttempts - 1 {
		guard.RecordFailure("almostbad")
	}

	if guard.IsBlocked("almostbad") {
		t.Fatal("key should not be blocked before max failures")
	}
}

func TestBruteForce_LockoutExpires(t *testing.T) {
	t.Parallel()

	guard, clock := newTestGuard(t)

	for range BruteForceMaxAttempts {
		guard.RecordFailure("badkey")
	}

	*clock = clock.Add(BruteForceLockout + time.Second)

	if guard.IsBlocked("badkey") {
		t.Fatal("lockout should expire")
	}
}

func TestBruteForce_WindowResetsAttempts(t *testing.T) {
	t.Parallel()

	guard, clock := newTestGuard(t)

	for range BruteForceMaxAttempts - 1 {
		guard.RecordFailure("slow")
	}

	*clock = clock.Add(BruteForceWindow + time.Second)
	guard.RecordFailure("slow")

	if guard.IsBlocked("slow") {
		t.Fatal("failures outside the window should not accumulate")
	}
}

func TestBruteForce_SweepDropsExpired(t *testing.T) {
	t.Parallel()

	guard, clock := newTestGuard(t)

	guard.RecordFailure("a")
	*clock = clock.Add(BruteForceWindow)
	guard.RecordFailure("b")
	guard.sweep()

	guard.mu.Lock()
	defer guard.mu.Unlock()

	if len(guard.records) != 1 {
		t.Fatalf("records = %d, want 1", len(guard.records))
	}

	if _, ok := guard.records[HashAPIKey("b")]; !ok {
		t.Fatal("fresh record was swept")
	}
}

func TestBruteForce_EvictOldest(t *testing.T) {
	t.Parallel()

	guard, clock := newTestGuard(t)

	for _, k := range []string{"first", "second", "third"} {
		guard.RecordFailure(k)
		*clock = clock.Add(time.Second)
	}

	guard.mu.Lock()
	guard.evictOldest(2)
	_, ok := guard.records[HashAPIKey("third")]
	n := len(guard.records)
	guard.mu.Unlock()

	if n != 1 || !ok {
		t.Fatalf("after eviction: %d records, newest kept = %v", n, ok)
	}
}
