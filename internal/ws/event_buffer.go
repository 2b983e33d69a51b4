package ws

import (
	"sort"
	"sync"
	"time"
)

const (
	defaultBufferMaxLen = 1000
	defaultBufferMaxAge = time.Hour
	bufferSweepInterval = 10 * time.Minute
)

// EventBuffer keeps each tenant's recent events so reconnecting clients can
// catch up without a full reload.
type EventBuffer struct {
	mu     sync.RWMutex
	events map[string][]Event
	maxAge time.Duration
	maxLen int
	stop   chan struct{}
	once   sync.Once
	now    func() time.Time
}

// NewEventBuffer creates an EventBuffer and starts its sweeper. Call Stop to
// end it.
func NewEventBuffer(maxLen int, maxAge time.Duration) *EventBuffer {
	eb := &EventBuffer{
		events: make(map[string][]Event),
		maxAge: maxAge,
		maxLen: maxLen,
		stop:   make(chan struct{}),
		now:    time.Now,
	}
	go eb.sweepLoop()

	return eb
}

// Stop ends the sweeper. It is safe to call more than once.
func (eb *EventBuffer) Stop() {
	eb.once.Do(func() { close(eb.stop) })
}

func (eb *EventBuffer) sweepLoop() {
	ticker := time.NewTicker(bufferSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-eb.stop:
			return
		case <-ticker.C:
			eb.sweep()
		}
	}
}

// sweep forgets tenants whose newest event has expired.
func (eb *EventBuffer) sweep() {
	cutoff := eb.now().Add(-eb.maxAge)

	eb.mu.Lock()
	defer eb.mu.Unlock()

	for tenant, buf := range eb.events {
		if len(buf) == 0 || buf[len(buf)-1].Time.Before(cutoff) {
			delete(eb.events, tenant)
		}
	}
}

// Append stores evt, dropping expired events and anything beyond maxLen.
func (eb *EventBuffer) Append(tenantID string, evt *Event) {
	cutoff := eb.now().Add(-eb.maxAge)

	eb.mu.Lock()
	defer eb.mu.Unlock()

	buf := eb.events[tenantID]

	start := 0
	for start < len(buf) && buf[start].Time.Before(cutoff) {
		start++
	}

	buf = append(buf[start:], *evt)
	if len(buf) > eb.maxLen {
		buf = buf[len(buf)-eb.maxLen:]
	}

	eb.events[tenantID] = buf
}

// Since returns a copy of the tenant's events with ID > lastEventID.
func (eb *EventBuffer) Since(tenantID string, lastEventID uint64) []Event {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	buf := eb.events[tenantID]

	i := sort.Search(len(buf), func(i int) bool { return buf[i].ID > lastEventID })
	if i >= len(buf) {
		return nil
	}

	out := make([]Event, len(buf)-i)
	copy(out, buf[i:])

	return out
}

// OldestID returns the oldest buffered ID for tenantID, or 0 when empty.
func (eb *EventBuffer) OldestID(tenantID string) uint64 {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if buf := eb.events[tenantID]; len(buf) > 0 {
		return buf[0].ID
	}

	return 0
}
