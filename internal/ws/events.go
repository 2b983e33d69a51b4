package ws

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Control message types exchanged with live-tail clients.
const (
	MsgSubscribe = "subscribe"
	MsgReset     = "reset"
	MsgShutdown  = "shutdown"
)

// Event is one live-tail frame. IDs increase per tenant.
type Event struct {
	Type     string          `json:"type"`
	ID       uint64          `json:"id"`
	TenantID string          `json:"-"`
	Data     json.RawMessage `json:"data"`
	Time     time.Time       `json:"time"`
}

// SubscribeMsg asks the server to replay events after LastEventID.
type SubscribeMsg struct {
	Type        string `json:"type"`
	LastEventID uint64 `json:"last_event_id"`
}

// ResetMsg tells the client its LastEventID is gone and it should reload
// from the REST API.
type ResetMsg struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// EventSequence hands out monotonic event IDs per tenant.
type EventSequence struct {
	mu       sync.Mutex
	counters map[string]*atomic.Uint64
}

// NewEventSequence creates an EventSequence.
func NewEventSequence() *EventSequence {
	return &EventSequence{counters: make(map[string]*atomic.Uint64)}
}

// Next returns the next ID for tenantID, starting at 1.
func (es *EventSequence) Next(tenantID string) uint64 {
	es.mu.Lock()
	counter, ok := es.counters[tenantID]
	if !ok {
		counter = &atomic.Uint64{}
		es.counters[tenantID] = counter
	}
	es.mu.Unlock()

	return counter.Add(1)
}
