// Package ws streams live audit events to WebSocket subscribers.
package ws

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditlog/internal/metrics"
)

// Hub channel buffer sizes.
const (
	broadcastBuffer = 256
	registerBuffer  = 64
)

// maxEventPayload bounds one serialized event; pg_notify caps payloads near 8 KB.
const maxEventPayload = 8192

// defaultDrainTimeout is how long the hub waits for clients to flush after shutdown.
const defaultDrainTimeout = 3 * time.Second

// HubConfig bounds hub resources. Zero fields select defaults.
type HubConfig struct {
	MaxClients   int
	MaxPerTenant int
	BufferLen    int
	BufferAge    time.Duration
}

func (c HubConfig) withDefaults() HubConfig {
	if c.MaxClients <= 0 {
		c.MaxClients = 1000
	}
	if c.MaxPerTenant <= 0 {
		c.MaxPerTenant = 50
	}
	if c.BufferLen <= 0 {
		c.BufferLen = defaultBufferMaxLen
	}
	if c.BufferAge <= 0 {
		c.BufferAge = defaultBufferMaxAge
	}
	return c
}

type tenantMessage struct {
	tenantID string
	msg      []byte
}

// Hub tracks live-tail subscribers and fans tenant events out to them.
// The client set is owned by the Run goroutine.
type Hub struct {
	cfg        HubConfig
	drain      time.Duration
	clients    map[*Client]struct{}
	perTenant  map[string]int
	register   chan *Client
	unregister chan *Client
	broadcast  chan tenantMessage
	shutdown   chan struct{}
	done       chan struct{}
	count      atomic.Int64
	log        *logrus.Logger
	seq        *EventSequence
	buffer     *EventBuffer
}

// NewHub creates a Hub.
func NewHub(cfg HubConfig, log *logrus.Logger) *Hub {
	cfg = cfg.withDefaults()

	return &Hub{
		cfg:        cfg,
		drain:      defaultDrainTimeout,
		clients:    make(map[*Client]struct{}),
		perTenant:  make(map[string]int),
		register:   make(chan *Client, registerBuffer),
		unregister: make(chan *Client, registerBuffer),
		broadcast:  make(chan tenantMessage, broadcastBuffer),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		log:        log,
		seq:        NewEventSequence(),
		buffer:     NewEventBuffer(cfg.BufferLen, cfg.BufferAge),
	}
}

// Run is the hub event loop. It returns after Shutdown or ctx cancellation,
// once connected clients have been drained.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer h.buffer.Stop()

	for {
		select {
		case <-ctx.Done():
			h.drainClients()
			return
		case <-h.shutdown:
			h.drainClients()
			return
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.remove(c)
				h.log.WithField("total", len(h.clients)).Debug("live tail client unregistered")
			}
		case m := <-h.broadcast:
			for c := range h.clients {
				if c.TenantID != m.tenantID {
					continue
				}
				select {
				case c.send <- m.msg:
				default:
					h.log.WithField("tenant_id", c.TenantID).Warn("slow live tail client dropped")
					h.remove(c)
				}
			}
		}
	}
}

func (h *Hub) add(c *Client) {
	if len(h.clients) >= h.cfg.MaxClients {
		h.log.Warn("live tail connection limit reached, dropping client")
		c.closeSend()
		return
	}

	if h.perTenant[c.TenantID] >= h.cfg.MaxPerTenant {
		h.log.WithField("tenant_id", c.TenantID).Warn("per-tenant live tail limit reached, dropping client")
		c.closeSend()
		return
	}

	h.clients[c] = struct{}{}
	h.perTenant[c.TenantID]++
	h.updateCount()

	h.log.WithFields(logrus.Fields{
		"tenant_id": c.TenantID,
		"total":     len(h.clients),
	}).Info("live tail client registered")
}

// remove drops c from the hub. Caller is the Run goroutine.
func (h *Hub) remove(c *Client) {
	delete(h.clients, c)
	c.closeSend()

	h.perTenant[c.TenantID]--
	if h.perTenant[c.TenantID] <= 0 {
		delete(h.perTenant, c.TenantID)
	}

	h.updateCount()
}

func (h *Hub) updateCount() {
	h.count.Store(int64(len(h.clients)))
	metrics.WSConnections.Set(float64(len(h.clients)))
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	default:
		h.log.Warn("register channel full, dropping client")
		c.closeSend()
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	default:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// BroadcastEvent assigns the next tenant sequence ID, buffers the event for
// replay and sends it to the tenant's subscribers.
func (h *Hub) BroadcastEvent(eventType, tenantID string, data json.RawMessage) {
	evt := Event{
		Type:     eventType,
		ID:       h.seq.Next(tenantID),
		TenantID: tenantID,
		Data:     data,
		Time:     time.Now().UTC(),
	}

	msg, err := json.Marshal(evt)
	if err != nil {
		h.log.WithError(err).Error("failed to marshal live event")
		return
	}

	if len(msg) > maxEventPayload {
		h.log.WithFields(logrus.Fields{
			"tenant_id":    tenantID,
			"event_type":   eventType,
			"payload_size": len(msg),
		}).Warn("dropping oversized live event")
		return
	}

	h.buffer.Append(tenantID, &evt)

	select {
	case h.broadcast <- tenantMessage{tenantID: tenantID, msg: msg}:
	default:
		h.log.Warn("broadcast channel full, dropping live event")
	}
}

// Shutdown sends a shutdown frame to every client, waits for their buffers to
// flush, and closes them. It blocks until Run has returned.
func (h *Hub) Shutdown() {
	close(h.shutdown)
	<-h.done
}

func (h *Hub) drainClients() {
	if len(h.clients) == 0 {
		return
	}

	h.log.WithField("clients", len(h.clients)).Info("draining live tail clients")

	shutdownMsg := []byte(`{"type":"` + MsgShutdown + `","message":"server shutting down"}`)
	for c := range h.clients {
		select {
		case c.send <- shutdownMsg:
		default:
		}
	}

	deadline := time.After(h.drain)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

wait:
	for h.pending() {
		select {
		case <-deadline:
			h.log.Warn("live tail drain timeout, closing remaining clients")
			break wait
		case <-ticker.C:
		}
	}

	for c := range h.clients {
		h.remove(c)
	}
}

func (h *Hub) pending() bool {
	for c := range h.clients {
		if len(c.send) > 0 {
			return true
		}
	}
	return false
}

// ReplayEvents queues buffered events newer than lastEventID for c. It
// returns false when lastEventID has already been evicted from the buffer.
func (h *Hub) ReplayEvents(c *Client, lastEventID uint64) bool {
	oldest := h.buffer.OldestID(c.TenantID)
	if oldest > 0 && lastEventID > 0 && lastEventID+1 < oldest {
		return false
	}

	for _, evt := range h.buffer.Since(c.TenantID, lastEventID) {
		msg, err := json.Marshal(evt)
		if err != nil {
			continue
		}
		select {
		case c.send <- msg:
		default:
			return true
		}
	}

	return true
}
