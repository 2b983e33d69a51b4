package service

import (
	"encoding/json"

	"github.com/sirupsen/logrus"
)

// Publisher pushes live-tail events to subscribers of a tenant.
type Publisher interface {
	Publish(eventType, tenantID string, data any)
}

// Broadcaster is the fan-out side of the WebSocket hub.
type Broadcaster interface {
	BroadcastEvent(eventType, tenantID string, data json.RawMessage)
}

// HubPublisher marshals events and hands them to a Broadcaster.
type HubPublisher struct {
	hub Broadcaster
	log *logrus.Logger
}

// NewHubPublisher creates a HubPublisher.
func NewHubPublisher(hub Broadcaster, log *logrus.Logger) *HubPublisher {
	return &HubPublisher{hub: hub, log: log}
}

// Publish implements Publisher.
func (p *HubPublisher) Publish(eventType, tenantID string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		p.log.WithError(err).WithField("event_type", eventType).Warn("failed to marshal live event")
		return
	}

	p.hub.BroadcastEvent(eventType, tenantID, raw)
}

// NopPublisher discards events. The Postgres backend uses it for log.created
// because inserts already reach the hub through LISTEN/NOTIFY.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(string, string, any) {}
