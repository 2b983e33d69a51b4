// Package models defines data types for the audit log.
package models

import (
	"encoding/json"
	"strings"
	"time"
)

// EventType classifies a log entry.
type EventType string

// Known event types.
const (
	EventCreate EventType = "CREATE"
	EventRead   EventType = "READ"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
	EventLogin  EventType = "LOGIN"
	EventLogout EventType = "LOGOUT"
	EventOther  EventType = "OTHER"
)

// EventTypes lists every valid event type in display order.
var EventTypes = []EventType{EventCreate, EventRead, EventUpdate, EventDelete, EventLogin, EventLogout, EventOther}

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	for _, et := range EventTypes {
		if et == t {
			return true
		}
	}

	return false
}

// DeleteAction is the action value the anomaly detector counts.
const DeleteAction = "DELETE"

// Actor is a denormalized snapshot of who performed an action.
type Actor struct {
	ID    string `json:"id" bson:"id"`
	Name  string `json:"name" bson:"name"`
	Email string `json:"email,omitempty" bson:"email,omitempty"`
}

// LogEntry is a single recorded action. Entries are immutable once stored.
type LogEntry struct {
	ID             string         `json:"id" bson:"-"`
	OrganizationID string         `json:"organizationId" bson:"organizationId"`
	Actor          Actor          `json:"actor" bson:"actor"`
	Action         string         `json:"action" bson:"action"`
	EventType      EventType      `json:"eventType" bson:"eventType"`
	Description    string         `json:"description" bson:"description"`
	Metadata       map[string]any `json:"metadata" bson:"metadata"`
	SearchText     string         `json:"-" bson:"searchText"`
	Timestamp      time.Time      `json:"timestamp" bson:"timestamp"`
	CreatedAt      time.Time      `json:"createdAt" bson:"createdAt"`
}

// CursorID returns the tiebreak identifier used in keyset cursors.
func (e LogEntry) CursorID() string { return e.ID }

// CursorValue returns the value of the named sort field.
func (e LogEntry) CursorValue(field string) (any, bool) {
	switch field {
	case "timestamp":
		return e.Timestamp, true
	case "createdAt":
		return e.CreatedAt, true
	case "action":
		return e.Action, true
	case "eventType":
		return string(e.EventType), true
	}

	return nil, false
}

// MetadataText returns the JSON form of metadata used for fuzzy search.
// Unserializable metadata yields an empty string.
func MetadataText(metadata map[string]any) string {
	if len(metadata) == 0 {
		return "{}"
	}

	b, err := json.Marshal(metadata)
	if err != nil {
		return ""
	}

	return string(b)
}

// CreateLogRequest is the payload for recording a log entry.
type CreateLogRequest struct {
	Action      string         `json:"action"`
	EventType   EventType      `json:"eventType,omitempty" binding:"omitempty,eventtype"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Timestamp   *time.Time     `json:"timestamp,omitempty"`
	Actor       *Actor         `json:"actor,omitempty"`
}

// Validate checks required fields and limits on CreateLogRequest and normalizes
// the event type to upper case.
func (r *CreateLogRequest) Validate() error {
	r.Action = strings.TrimSpace(r.Action)
	if r.Action == "" {
		return ErrMissingAction
	}

	if len(r.Action) > 255 {
		return ErrFieldTooLong("action", 255)
	}

	if r.EventType != "" {
		r.EventType = EventType(strings.ToUpper(string(r.EventType)))
		if !r.EventType.Valid() {
			return &ValidationError{Field: "eventType", Problem: "must be one of CREATE, READ, UPDATE, DELETE, LOGIN, LOGOUT, OTHER"}
		}
	}

	if len(r.Description) > 10000 {
		return ErrFieldTooLong("description", 10000)
	}

	if r.Actor != nil {
		if len(r.Actor.ID) > 255 {
			return ErrFieldTooLong("actor.id", 255)
		}
		if len(r.Actor.Name) > 255 {
			return ErrFieldTooLong("actor.name", 255)
		}
		if len(r.Actor.Email) > 320 {
			return ErrFieldTooLong("actor.email", 320)
		}
	}

	return nil
}

// EventTypeCount is one row of the per-event-type summary.
type EventTypeCount struct {
	EventType EventType `json:"eventType" bson:"_id"`
	Count     int64     `json:"count" bson:"count"`
}
