package client

import (
	"encoding/json"
	"time"
)

// Event types accepted by the API.
const (
	EventCreate = "CREATE"
	EventRead   = "READ"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
	EventLogin  = "LOGIN"
	EventLogout = "LOGOUT"
	EventOther  = "OTHER"
)

// Actor is who performed an action.
type Actor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// LogEntry is a recorded action.
type LogEntry struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organizationId"`
	Actor          Actor          `json:"actor"`
	Action         string         `json:"action"`
	EventType      string         `json:"eventType"`
	Description    string         `json:"description"`
	Metadata       map[string]any `json:"metadata"`
	Timestamp      time.Time      `json:"timestamp"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// CreateLogRequest is the payload for recording an action. Actor is honored
// only for API key callers; user tokens always record the token's user.
type CreateLogRequest struct {
	Action      string         `json:"action"`
	EventType   string         `json:"eventType,omitempty"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Timestamp   *time.Time     `json:"timestamp,omitempty"`
	Actor       *Actor         `json:"actor,omitempty"`
}

// ListOptions filters and pages a log listing. A non-empty Cursor selects
// cursor mode and Page is ignored.
type ListOptions struct {
	EventType string
	UserID    string
	Action    string
	Search    string
	Page      int
	Limit     int
	SortBy    string
	Order     string
	Cursor    string
}

// Meta describes a page. Offset pages carry totals; cursor pages only
// NextCursor.
type Meta struct {
	Total       *int64  `json:"total"`
	Pages       *int64  `json:"pages"`
	Page        *int    `json:"page"`
	Limit       int     `json:"limit"`
	HasPrevPage bool    `json:"hasPrevPage"`
	HasNextPage bool    `json:"hasNextPage"`
	PrevPage    *int    `json:"prevPage"`
	NextPage    *int    `json:"nextPage"`
	NextCursor  *string `json:"nextCursor"`
	SortBy      string  `json:"sortBy"`
	Order       string  `json:"order"`
}

// LogPage is one page of log entries.
type LogPage struct {
	Data []LogEntry
	Meta Meta
}

// EventTypeCount is one row of the summary.
type EventTypeCount struct {
	EventType string `json:"eventType"`
	Count     int64  `json:"count"`
}

// SearchQuery is the stored part of a saved search.
type SearchQuery struct {
	EventType string `json:"eventType,omitempty"`
	UserID    string `json:"userId,omitempty"`
	Action    string `json:"action,omitempty"`
	Search    string `json:"search,omitempty"`
	SortBy    string `json:"sortBy,omitempty"`
	Order     string `json:"order,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// SavedSearch is a named query preset.
type SavedSearch struct {
	ID             string      `json:"id"`
	OrganizationID string      `json:"organizationId"`
	UserID         string      `json:"userId"`
	Name           string      `json:"name"`
	Query          SearchQuery `json:"query"`
	IsGlobal       bool        `json:"isGlobal"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// CreateSavedSearchRequest is the payload for creating a saved search.
type CreateSavedSearchRequest struct {
	Name     string      `json:"name"`
	Query    SearchQuery `json:"query"`
	IsGlobal bool        `json:"isGlobal,omitempty"`
}

// Organization is the caller's tenant.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TokenRequest asks for a user token.
type TokenRequest struct {
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
}

// Token is an issued user token.
type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// HealthResponse is the liveness check body.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Backend       string  `json:"backend"`
	Store         string  `json:"store"`
	LiveClients   int     `json:"live_clients"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Event is one live-tail frame. Data holds a LogEntry for "log.created" and
// an alert for "alert.triggered".
type Event struct {
	Type string          `json:"type"`
	ID   uint64          `json:"id"`
	Data json.RawMessage `json:"data,omitempty"`
	Time time.Time       `json:"time"`
	// Reason is set on "reset" frames.
	Reason string `json:"reason,omitempty"`
}
