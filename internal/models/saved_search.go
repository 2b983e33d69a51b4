package models

import (
	"strings"
	"time"
)

// SearchQuery is a reusable set of list parameters.
type SearchQuery struct {
	EventType string `json:"eventType,omitempty" bson:"eventType,omitempty"`
	UserID    string `json:"userId,omitempty" bson:"userId,omitempty"`
	Action    string `json:"action,omitempty" bson:"action,omitempty"`
	Search    string `json:"search,omitempty" bson:"search,omitempty"`
	SortBy    string `json:"sortBy,omitempty" bson:"sortBy,omitempty"`
	Order     string `json:"order,omitempty" bson:"order,omitempty"`
	Limit     int    `json:"limit,omitempty" bson:"limit,omitempty"`
}

// Filters returns the allow-listed filter parameters of the query.
func (q SearchQuery) Filters() map[string]string {
	return map[string]string{
		"eventType": q.EventType,
		"userId":    q.UserID,
		"action":    q.Action,
	}
}

// SavedSearch is a named query preset, private to its owner unless global.
type SavedSearch struct {
	ID             string      `json:"id" bson:"-"`
	OrganizationID string      `json:"organizationId" bson:"organizationId"`
	UserID         string      `json:"userId" bson:"userId"`
	Name           string      `json:"name" bson:"name"`
	Query          SearchQuery `json:"query" bson:"query"`
	IsGlobal       bool        `json:"isGlobal" bson:"isGlobal"`
	CreatedAt      time.Time   `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt" bson:"updatedAt"`
}

// CreateSavedSearchRequest is the payload for creating a saved search.
type CreateSavedSearchRequest struct {
	Name     string      `json:"name" binding:"required,max=255"`
	Query    SearchQuery `json:"query"`
	IsGlobal bool        `json:"isGlobal"`
}

// Validate checks required fields on CreateSavedSearchRequest.
func (r *CreateSavedSearchRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return ErrMissingName
	}

	if len(r.Name) > 255 {
		return ErrFieldTooLong("name", 255)
	}

	if r.Query.EventType != "" {
		r.Query.EventType = strings.ToUpper(r.Query.EventType)
		if !EventType(r.Query.EventType).Valid() {
			return NewValidationError("query.eventType", "must be a known event type")
		}
	}

	if len(r.Query.Search) > 500 {
		return ErrFieldTooLong("query.search", 500)
	}

	if r.Query.Limit < 0 {
		return NewValidationError("query.limit", "must be a positive integer")
	}

	return nil
}
