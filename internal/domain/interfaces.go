// Package domain defines the canonical store interfaces shared by the service
// layer and every backend (Postgres, MongoDB, in-memory). Consumers should
// depend on these interfaces rather than re-declaring equivalent ones.
package domain

import (
	"context"

	"github.com/persistorai/auditlog/internal/models"
	"github.com/persistorai/auditlog/internal/query"
)

// LogStore persists and queries log entries. Every filter passed in already
// carries the tenant clause; tenantID is repeated so backends with row level
// security can set their session context.
type LogStore interface {
	CountLogs(ctx context.Context, tenantID string, filter query.Expr) (int64, error)
	FindLogs(ctx context.Context, tenantID string, filter query.Expr, opts query.FindOptions) ([]models.LogEntry, error)
	// InsertLog assigns ID and CreatedAt on entry.
	InsertLog(ctx context.Context, entry *models.LogEntry) error
	GetLog(ctx context.Context, tenantID, id string) (*models.LogEntry, error)
	SummarizeLogs(ctx context.Context, tenantID string) ([]models.EventTypeCount, error)
}

// OrganizationStore persists tenants.
type OrganizationStore interface {
	// CreateOrganization assigns ID, CreatedAt and UpdatedAt on org.
	CreateOrganization(ctx context.Context, org *models.Organization) error
	GetOrganization(ctx context.Context, id string) (*models.Organization, error)
	GetOrganizationByAPIKeyHash(ctx context.Context, hash string) (*models.Organization, error)
	CountOrganizations(ctx context.Context) (int64, error)
	// ListOrganizations returns organizations newest first.
	ListOrganizations(ctx context.Context, skip, limit int) ([]models.Organization, error)
	UpdateOrganization(ctx context.Context, org *models.Organization) error
	SetAPIKeyHash(ctx context.Context, id, hash string) error
	DeleteOrganization(ctx context.Context, id string) error
}

// SavedSearchStore persists saved searches. Reads are visible when the search
// belongs to tenantID and is either owned by userID or global; deletes require
// ownership.
type SavedSearchStore interface {
	// CreateSavedSearch assigns ID, CreatedAt and UpdatedAt on s.
	CreateSavedSearch(ctx context.Context, s *models.SavedSearch) error
	ListSavedSearches(ctx context.Context, tenantID, userID string) ([]models.SavedSearch, error)
	GetSavedSearch(ctx context.Context, tenantID, userID, id string) (*models.SavedSearch, error)
	DeleteSavedSearch(ctx context.Context, tenantID, userID, id string) error
}

// Store is a complete backend.
type Store interface {
	LogStore
	OrganizationStore
	SavedSearchStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
