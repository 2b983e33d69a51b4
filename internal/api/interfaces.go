package api

import (
	"context"
	"net/url"
	"time"

	"github.com/persistorai/auditlog/internal/models"
	"github.com/persistorai/auditlog/internal/service"
)

// LogService is the log ingestion and query surface used by LogHandler.
type LogService interface {
	Create(ctx context.Context, caller models.Identity, req models.CreateLogRequest) (*models.LogEntry, error)
	List(ctx context.Context, tenantID string, params url.Values) (*service.LogPage, error)
	Get(ctx context.Context, tenantID, id string) (*models.LogEntry, error)
	Summary(ctx context.Context, tenantID string) ([]models.EventTypeCount, error)
}

// SavedSearchService manages query presets for SavedSearchHandler.
type SavedSearchService interface {
	Create(ctx context.Context, caller models.Identity, req models.CreateSavedSearchRequest) (*models.SavedSearch, error)
	List(ctx context.Context, caller models.Identity) ([]models.SavedSearch, error)
	Get(ctx context.Context, caller models.Identity, id string) (*models.SavedSearch, error)
	Delete(ctx context.Context, caller models.Identity, id string) error
	Run(ctx context.Context, caller models.Identity, id string, overrides url.Values) (*service.LogPage, error)
}

// OrganizationService manages tenants for OrganizationHandler.
type OrganizationService interface {
	Create(ctx context.Context, req models.CreateOrganizationRequest) (*models.CreatedOrganization, error)
	List(ctx context.Context, params url.Values) (*service.OrganizationPage, error)
	Get(ctx context.Context, id string) (*models.Organization, error)
	Update(ctx context.Context, id string, req models.UpdateOrganizationRequest) (*models.Organization, error)
	Delete(ctx context.Context, id string) error
	RotateKey(ctx context.Context, tenantID string) (string, error)
}

// KeyInvalidator drops cached API key lookups of a tenant.
type KeyInvalidator interface {
	InvalidateTenant(tenantID string)
}

// TokenIssuer mints identity tokens for TokenHandler.
type TokenIssuer interface {
	Issue(id models.Identity) (string, time.Time, error)
}
