package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditlog/internal/domain"
	"github.com/persistorai/auditlog/internal/models"
	"github.com/persistorai/auditlog/internal/pagination"
	"github.com/persistorai/auditlog/internal/query"
)

// runOverrides are the request parameters that take precedence over a saved
// search's stored values when it is run.
var runOverrides = []string{"page", "limit", "cursor"}

// SavedSearchService manages query presets. Every call is scoped to the
// caller's tenant and user.
type SavedSearchService struct {
	store domain.SavedSearchStore
	logs  *LogService
	log   *logrus.Logger
}

// NewSavedSearchService creates a SavedSearchService that runs presets through logs.
func NewSavedSearchService(store domain.SavedSearchStore, logs *LogService, log *logrus.Logger) *SavedSearchService {
	return &SavedSearchService{store: store, logs: logs, log: log}
}

// Create stores a preset owned by caller.
func (s *SavedSearchService) Create(ctx context.Context, caller models.Identity, req models.CreateSavedSearchRequest) (*models.SavedSearch, error) {
	if caller.TenantID == "" {
		return nil, models.ErrMissingTenant
	}

	if caller.ActorID == "" {
		return nil, models.NewValidationError("userId", "is required")
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Reject presets that could never run.
	if _, err := query.FromSavedQuery(caller.TenantID, req.Query); err != nil {
		return nil, err
	}

	if _, err := s.params(req.Query, nil); err != nil {
		return nil, err
	}

	ss := &models.SavedSearch{
		OrganizationID: caller.TenantID,
		UserID:         caller.ActorID,
		Name:           req.Name,
		Query:          req.Query,
		IsGlobal:       req.IsGlobal,
	}

	if err := s.store.CreateSavedSearch(ctx, ss); err != nil {
		return nil, fmt.Errorf("creating saved search: %w", err)
	}

	return ss, nil
}

// List returns the caller's presets and the tenant's global ones.
func (s *SavedSearchService) List(ctx context.Context, caller models.Identity) ([]models.SavedSearch, error) {
	return s.store.ListSavedSearches(ctx, caller.TenantID, caller.ActorID)
}

// Get returns one preset visible to caller.
func (s *SavedSearchService) Get(ctx context.Context, caller models.Identity, id string) (*models.SavedSearch, error) {
	return s.store.GetSavedSearch(ctx, caller.TenantID, caller.ActorID, id)
}

// Delete removes a preset owned by caller.
func (s *SavedSearchService) Delete(ctx context.Context, caller models.Identity, id string) error {
	return s.store.DeleteSavedSearch(ctx, caller.TenantID, caller.ActorID, id)
}

// Run executes a preset. page, limit and cursor from overrides replace the
// stored values.
func (s *SavedSearchService) Run(ctx context.Context, caller models.Identity, id string, overrides url.Values) (*LogPage, error) {
	ss, err := s.store.GetSavedSearch(ctx, caller.TenantID, caller.ActorID, id)
	if err != nil {
		return nil, err
	}

	scope, err := query.FromSavedQuery(caller.TenantID, ss.Query)
	if err != nil {
		return nil, err
	}

	p, err := s.params(ss.Query, overrides)
	if err != nil {
		return nil, err
	}

	return s.logs.run(ctx, caller.TenantID, scope, p)
}

// params merges a stored query's pagination settings with request overrides
// and parses them with the log planner.
func (s *SavedSearchService) params(q models.SearchQuery, overrides url.Values) (pagination.Params, error) {
	v := url.Values{}

	if q.SortBy != "" {
		v.Set("sortBy", q.SortBy)
	}

	if q.Order != "" {
		v.Set("order", q.Order)
	}

	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}

	for _, key := range runOverrides {
		if val := overrides.Get(key); val != "" {
			v.Set(key, val)
		}
	}

	return s.logs.Planner().Parse(v)
}
