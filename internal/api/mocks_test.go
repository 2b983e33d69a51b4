package api_test

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/persistorai/auditlog/internal/models"
	"github.com/persistorai/auditlog/internal/service"
)

// mockLogService implements api.LogService for testing.
type mockLogService struct {
	createFn  func(ctx context.Context, caller models.Identity, req models.CreateLogRequest) (*models.LogEntry, error)
	listFn    func(ctx context.Context, tenantID string, params url.Values) (*service.LogPage, error)
	getFn     func(ctx context.Context, tenantID, id string) (*models.LogEntry, error)
	summaryFn func(ctx context.Context, tenantID string) ([]models.EventTypeCount, error)
}

func (m *mockLogService) Create(ctx context.Context, caller models.Identity, req models.CreateLogRequest) (*models.LogEntry, error) {
	return m.createFn(ctx, caller, req)
}

func (m *mockLogService) List(ctx context.Context, tenantID string, params url.Values) (*service.LogPage, error) {
	return m.listFn(ctx, tenantID, params)
}

func (m *mockLogService) Get(ctx context.Context, tenantID, id string) (*models.LogEntry, error) {
	return m.getFn(ctx, tenantID, id)
}

func (m *mockLogService) Summary(ctx context.Context, tenantID string) ([]models.EventTypeCount, error) {
	return m.summaryFn(ctx, tenantID)
}

// mockSavedSearchService implements api.SavedSearchService for testing.
type mockSavedSearchService struct {
	createFn func(ctx context.Context, caller models.Identity, req models.CreateSavedSearchRequest) (*models.SavedSearch, error)
	listFn   func(ctx context.Context, caller models.Identity) ([]models.SavedSearch, error)
	getFn    func(ctx context.Context, caller models.Identity, id string) (*models.SavedSearch, error)
	deleteFn func(ctx context.Context, caller models.Identity, id string) error
	runFn    func(ctx context.Context, caller models.Identity, id string, overrides url.Values) (*service.LogPage, error)
}

func (m *mockSavedSearchService) Create(ctx context.Context, caller models.Identity, req models.CreateSavedSearchRequest) (*models.SavedSearch, error) {
	return m.createFn(ctx, caller, req)
}

func (m *mockSavedSearchService) List(ctx context.Context, caller models.Identity) ([]models.SavedSearch, error) {
	return m.listFn(ctx, caller)
}

func (m *mockSavedSearchService) Get(ctx context.Context, caller models.Identity, id string) (*models.SavedSearch, error) {
	return m.getFn(ctx, caller, id)
}

func (m *mockSavedSearchService) Delete(ctx context.Context, caller models.Identity, id string) error {
	return m.deleteFn(ctx, caller, id)
}

func (m *mockSavedSearchService) Run(ctx context.Context, caller models.Identity, id string, overrides url.Values) (*service.LogPage, error) {
	return m.runFn(ctx, caller, id, overrides)
}

// mockOrgService implements api.OrganizationService for testing.
type mockOrgService struct {
	createFn func(ctx context.Context, req models.CreateOrganizationRequest) (*models.CreatedOrganization, error)
	listFn   func(ctx context.Context, params url.Values) (*service.OrganizationPage, error)
	getFn    func(ctx context.Context, id string) (*models.Organization, error)
	updateFn func(ctx context.Context, id string, req models.UpdateOrganizationRequest) (*models.Organization, error)
	deleteFn func(ctx context.Context, id string) error
	rotateFn func(ctx context.Context, tenantID string) (string, error)
}

func (m *mockOrgService) Create(ctx context.Context, req models.CreateOrganizationRequest) (*models.CreatedOrganization, error) {
	return m.createFn(ctx, req)
}

func (m *mockOrgService) List(ctx context.Context, params url.Values) (*service.OrganizationPage, error) {
	return m.listFn(ctx, params)
}

func (m *mockOrgService) Get(ctx context.Context, id string) (*models.Organization, error) {
	return m.getFn(ctx, id)
}

func (m *mockOrgService) Update(ctx context.Context, id string, req models.UpdateOrganizationRequest) (*models.Organization, error) {
	return m.updateFn(ctx, id, req)
}

func (m *mockOrgService) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

func (m *mockOrgService) RotateKey(ctx context.Context, tenantID string) (string, error) {
	return m.rotateFn(ctx, tenantID)
}

// mockInvalidator records invalidated tenants.
type mockInvalidator struct {
	mu      sync.Mutex
	tenants []string
}

func (m *mockInvalidator) InvalidateTenant(tenantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants = append(m.tenants, tenantID)
}

// stubIssuer returns a fixed token.
type stubIssuer struct {
	last models.Identity
	err  error
}

func (s *stubIssuer) Issue(id models.Identity) (string, time.Time, error) {
	s.last = id
	return "signed." + id.ActorID + ".token", time.Date(2026, 1, 1, 5, 0, 0, 0, time.UTC), s.err
}

// stubPinger returns err from Ping.
type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error { return s.err }
