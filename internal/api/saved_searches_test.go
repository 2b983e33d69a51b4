package api_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/persistorai/auditlog/internal/api"
	"github.com/persistorai/auditlog/internal/models"
	"github.com/persistorai/auditlog/internal/service"
)

func newSavedSearchRouter(svc api.SavedSearchService) *gin.Engine {
	r := newTestRouter(testUser)
	h := api.NewSavedSearchHandler(svc, testLogger())
	r.POST("/saved-searches", h.Create)
	r.GET("/saved-searches", h.List)
	r.GET("/saved-searches/:id", h.Get)
	r.DELETE("/saved-searches/:id", h.Delete)
	r.GET("/saved-searches/:id/results", h.Results)

	return r
}

func TestSavedSearchCreate_UsesCallerIdentity(t *testing.T) {
	t.Parallel()

	var caller models.Identity
	svc := &mockSavedSearchService{
		createFn: func(_ context.Context, id models.Identity, req models.CreateSavedSearchRequest) (*models.SavedSearch, error) {
			caller = id
			return &models.SavedSearch{ID: "s1", OrganizationID: id.TenantID, UserID: id.ActorID, Name: req.Name, Query: req.Query}, nil
		},
	}

	w := doRequest(newSavedSearchRouter(svc), http.MethodPost, "/saved-searches",
		`{"name":"deletes","query":{"eventType":"DELETE"},"organizationId":"someone-else","userId":"mallory"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	if caller != testUser {
		t.Errorf("caller = %+v, want %+v", caller, testUser)
	}

	var ss models.SavedSearch
	decodeData(t, w, &ss)

	if ss.OrganizationID != testTenantID || ss.UserID != "user-1" {
		t.Errorf("saved search owner = %s/%s", ss.OrganizationID, ss.UserID)
	}
}

func TestSavedSearchCreate_MissingName(t *testing.T) {
	t.Parallel()

	w := doRequest(newSavedSearchRouter(&mockSavedSearchService{}), http.MethodPost, "/saved-searches", `{"query":{}}`)
	expectError(t, w, http.StatusBadRequest, api.ErrCodeInvalidRequest)
}

func TestSavedSearchList_EmptyIsArray(t *testing.T) {
	t.Parallel()

	svc := &mockSavedSearchService{
		listFn: func(context.Context, models.Identity) ([]models.SavedSearch, error) { return nil, nil },
	}

	w := doRequest(newSavedSearchRouter(svc), http.MethodGet, "/saved-searches", "")

	if got := w.Body.String(); got != `{"success":true,"data":[]}` {
		t.Errorf("body = %s", got)
	}
}

func TestSavedSearchGetAndDelete_NotVisible(t *testing.T) {
	t.Parallel()

	svc := &mockSavedSearchService{
		getFn:    func(context.Context, models.Identity, string) (*models.SavedSearch, error) { return nil, models.ErrSavedSearchNotFound },
		deleteFn: func(context.Context, models.Identity, string) error { return models.ErrSavedSearchNotFound },
	}
	r := newSavedSearchRouter(svc)

	expectError(t, doRequest(r, http.MethodGet, "/saved-searches/s9", ""), http.StatusNotFound, api.ErrCodeNotFound)
	expectError(t, doRequest(r, http.MethodDelete, "/saved-searches/s9", ""), http.StatusNotFound, api.ErrCodeNotFound)
}

func TestSavedSearchDelete_NoContent(t *testing.T) {
	t.Parallel()

	var deleted string
	svc := &mockSavedSearchService{
		deleteFn: func(_ context.Context, _ models.Identity, id string) error {
			deleted = id
			return nil
		},
	}

	w := doRequest(newSavedSearchRouter(svc), http.MethodDelete, "/saved-searches/s1", "")

	if w.Code != http.StatusNoContent || deleted != "s1" {
		t.Fatalf("status = %d, deleted = %q", w.Code, deleted)
	}
}

func TestSavedSearchResults_PassesOverrides(t *testing.T) {
	t.Parallel()

	var got url.Values
	svc := &mockSavedSearchService{
		runFn: func(_ context.Context, _ models.Identity, id string, overrides url.Values) (*service.LogPage, error) {
			got = overrides
			return &service.LogPage{Data: []models.LogEntry{}}, nil
		},
	}

	w := doRequest(newSavedSearchRouter(svc), http.MethodGet, "/saved-searches/s1/results?page=2&limit=3", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if got.Get("page") != "2" || got.Get("limit") != "3" {
		t.Errorf("overrides = %v", got)
	}
}
