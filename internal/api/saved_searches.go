package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditlog/internal/httputil"
	"github.com/persistorai/auditlog/internal/models"
)

// SavedSearchHandler serves the saved search endpoints.
type SavedSearchHandler struct {
	svc SavedSearchService
	log *logrus.Logger
}

// NewSavedSearchHandler creates a SavedSearchHandler.
func NewSavedSearchHandler(svc SavedSearchService, log *logrus.Logger) *SavedSearchHandler {
	return &SavedSearchHandler{svc: svc, log: log}
}

// Create handles POST /api/v1/saved-searches.
func (h *SavedSearchHandler) Create(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}

	var req models.CreateSavedSearchRequest
	if !bindJSON(c, &req) {
		return
	}

	ss, err := h.svc.Create(c.Request.Context(), caller, req)
	if err != nil {
		respondServiceError(c, h.log, "saved_search.create", err)
		return
	}

	h.log.WithFields(logrus.Fields{
		"action":    "saved_search.create",
		"tenant_id": caller.TenantID,
		"search_id": ss.ID,
	}).Info("audit")

	httputil.RespondData(c, http.StatusCreated, ss)
}

// List handles GET /api/v1/saved-searches.
func (h *SavedSearchHandler) List(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}

	list, err := h.svc.List(c.Request.Context(), caller)
	if err != nil {
		respondServiceError(c, h.log, "saved_search.list", err)
		return
	}

	if list == nil {
		list = []models.SavedSearch{}
	}

	httputil.RespondData(c, http.StatusOK, list)
}

// Get handles GET /api/v1/saved-searches/:id.
func (h *SavedSearchHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	caller, ok := callerIdentity(c)
	if !ok {
		return
	}

	ss, err := h.svc.Get(c.Request.Context(), caller, id)
	if err != nil {
		respondServiceError(c, h.log, "saved_search.get", err)
		return
	}

	httputil.RespondData(c, http.StatusOK, ss)
}

// Delete handles DELETE /api/v1/saved-searches/:id.
func (h *SavedSearchHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	caller, ok := callerIdentity(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), caller, id); err != nil {
		respondServiceError(c, h.log, "saved_search.delete", err)
		return
	}

	h.log.WithFields(logrus.Fields{
		"action":    "saved_search.delete",
		"tenant_id": caller.TenantID,
		"search_id": id,
	}).Info("audit")

	c.Status(http.StatusNoContent)
}

// Results handles GET /api/v1/saved-searches/:id/results.
func (h *SavedSearchHandler) Results(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	caller, ok := callerIdentity(c)
	if !ok {
		return
	}

	page, err := h.svc.Run(c.Request.Context(), caller, id, c.Request.URL.Query())
	if err != nil {
		respondServiceError(c, h.log, "saved_search.run", err)
		return
	}

	httputil.RespondPage(c, page.Data, page.Meta)
}
