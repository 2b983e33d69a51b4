package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditlog/internal/httputil"
	"github.com/persistorai/auditlog/internal/models"
)

// OrganizationHandler serves tenant administration and the caller's own
// organization endpoints.
type OrganizationHandler struct {
	svc   OrganizationService
	cache KeyInvalidator
	log   *logrus.Logger
}

// NewOrganizationHandler creates an OrganizationHandler. cache may be nil.
func NewOrganizationHandler(svc OrganizationService, cache KeyInvalidator, log *logrus.Logger) *OrganizationHandler {
	return &OrganizationHandler{svc: svc, cache: cache, log: log}
}

// Create handles POST /api/v1/admin/organizations.
func (h *OrganizationHandler) Create(c *gin.Context) {
	var req models.CreateOrganizationRequest
	if !bindJSON(c, &req) {
		return
	}

	created, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, h.log, "organization.create", err)
		return
	}

	httputil.RespondData(c, http.StatusCreated, created)
}

// List handles GET /api/v1/admin/organizations.
func (h *OrganizationHandler) List(c *gin.Context) {
	page, err := h.svc.List(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		respondServiceError(c, h.log, "organization.list", err)
		return
	}

	httputil.RespondPage(c, page.Data, page.Meta)
}

// Get handles GET /api/v1/admin/organizations/:id.
func (h *OrganizationHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	org, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, h.log, "organization.get", err)
		return
	}

	httputil.RespondData(c, http.StatusOK, org)
}

// Update handles PATCH /api/v1/admin/organizations/:id.
func (h *OrganizationHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.UpdateOrganizationRequest
	if !bindJSON(c, &req) {
		return
	}

	org, err := h.svc.Update(c.Request.Context(), id, req)
	if err != nil {
		respondServiceError(c, h.log, "organization.update", err)
		return
	}

	httputil.RespondData(c, http.StatusOK, org)
}

// Delete handles DELETE /api/v1/admin/organizations/:id.
func (h *OrganizationHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		respondServiceError(c, h.log, "organization.delete", err)
		return
	}

	if h.cache != nil {
		h.cache.InvalidateTenant(id)
	}

	c.Status(http.StatusNoContent)
}

// Me handles GET /api/v1/organization.
func (h *OrganizationHandler) Me(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}

	org, err := h.svc.Get(c.Request.Context(), caller.TenantID)
	if err != nil {
		respondServiceError(c, h.log, "organization.me", err)
		return
	}

	httputil.RespondData(c, http.StatusOK, org)
}

// RotateKey handles POST /api/v1/organization/rotate-key.
func (h *OrganizationHandler) RotateKey(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}

	apiKey, err := h.svc.RotateKey(c.Request.Context(), caller.TenantID)
	if err != nil {
		respondServiceError(c, h.log, "organization.rotate_key", err)
		return
	}

	if h.cache != nil {
		h.cache.InvalidateTenant(caller.TenantID)
	}

	httputil.RespondData(c, http.StatusOK, gin.H{"apiKey": apiKey})
}
