package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditlog/internal/httputil"
	"github.com/persistorai/auditlog/internal/models"
)

// LogHandler serves the log ingestion and query endpoints.
type LogHandler struct {
	svc LogService
	log *logrus.Logger
}

// NewLogHandler creates a LogHandler.
func NewLogHandler(svc LogService, log *logrus.Logger) *LogHandler {
	RegisterValidators()

	return &LogHandler{svc: svc, log: log}
}

// Create handles POST /api/v1/logs.
func (h *LogHandler) Create(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}

	var req models.CreateLogRequest
	if !bindJSON(c, &req) {
		return
	}

	entry, err := h.svc.Create(c.Request.Context(), caller, req)
	if err != nil {
		respondServiceError(c, h.log, "log.create", err)
		return
	}

	h.log.WithFields(logrus.Fields{
		"action":    "log.create",
		"tenant_id": caller.TenantID,
		"log_id":    entry.ID,
	}).Debug("audit")

	httputil.RespondData(c, http.StatusCreated, entry)
}

// List handles GET /api/v1/logs.
func (h *LogHandler) List(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}

	page, err := h.svc.List(c.Request.Context(), caller.TenantID, c.Request.URL.Query())
	if err != nil {
		respondServiceError(c, h.log, "log.list", err)
		return
	}

	httputil.RespondPage(c, page.Data, page.Meta)
}

// Get handles GET /api/v1/logs/:id.
func (h *LogHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	caller, ok := callerIdentity(c)
	if !ok {
		return
	}

	entry, err := h.svc.Get(c.Request.Context(), caller.TenantID, id)
	if err != nil {
		respondServiceError(c, h.log, "log.get", err)
		return
	}

	httputil.RespondData(c, http.StatusOK, entry)
}

// Summary handles GET /api/v1/logs/summary.
func (h *LogHandler) Summary(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}

	counts, err := h.svc.Summary(c.Request.Context(), caller.TenantID)
	if err != nil {
		respondServiceError(c, h.log, "log.summary", err)
		return
	}

	if counts == nil {
		counts = []models.EventTypeCount{}
	}

	httputil.RespondData(c, http.StatusOK, counts)
}
