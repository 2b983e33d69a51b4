package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Pinger checks backing store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SchemaFunc returns the schema version recorded in the database.
type SchemaFunc func(ctx context.Context) (int64, error)

// HealthConfig holds the dependencies of HealthHandler. Schema and
// QueueDepth are optional.
type HealthConfig struct {
	Store      Pinger
	Backend    string
	Version    string
	Schema     SchemaFunc
	WantSchema int64
	QueueDepth func() int
	Clients    func() int
}

// HealthHandler serves health check endpoints.
type HealthHandler struct {
	cfg       HealthConfig
	log       *logrus.Logger
	startTime time.Time
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg HealthConfig, log *logrus.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, log: log, startTime: time.Now()}
}

type healthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Backend       string  `json:"backend"`
	Store         string  `json:"store"`
	LiveClients   int     `json:"live_clients"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

type readinessResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Schema  *int64            `json:"schema_version,omitempty"`
	Anomaly int               `json:"anomaly_queue_depth"`
}

// Liveness handles GET /api/v1/health. It always answers 200; store
// connectivity is informational.
func (h *HealthHandler) Liveness(c *gin.Context) {
	resp := healthResponse{
		Status:        "ok",
		Version:       h.cfg.Version,
		Backend:       h.cfg.Backend,
		Store:         "connected",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}

	if h.cfg.Store == nil {
		resp.Store = "not_configured"
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := h.cfg.Store.Ping(ctx); err != nil {
			resp.Store = "disconnected"
		}
	}

	if h.cfg.Clients != nil {
		resp.LiveClients = h.cfg.Clients()
	}

	c.JSON(http.StatusOK, resp)
}

// Readiness handles GET /api/v1/ready. It answers 503 until the store is
// reachable and, for Postgres, the schema is fully migrated.
func (h *HealthHandler) Readiness(c *gin.Context) {
	resp := readinessResponse{
		Status: "ready",
		Checks: map[string]string{"store": "ok"},
	}
	code := http.StatusOK

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if h.cfg.Store == nil {
		resp.Checks["store"] = "not_configured"
		resp.Status = "not_ready"
	} else if err := h.cfg.Store.Ping(ctx); err != nil {
		h.log.WithError(err).Error("readiness: store ping failed")
		resp.Checks["store"] = "error"
		resp.Status = "not_ready"
	}

	if h.cfg.Schema != nil {
		if resp.Checks["store"] == "ok" {
			h.checkSchema(ctx, &resp)
		} else {
			resp.Checks["schema"] = "unknown"
		}
	}

	if resp.Status != "ready" {
		code = http.StatusServiceUnavailable
	}

	if h.cfg.QueueDepth != nil {
		resp.Anomaly = h.cfg.QueueDepth()
	}

	c.JSON(code, resp)
}

func (h *HealthHandler) checkSchema(ctx context.Context, resp *readinessResponse) {
	v, err := h.cfg.Schema(ctx)
	if err != nil {
		h.log.WithError(err).Error("readiness: schema check failed")
		resp.Checks["schema"] = "error"
		resp.Status = "not_ready"
		return
	}

	resp.Schema = &v

	if v < h.cfg.WantSchema {
		resp.Checks["schema"] = "pending_migrations"
		resp.Status = "not_ready"
		return
	}

	resp.Checks["schema"] = "ok"
}
