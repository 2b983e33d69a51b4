package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/persistorai/auditlog/internal/api"
)

func healthRouter(cfg api.HealthConfig) *gin.Engine {
	h := api.NewHealthHandler(cfg, testLogger())

	r := gin.New()
	r.GET("/health", h.Liveness)
	r.GET("/ready", h.Readiness)

	return r
}

func TestLiveness_ReturnsOK(t *testing.T) {
	t.Parallel()

	r := healthRouter(api.HealthConfig{Store: stubPinger{err: errors.New("down")}, Backend: "memory", Version: "test-v1"})

	w := doRequest(r, http.MethodGet, "/health", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if body["status"] != "ok" || body["version"] != "test-v1" || body["store"] != "disconnected" {
		t.Errorf("body = %v", body)
	}
}

func TestReadiness(t *testing.T) {
	t.Parallel()

	schemaAt := func(v int64, err error) api.SchemaFunc {
		return func(context.Context) (int64, error) { return v, err }
	}

	tests := []struct {
		name   string
		cfg    api.HealthConfig
		status int
		checks map[string]string
	}{
		{
			name:   "ready without schema",
			cfg:    api.HealthConfig{Store: stubPinger{}},
			status: http.StatusOK,
			checks: map[string]string{"store": "ok"},
		},
		{
			name:   "store down",
			cfg:    api.HealthConfig{Store: stubPinger{err: errors.New("refused")}, Schema: schemaAt(3, nil), WantSchema: 3},
			status: http.StatusServiceUnavailable,
			checks: map[string]string{"store": "error", "schema": "unknown"},
		},
		{
			name:   "pending migrations",
			cfg:    api.HealthConfig{Store: stubPinger{}, Schema: schemaAt(2, nil), WantSchema: 3},
			status: http.StatusServiceUnavailable,
			checks: map[string]string{"store": "ok", "schema": "pending_migrations"},
		},
		{
			name:   "migrated",
			cfg:    api.HealthConfig{Store: stubPinger{}, Schema: schemaAt(3, nil), WantSchema: 3, QueueDepth: func() int { return 4 }},
			status: http.StatusOK,
			checks: map[string]string{"store": "ok", "schema": "ok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := doRequest(healthRouter(tt.cfg), http.MethodGet, "/ready", "")

			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}

			var body struct {
				Checks map[string]string `json:"checks"`
				Depth  int               `json:"anomaly_queue_depth"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}

			for k, v := range tt.checks {
				if body.Checks[k] != v {
					t.Errorf("check %s = %q, want %q", k, body.Checks[k], v)
				}
			}

			if tt.cfg.QueueDepth != nil && body.Depth != 4 {
				t.Errorf("queue depth = %d", body.Depth)
			}
		})
	}
}
