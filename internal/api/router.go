// Package api provides the HTTP handlers and router of the audit log service.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditlog/internal/middleware"
	"github.com/persistorai/auditlog/internal/ws"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log           *logrus.Logger
	Hub           *ws.Hub
	Logs          LogService
	SavedSearches SavedSearchService
	Organizations OrganizationService
	Tokens        TokenIssuer
	Auth          *middleware.Authenticator
	KeyCache      KeyInvalidator
	Health        HealthConfig
	TenantStore   middleware.RateLimitStore
	TenantLimit   middleware.RateLimitConfig
	AdminToken    string
	CORSOrigins   []string
	IPRate        int
	IPBurst       int
	MaxBodyBytes  int64
	ExposeErrors  bool
	EnableDocs    bool
}

// Router-level defaults.
const (
	defaultMaxBodySize = 1 << 20
	defaultIPRate      = 100
	defaultIPBurst     = 200
)

func (d *RouterDeps) withDefaults() {
	if d.IPRate <= 0 {
		d.IPRate = defaultIPRate
	}
	if d.IPBurst <= 0 {
		d.IPBurst = defaultIPBurst
	}
	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = defaultMaxBodySize
	}
	if d.TenantLimit.Requests <= 0 {
		d.TenantLimit.Requests = middleware.DefaultTenantRequests
	}
	if d.TenantLimit.Window <= 0 {
		d.TenantLimit.Window = middleware.DefaultTenantWindow
	}
}

// setupMiddleware configures the global middleware chain.
func setupMiddleware(ctx context.Context, r *gin.Engine, deps *RouterDeps) {
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID(deps.Log))
	r.Use(middleware.RequestLogger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.MaxBodySize(deps.MaxBodyBytes))

	// cors.New panics on an empty origin list.
	if len(deps.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders:    []string{middleware.RequestIDHeader, "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
			MaxAge:           1 * time.Hour,
			AllowCredentials: false,
		}))
	}

	r.Use(middleware.NewRateLimiter(ctx, deps.IPRate, deps.IPBurst).Handler())
	r.Use(middleware.PrometheusMiddleware())

	if deps.ExposeErrors {
		r.Use(exposeErrors())
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if deps.EnableDocs {
		registerDocs(r)
	}
}

// registerRoutes sets up all API route handlers on the given router group.
func registerRoutes(ctx context.Context, api *gin.RouterGroup, deps *RouterDeps) {
	log := deps.Log

	health := NewHealthHandler(deps.Health, log)
	logs := NewLogHandler(deps.Logs, log)
	searches := NewSavedSearchHandler(deps.SavedSearches, log)
	orgs := NewOrganizationHandler(deps.Organizations, deps.KeyCache, log)
	tokens := NewTokenHandler(deps.Tokens, log)

	// Health and readiness are unauthenticated.
	api.GET("/health", health.Liveness)
	api.GET("/ready", health.Readiness)

	// Tenant administration uses the admin token, not tenant credentials.
	admin := api.Group("/admin", middleware.AdminAuth(deps.AdminToken, log))
	admin.GET("/organizations", orgs.List)
	admin.POST("/organizations", orgs.Create)
	admin.GET("/organizations/:id", orgs.Get)
	admin.PATCH("/organizations/:id", orgs.Update)
	admin.DELETE("/organizations/:id", orgs.Delete)

	authed := api.Group("", deps.Auth.Middleware())

	// Logs, limited per tenant.
	logGroup := authed.Group("/logs", middleware.TenantRateLimit(deps.TenantStore, deps.TenantLimit, log))
	logGroup.POST("", logs.Create)
	logGroup.GET("", logs.List)
	logGroup.GET("/summary", logs.Summary)
	logGroup.GET("/stream", streamHandler(ctx, log, deps.Hub, deps.CORSOrigins, deps.Auth))
	logGroup.GET("/:id", logs.Get)

	// Saved searches.
	authed.GET("/saved-searches", searches.List)
	authed.POST("/saved-searches", searches.Create)
	authed.GET("/saved-searches/:id", searches.Get)
	authed.DELETE("/saved-searches/:id", searches.Delete)
	authed.GET("/saved-searches/:id/results", searches.Results)

	// The caller's organization.
	authed.GET("/organization", orgs.Me)
	authed.POST("/organization/rotate-key", middleware.RequireService(), orgs.RotateKey)

	// Token exchange for API key holders.
	authed.POST("/auth/token", middleware.RequireService(), tokens.Issue)
}

// NewRouter creates and configures the Gin engine with all middleware and routes.
func NewRouter(ctx context.Context, deps *RouterDeps) http.Handler {
	deps.withDefaults()

	if deps.TenantStore == nil {
		deps.TenantStore = middleware.NewMemoryRateLimitStore(ctx)
	}

	r := gin.New()
	setupMiddleware(ctx, r, deps)
	registerRoutes(ctx, r.Group("/api/v1"), deps)

	return r
}
