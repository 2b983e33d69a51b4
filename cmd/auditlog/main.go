// Command auditlog runs the multi-tenant audit log HTTP service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditlog/internal/api"
	"github.com/persistorai/auditlog/internal/auth"
	"github.com/persistorai/auditlog/internal/config"
	"github.com/persistorai/auditlog/internal/middleware"
	"github.com/persistorai/auditlog/internal/pagination"
	"github.com/persistorai/auditlog/internal/security"
	"github.com/persistorai/auditlog/internal/service"
	"github.com/persistorai/auditlog/internal/ws"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	log := newLogger(cfg)

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("auditlog exited")
	}
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if cfg.LogFormat == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	return log
}

func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	hub := ws.NewHub(ws.HubConfig{}, log)
	hubCtx, cancelHub := context.WithCancel(context.Background())
	defer cancelHub()
	go hub.Run(hubCtx)

	publisher := service.NewHubPublisher(hub, log)

	be, err := openBackend(ctx, cfg, log, hub)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.store.Close(context.Background()); err != nil {
			log.WithError(err).Warn("closing store")
		}
	}()

	logPublisher := service.Publisher(publisher)
	if be.notifies {
		logPublisher = service.NopPublisher{}
	}

	jwts, err := auth.NewJWTService(cfg.JWTSecret.Value(), cfg.JWTTTL)
	if err != nil {
		return err
	}

	detector := service.NewAnomalyDetector(
		be.store, be.store, newNotifier(cfg, log), publisher,
		cfg.AnomalyThreshold, cfg.AnomalyWindow, log,
	)
	worker := service.NewAnomalyWorker(detector, log, cfg.AnomalyQueueSize)

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(workerCtx)
	}()

	planner := pagination.NewPlanner(pagination.LogConfig(cfg.PageDefaultLimit, cfg.PageMaxLimit))
	logs := service.NewLogService(be.store, planner, worker, logPublisher, log)
	orgs := service.NewOrganizationService(be.store, jwts, log)
	keyCache := middleware.NewCachedTenantLookup(ctx, orgs)

	tenantStore, closeTenantStore, err := newTenantRateStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeTenantStore()

	health := api.HealthConfig{
		Store:      be.store,
		Backend:    cfg.Backend,
		Version:    config.Version,
		Schema:     be.schema,
		WantSchema: be.wantSchema,
		QueueDepth: worker.QueueDepth,
		Clients:    hub.ClientCount,
	}

	router := api.NewRouter(ctx, &api.RouterDeps{
		Log:           log,
		Hub:           hub,
		Logs:          logs,
		SavedSearches: service.NewSavedSearchService(be.store, logs, log),
		Organizations: orgs,
		Tokens:        jwts,
		Auth:          middleware.NewAuthenticator(jwts, keyCache, security.NewBruteForceGuard(ctx, log), log),
		KeyCache:      keyCache,
		Health:        health,
		TenantStore:   tenantStore,
		TenantLimit:   middleware.RateLimitConfig{Requests: cfg.TenantRateRequests, Window: cfg.TenantRateWindow},
		AdminToken:    cfg.AdminToken.Value(),
		CORSOrigins:   cfg.CORSOrigins,
		IPRate:        cfg.IPRate,
		IPBurst:       cfg.IPBurst,
		MaxBodyBytes:  cfg.MaxBodyBytes,
		ExposeErrors:  cfg.IsDevelopment(),
		EnableDocs:    cfg.EnableDocs,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":    cfg.Addr(),
			"backend": cfg.Backend,
			"version": config.Version,
		}).Info("auditlog listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	hub.Shutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown")
	}

	// Pending anomaly checks are drained before the store closes.
	cancelWorker()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Warn("anomaly worker did not drain before shutdown timeout")
	}

	log.Info("auditlog stopped")

	return nil
}
