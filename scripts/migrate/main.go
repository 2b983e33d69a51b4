// Package main copies organizations, saved searches and audit log entries
// from a MongoDB deployment into PostgreSQL.
//
// Usage:
//
//	MONGO_URI=mongodb://... DATABASE_URL=postgres://... go run ./scripts/migrate
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditlog/internal/db"
	"github.com/persistorai/auditlog/internal/db/migrations"
	"github.com/persistorai/auditlog/internal/dbpool"
)

// config holds environment-driven migration settings.
type config struct {
	MongoURI      string
	MongoDatabase string
	DatabaseURL   string
	TenantID      string
	BatchSize     int
	DryRun        bool
}

// report holds the final migration summary.
type report struct {
	Source        string
	Target        string
	OrgsRead      int
	OrgsInserted  int
	OrgsVerified  int
	SearchesRead  int
	SearchesAdded int
	LogsRead      int
	LogsInserted  int
	LogsVerified  int
	SkippedLogs   []skippedLog
	Duration      time.Duration
	DryRun        bool
	Err           error
}

// skippedLog records an entry that could not be copied.
type skippedLog struct {
	ID     string
	Reason string
}

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg := loadConfig()
	if cfg.MongoURI == "" || cfg.DatabaseURL == "" {
		log.Error("MONGO_URI and DATABASE_URL are required")
		os.Exit(1)
	}

	log.WithFields(logrus.Fields{
		"mongo_db": cfg.MongoDatabase,
		"tenant":   cfg.TenantID,
		"dry_run":  cfg.DryRun,
	}).Info("starting migration")

	start := time.Now()
	r, err := runMigration(context.Background(), cfg, log)
	r.Duration = time.Since(start)
	if err != nil {
		r.Err = err
		log.WithError(err).Error("migration failed")
	}
	printReport(&r)
	if err != nil {
		os.Exit(1)
	}
}

// loadConfig reads configuration from environment variables.
func loadConfig() config {
	return config{
		MongoURI:      envOr("MONGO_URI", ""),
		MongoDatabase: envOr("MONGO_DATABASE", "auditlog"),
		DatabaseURL:   envOr("DATABASE_URL", ""),
		TenantID:      os.Getenv("TENANT_ID"),
		BatchSize:     envInt("BATCH_SIZE", 500),
		DryRun:        os.Getenv("DRY_RUN") == "true" || os.Getenv("DRY_RUN") == "1",
	}
}

// runMigration executes the full migration pipeline. Everything is written in
// one transaction so a failed run leaves PostgreSQL untouched.
//
//nolint:funlen // Migration pipeline is sequential; splitting would hurt readability.
func runMigration(ctx context.Context, cfg config, log *logrus.Logger) (report, error) {
	r := report{
		Source: sanitizeURL(cfg.MongoURI) + "/" + cfg.MongoDatabase,
		Target: sanitizeURL(cfg.DatabaseURL),
		DryRun: cfg.DryRun,
	}

	src, err := openSource(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return r, err
	}
	defer src.Close(context.Background()) //nolint:errcheck // best-effort disconnect.

	orgs, err := src.readOrganizations(ctx, cfg.TenantID)
	if err != nil {
		return r, fmt.Errorf("read organizations: %w", err)
	}
	r.OrgsRead = len(orgs)
	log.WithField("count", r.OrgsRead).Info("read organizations from mongo")

	searches, err := src.readSavedSearches(ctx, cfg.TenantID)
	if err != nil {
		return r, fmt.Errorf("read saved searches: %w", err)
	}
	r.SearchesRead = len(searches)
	log.WithField("count", r.SearchesRead).Info("read saved searches from mongo")

	r.LogsRead, err = src.countLogs(ctx, cfg.TenantID)
	if err != nil {
		return r, fmt.Errorf("count logs: %w", err)
	}
	log.WithField("count", r.LogsRead).Info("counted log entries in mongo")

	if cfg.DryRun {
		log.Info("dry run, skipping PostgreSQL writes")
		r.OrgsInserted = r.OrgsRead
		r.SearchesAdded = r.SearchesRead
		r.LogsInserted = r.LogsRead
		return r, nil
	}

	pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL, dbpool.Options{MaxConns: 2})
	if err != nil {
		return r, fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
		return r, fmt.Errorf("migrate schema: %w", err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return r, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	if r.OrgsInserted, err = insertOrganizations(ctx, tx, orgs); err != nil {
		return r, fmt.Errorf("insert organizations: %w", err)
	}
	log.WithField("count", r.OrgsInserted).Info("inserted organizations")

	known := make(map[string]bool, len(orgs))
	for i := range orgs {
		known[orgs[i].ID] = true
	}

	if r.SearchesAdded, err = insertSavedSearches(ctx, tx, searches, known); err != nil {
		return r, fmt.Errorf("insert saved searches: %w", err)
	}
	log.WithField("count", r.SearchesAdded).Info("inserted saved searches")

	err = src.eachLogBatch(ctx, cfg.TenantID, cfg.BatchSize, func(batch []logRecord) error {
		inserted, skipped, err := insertLogBatch(ctx, tx, batch, known)
		if err != nil {
			return err
		}
		r.LogsInserted += inserted
		r.SkippedLogs = append(r.SkippedLogs, skipped...)
		log.WithField("total", r.LogsInserted).Debug("inserted log batch")
		return nil
	})
	if err != nil {
		return r, fmt.Errorf("insert logs: %w", err)
	}
	log.WithFields(logrus.Fields{
		"count":   r.LogsInserted,
		"skipped": len(r.SkippedLogs),
	}).Info("inserted log entries")

	if r.OrgsVerified, err = countOrganizations(ctx, tx, orgs); err != nil {
		return r, fmt.Errorf("verify organization count: %w", err)
	}
	if r.LogsVerified, err = countTenantRows(ctx, tx, "audit_logs", orgs); err != nil {
		return r, fmt.Errorf("verify log count: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return r, fmt.Errorf("commit: %w", err)
	}
	log.Info("transaction committed")
	return r, nil
}
