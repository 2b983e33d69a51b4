// Package store provides the PostgreSQL backend for the audit log.
//
// Each store owns one table (logs, organizations, saved searches) and embeds
// shared helpers (Pool, logger) via the Base struct. Tenant-scoped tables are
// protected by row level security keyed on the app.tenant_id session setting,
// which every tenant transaction sets first.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditlog/internal/dbpool"
	"github.com/persistorai/auditlog/internal/models"
)

const defaultQueryTimeout = 30 * time.Second

// NotifyChannel is the LISTEN/NOTIFY channel carrying log events.
const NotifyChannel = "audit_events"

// Base contains shared dependencies for all stores.
type Base struct {
	Pool *dbpool.Pool
	Log  *logrus.Logger
}

// withTimeout creates a context with the default query timeout.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// setTenant sets the tenant context for RLS policies within a transaction.
func setTenant(ctx context.Context, tx pgx.Tx, tenantID string) error {
	if _, err := uuid.Parse(tenantID); err != nil {
		return models.NewValidationError("organizationId", "must be a UUID")
	}

	_, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID)
	if err != nil {
		return classify("setting tenant context", err)
	}

	return nil
}

// beginTx starts a read-write transaction and sets the tenant context.
func (b *Base) beginTx(ctx context.Context, tenantID string) (pgx.Tx, error) {
	tx, err := b.Pool.Begin(ctx)
	if err != nil {
		return nil, classify("beginning transaction", err)
	}

	if err := setTenant(ctx, tx, tenantID); err != nil {
		tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on setup failure.

		return nil, err
	}

	return tx, nil
}

// beginReadTx starts a read-only transaction and sets the tenant context.
func (b *Base) beginReadTx(ctx context.Context, tenantID string) (pgx.Tx, error) {
	tx, err := b.Pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, classify("beginning read transaction", err)
	}

	if err := setTenant(ctx, tx, tenantID); err != nil {
		tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on setup failure.

		return nil, err
	}

	return tx, nil
}

// notify sends a pg_notify on the audit_events channel (best-effort, post-commit).
func (b *Base) notify(eventType, tenantID string, data any) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload, err := json.Marshal(map[string]any{
		"type":      eventType,
		"tenant_id": tenantID,
		"data":      data,
	})
	if err != nil {
		b.Log.WithError(err).Warn("failed to marshal " + eventType + " notification")
		return
	}

	// pg_notify payloads are capped at 8000 bytes; oversized rows are sent as a reference.
	if len(payload) >= 8000 {
		payload, _ = json.Marshal(map[string]any{ //nolint:errcheck // static keys, cannot fail.
			"type":      eventType,
			"tenant_id": tenantID,
			"truncated": true,
		})
	}

	if _, err := b.Pool.Exec(ctx, "SELECT pg_notify($1, $2)", NotifyChannel, string(payload)); err != nil {
		b.Log.WithError(err).Warn("failed to send " + eventType + " notification")
	}
}

// classify wraps err with msg and marks connection-level failures as
// ErrStoreUnavailable and unique violations as ErrDuplicateKey.
func classify(msg string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return fmt.Errorf("%s: %w", msg, models.ErrDuplicateKey)
		case pgErr.Code == "22P02":
			return fmt.Errorf("%s: %w", msg, models.NewValidationError("id", "is malformed"))
		case len(pgErr.Code) >= 2 && (pgErr.Code[:2] == "08" || pgErr.Code[:2] == "53" || pgErr.Code[:2] == "57"):
			return fmt.Errorf("%s: %w: %w", msg, models.ErrStoreUnavailable, err)
		}

		return fmt.Errorf("%s: %w", msg, err)
	}

	if isTransient(err) {
		return fmt.Errorf("%s: %w: %w", msg, models.ErrStoreUnavailable, err)
	}

	return fmt.Errorf("%s: %w", msg, err)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return true
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr)
}

// Store is the complete PostgreSQL backend.
type Store struct {
	*LogStore
	*OrganizationStore
	*SavedSearchStore

	pool *dbpool.Pool
}

// New creates a Store over pool.
func New(pool *dbpool.Pool, log *logrus.Logger) *Store {
	base := Base{Pool: pool, Log: log}

	return &Store{
		LogStore:          NewLogStore(base),
		OrganizationStore: NewOrganizationStore(base),
		SavedSearchStore:  NewSavedSearchStore(base),
		pool:              pool,
	}
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
	}

	return nil
}

// Close closes the underlying pool.
func (s *Store) Close(_ context.Context) error {
	s.pool.Close()

	return nil
}
