package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/persistorai/auditlog/internal/models"
	"github.com/persistorai/auditlog/internal/query"
)

// maxListLimit is a defense-in-depth cap on limit values for list queries.
const maxListLimit = 1000

const logSelect = `SELECT id, organization_id, actor_id, actor_name, actor_email, action,
	event_type, description, metadata, search_text, "timestamp", created_at FROM audit_logs`

// LogStore provides data access for the audit_logs table.
type LogStore struct {
	Base
}

// NewLogStore creates a LogStore.
func NewLogStore(base Base) *LogStore {
	return &LogStore{Base: base}
}

// InsertLog writes entry, assigning a time-ordered ID and CreatedAt.
func (s *LogStore) InsertLog(ctx context.Context, entry *models.LogEntry) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generating log id: %w", err)
	}

	metadata := entry.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		// Unserializable metadata is stored empty; search text is already "".
		metaJSON = []byte("{}")
	}

	tx, err := s.beginTx(ctx, entry.OrganizationID)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on early return.

	err = tx.QueryRow(ctx, `
		INSERT INTO audit_logs (id, organization_id, actor_id, actor_name, actor_email, action,
			event_type, description, metadata, search_text, "timestamp")
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`,
		id.String(), entry.OrganizationID, entry.Actor.ID, entry.Actor.Name, entry.Actor.Email,
		entry.Action, string(entry.EventType), entry.Description, metaJSON, entry.SearchText,
		entry.Timestamp.UTC().Truncate(time.Microsecond),
	).Scan(&entry.CreatedAt)
	if err != nil {
		return classify("inserting log entry", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classify("committing log entry", err)
	}

	entry.ID = id.String()
	entry.Timestamp = entry.Timestamp.UTC().Truncate(time.Microsecond)
	entry.CreatedAt = entry.CreatedAt.UTC()
	entry.Metadata = metadata

	s.notify("log.created", entry.OrganizationID, entry)

	return nil
}

// CountLogs counts entries matching filter.
func (s *LogStore) CountLogs(ctx context.Context, tenantID string, filter query.Expr) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	b := newSQLBuilder(logColumns)

	where, err := b.where(filter)
	if err != nil {
		return 0, fmt.Errorf("building log filter: %w", err)
	}

	tx, err := s.beginReadTx(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only tx.

	var n int64
	if err := tx.QueryRow(ctx, "SELECT count(*) FROM audit_logs WHERE "+where, b.args...).Scan(&n); err != nil {
		return 0, classify("counting log entries", err)
	}

	return n, nil
}

// FindLogs returns entries matching filter in opts order.
func (s *LogStore) FindLogs(
	ctx context.Context, tenantID string, filter query.Expr, opts query.FindOptions,
) ([]models.LogEntry, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	b := newSQLBuilder(logColumns)

	where, err := b.where(filter)
	if err != nil {
		return nil, fmt.Errorf("building log filter: %w", err)
	}

	order, err := b.orderBy(opts.Sort)
	if err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	sql := logSelect + " WHERE " + where + order +
		" LIMIT " + b.arg(limit) + " OFFSET " + b.arg(opts.Skip)

	tx, err := s.beginReadTx(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only tx.

	rows, err := tx.Query(ctx, sql, b.args...)
	if err != nil {
		return nil, classify("querying log entries", err)
	}

	return collectLogs(rows)
}

// GetLog returns a single entry of tenantID.
func (s *LogStore) GetLog(ctx context.Context, tenantID, id string) (*models.LogEntry, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only tx.

	row := tx.QueryRow(ctx, logSelect+" WHERE organization_id = $1 AND id = $2", tenantID, id)

	e, err := scanLog(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrLogNotFound
	}
	if err != nil {
		return nil, classify("getting log entry", err)
	}

	return e, nil
}

// SummarizeLogs counts entries per event type, largest first.
func (s *LogStore) SummarizeLogs(ctx context.Context, tenantID string) ([]models.EventTypeCount, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only tx.

	rows, err := tx.Query(ctx, `
		SELECT event_type, count(*) FROM audit_logs
		WHERE organization_id = $1
		GROUP BY event_type
		ORDER BY count(*) DESC, event_type ASC`, tenantID)
	if err != nil {
		return nil, classify("summarizing log entries", err)
	}
	defer rows.Close()

	out := make([]models.EventTypeCount, 0, len(models.EventTypes))
	for rows.Next() {
		var c models.EventTypeCount
		var et string
		if err := rows.Scan(&et, &c.Count); err != nil {
			return nil, fmt.Errorf("scanning summary row: %w", err)
		}
		c.EventType = models.EventType(et)
		out = append(out, c)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("iterating summary rows", err)
	}

	return out, nil
}

// scanLog scans a single row selected with logSelect.
func scanLog(scan func(dest ...any) error) (*models.LogEntry, error) {
	var e models.LogEntry
	var orgID uuid.UUID
	var eventType string
	var metaJSON []byte

	err := scan(
		&e.ID,
		&orgID,
		&e.Actor.ID,
		&e.Actor.Name,
		&e.Actor.Email,
		&e.Action,
		&eventType,
		&e.Description,
		&metaJSON,
		&e.SearchText,
		&e.Timestamp,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.OrganizationID = orgID.String()
	e.EventType = models.EventType(eventType)
	e.Timestamp = e.Timestamp.UTC()
	e.CreatedAt = e.CreatedAt.UTC()

	if err := json.Unmarshal(metaJSON, &e.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshalling log metadata: %w", err)
	}

	return &e, nil
}

// collectLogs scans all rows and closes them.
func collectLogs(rows pgx.Rows) ([]models.LogEntry, error) {
	defer rows.Close()

	entries := make([]models.LogEntry, 0, 16)

	for rows.Next() {
		e, err := scanLog(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning log row: %w", err)
		}

		entries = append(entries, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("iterating log rows", err)
	}

	return entries, nil
}
