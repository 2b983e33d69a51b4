package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/persistorai/auditlog/internal/models"
)

// setTenant scopes RLS policies to tenantID for the rest of the transaction.
func setTenant(ctx context.Context, tx pgx.Tx, tenantID string) error {
	_, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID)
	return err
}

// insertOrganizations copies orgs, keeping IDs and API key hashes so
// existing keys keep working.
func insertOrganizations(ctx context.Context, tx pgx.Tx, orgs []models.Organization) (int, error) {
	inserted := 0
	for i := range orgs {
		o := &orgs[i]
		if _, err := uuid.Parse(o.ID); err != nil {
			return inserted, fmt.Errorf("organization %s: id is not a UUID", o.ID)
		}

		tag, err := tx.Exec(ctx,
			`INSERT INTO organizations (id, name, email, api_key_hash, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO NOTHING`,
			o.ID, o.Name, o.Email, o.APIKeyHash, o.CreatedAt.UTC(), o.UpdatedAt.UTC())
		if err != nil {
			return inserted, fmt.Errorf("organization %s: %w", o.ID, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// insertSavedSearches copies searches of known organizations. ObjectIDs are
// mapped to deterministic UUIDs so reruns stay idempotent.
func insertSavedSearches(ctx context.Context, tx pgx.Tx, searches []models.SavedSearch, known map[string]bool) (int, error) {
	inserted := 0
	for i := range searches {
		ss := &searches[i]
		if !known[ss.OrganizationID] {
			continue
		}

		q, err := json.Marshal(ss.Query)
		if err != nil {
			return inserted, fmt.Errorf("saved search %s: %w", ss.ID, err)
		}

		if err := setTenant(ctx, tx, ss.OrganizationID); err != nil {
			return inserted, err
		}

		tag, err := tx.Exec(ctx,
			`INSERT INTO saved_searches (id, organization_id, user_id, name, query, is_global, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id) DO NOTHING`,
			deterministicUUID(ss.ID), ss.OrganizationID, ss.UserID, ss.Name, q, ss.IsGlobal,
			ss.CreatedAt.UTC(), ss.UpdatedAt.UTC())
		if err != nil {
			return inserted, fmt.Errorf("saved search %s: %w", ss.ID, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// insertLogBatch copies one batch of entries. Entries of unknown tenants or
// with unknown event types are skipped and reported.
func insertLogBatch(ctx context.Context, tx pgx.Tx, batch []logRecord, known map[string]bool) (int, []skippedLog, error) {
	var (
		inserted int
		skipped  []skippedLog
		current  string
	)

	for i := range batch {
		rec := &batch[i]
		id := rec.ID.Hex()
		e := rec.LogEntry

		if reason := skipReason(&e, known); reason != "" {
			skipped = append(skipped, skippedLog{ID: id, Reason: reason})
			continue
		}

		if e.OrganizationID != current {
			if err := setTenant(ctx, tx, e.OrganizationID); err != nil {
				return inserted, skipped, err
			}
			current = e.OrganizationID
		}

		normalizeLog(&e, rec.ID.Timestamp())

		metaJSON, err := json.Marshal(e.Metadata)
		if err != nil {
			skipped = append(skipped, skippedLog{ID: id, Reason: "metadata is not JSON-serializable"})
			continue
		}

		tag, err := tx.Exec(ctx,
			`INSERT INTO audit_logs (id, organization_id, actor_id, actor_name, actor_email, action,
			    event_type, description, metadata, search_text, "timestamp", created_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
			 ON CONFLICT (id) DO NOTHING`,
			id, e.OrganizationID, e.Actor.ID, e.Actor.Name, e.Actor.Email, e.Action,
			string(e.EventType), e.Description, metaJSON, e.SearchText, e.Timestamp, e.CreatedAt)
		if err != nil {
			return inserted, skipped, fmt.Errorf("log %s: %w", id, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, skipped, nil
}

func skipReason(e *models.LogEntry, known map[string]bool) string {
	switch {
	case !known[e.OrganizationID]:
		return "organization not migrated"
	case e.Action == "":
		return "missing action"
	case e.EventType != "" && !e.EventType.Valid():
		return fmt.Sprintf("unknown event type %q", e.EventType)
	}
	return ""
}

// normalizeLog fills defaults the service applies at ingestion. created is
// the ObjectID's creation time, used when the document has no createdAt.
func normalizeLog(e *models.LogEntry, created time.Time) {
	if e.EventType == "" {
		e.EventType = models.EventOther
	}
	if e.Actor.ID == "" {
		e.Actor.ID = "unknown"
	}
	if e.Actor.Name == "" {
		e.Actor.Name = "Unknown"
	}
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = created
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = e.CreatedAt
	}
	if e.SearchText == "" {
		e.SearchText = models.MetadataText(e.Metadata)
	}
	e.Timestamp = e.Timestamp.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
}

// countOrganizations counts migrated organizations present in PostgreSQL.
func countOrganizations(ctx context.Context, tx pgx.Tx, orgs []models.Organization) (int, error) {
	ids := make([]string, len(orgs))
	for i := range orgs {
		ids[i] = orgs[i].ID
	}

	var count int
	err := tx.QueryRow(ctx, `SELECT count(*) FROM organizations WHERE id = ANY($1::uuid[])`, ids).Scan(&count)
	return count, err
}
