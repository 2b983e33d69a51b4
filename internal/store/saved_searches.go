package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/persistorai/auditlog/internal/models"
)

const savedSearchSelect = `SELECT id, organization_id, user_id, name, query, is_global,
	created_at, updated_at FROM saved_searches`

// SavedSearchStore provides data access for the saved_searches table.
type SavedSearchStore struct {
	Base
}

// NewSavedSearchStore creates a SavedSearchStore.
func NewSavedSearchStore(base Base) *SavedSearchStore {
	return &SavedSearchStore{Base: base}
}

// CreateSavedSearch inserts ss and fills its ID and timestamps.
func (s *SavedSearchStore) CreateSavedSearch(ctx context.Context, ss *models.SavedSearch) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	q, err := json.Marshal(ss.Query)
	if err != nil {
		return fmt.Errorf("marshalling saved query: %w", err)
	}

	tx, err := s.beginTx(ctx, ss.OrganizationID)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on early return.

	id := uuid.New()

	err = tx.QueryRow(ctx, `
		INSERT INTO saved_searches (id, organization_id, user_id, name, query, is_global)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		id, ss.OrganizationID, ss.UserID, ss.Name, q, ss.IsGlobal,
	).Scan(&ss.CreatedAt, &ss.UpdatedAt)
	if err != nil {
		return classify("inserting saved search", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classify("committing saved search", err)
	}

	ss.ID = id.String()

	return nil
}

// ListSavedSearches returns the caller's and the tenant's global searches, newest first.
func (s *SavedSearchStore) ListSavedSearches(ctx context.Context, tenantID, userID string) ([]models.SavedSearch, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only tx.

	rows, err := tx.Query(ctx, savedSearchSelect+`
		WHERE organization_id = $1 AND (user_id = $2 OR is_global)
		ORDER BY created_at DESC, id DESC`, tenantID, userID)
	if err != nil {
		return nil, classify("listing saved searches", err)
	}
	defer rows.Close()

	out := make([]models.SavedSearch, 0, 8)
	for rows.Next() {
		ss, err := scanSavedSearch(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning saved search row: %w", err)
		}
		out = append(out, *ss)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("iterating saved search rows", err)
	}

	return out, nil
}

// GetSavedSearch returns one search visible to userID within tenantID.
func (s *SavedSearchStore) GetSavedSearch(ctx context.Context, tenantID, userID, id string) (*models.SavedSearch, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrSavedSearchNotFound
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only tx.

	row := tx.QueryRow(ctx, savedSearchSelect+`
		WHERE organization_id = $1 AND id = $3 AND (user_id = $2 OR is_global)`, tenantID, userID, id)

	ss, err := scanSavedSearch(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrSavedSearchNotFound
	}
	if err != nil {
		return nil, classify("getting saved search", err)
	}

	return ss, nil
}

// DeleteSavedSearch removes a search owned by userID within tenantID.
func (s *SavedSearchStore) DeleteSavedSearch(ctx context.Context, tenantID, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return models.ErrSavedSearchNotFound
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx, tenantID)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on early return.

	tag, err := tx.Exec(ctx,
		"DELETE FROM saved_searches WHERE organization_id = $1 AND user_id = $2 AND id = $3",
		tenantID, userID, id)
	if err != nil {
		return classify("deleting saved search", err)
	}

	if tag.RowsAffected() == 0 {
		return models.ErrSavedSearchNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return classify("committing saved search delete", err)
	}

	return nil
}

func scanSavedSearch(scan func(dest ...any) error) (*models.SavedSearch, error) {
	var ss models.SavedSearch
	var id, orgID uuid.UUID
	var q []byte

	if err := scan(&id, &orgID, &ss.UserID, &ss.Name, &q, &ss.IsGlobal, &ss.CreatedAt, &ss.UpdatedAt); err != nil {
		return nil, err
	}

	ss.ID = id.String()
	ss.OrganizationID = orgID.String()
	ss.CreatedAt = ss.CreatedAt.UTC()
	ss.UpdatedAt = ss.UpdatedAt.UTC()

	if err := json.Unmarshal(q, &ss.Query); err != nil {
		return nil, fmt.Errorf("unmarshalling saved query: %w", err)
	}

	return &ss, nil
}
