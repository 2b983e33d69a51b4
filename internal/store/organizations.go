package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/persistorai/auditlog/internal/models"
)

const orgSelect = `SELECT id, name, email, api_key_hash, created_at, updated_at FROM organizations`

// OrganizationStore provides data access for the organizations table. The
// table has no RLS: it is only reached by admin routes and key lookups.
type OrganizationStore struct {
	Base
}

// NewOrganizationStore creates an OrganizationStore.
func NewOrganizationStore(base Base) *OrganizationStore {
	return &OrganizationStore{Base: base}
}

// CreateOrganization inserts org and fills its ID and timestamps.
func (s *OrganizationStore) CreateOrganization(ctx context.Context, org *models.Organization) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	id := uuid.New()

	err := s.Pool.QueryRow(ctx, `
		INSERT INTO organizations (id, name, email, api_key_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		id, org.Name, org.Email, org.APIKeyHash,
	).Scan(&org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return classify("inserting organization", err)
	}

	org.ID = id.String()

	return nil
}

// GetOrganization returns the organization with id.
func (s *OrganizationStore) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrOrganizationNotFound
	}

	return s.getOne(ctx, orgSelect+" WHERE id = $1", id)
}

// GetOrganizationByAPIKeyHash returns the organization owning an API key hash.
func (s *OrganizationStore) GetOrganizationByAPIKeyHash(ctx context.Context, hash string) (*models.Organization, error) {
	return s.getOne(ctx, orgSelect+" WHERE api_key_hash = $1", hash)
}

func (s *OrganizationStore) getOne(ctx context.Context, sql string, arg any) (*models.Organization, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	org, err := scanOrganization(s.Pool.QueryRow(ctx, sql, arg).Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrOrganizationNotFound
	}
	if err != nil {
		return nil, classify("getting organization", err)
	}

	return org, nil
}

// CountOrganizations returns the number of organizations.
func (s *OrganizationStore) CountOrganizations(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var n int64
	if err := s.Pool.QueryRow(ctx, "SELECT count(*) FROM organizations").Scan(&n); err != nil {
		return 0, classify("counting organizations", err)
	}

	return n, nil
}

// ListOrganizations returns a page of organizations, newest first.
func (s *OrganizationStore) ListOrganizations(ctx context.Context, skip, limit int) ([]models.Organization, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := s.Pool.Query(ctx, orgSelect+" ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2", limit, skip)
	if err != nil {
		return nil, classify("listing organizations", err)
	}
	defer rows.Close()

	orgs := make([]models.Organization, 0, limit)
	for rows.Next() {
		o, err := scanOrganization(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning organization row: %w", err)
		}
		orgs = append(orgs, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("iterating organization rows", err)
	}

	return orgs, nil
}

// UpdateOrganization persists name and email changes on org.
func (s *OrganizationStore) UpdateOrganization(ctx context.Context, org *models.Organization) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	err := s.Pool.QueryRow(ctx, `
		UPDATE organizations SET name = $2, email = $3, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		org.ID, org.Name, org.Email,
	).Scan(&org.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrOrganizationNotFound
	}
	if err != nil {
		return classify("updating organization", err)
	}

	return nil
}

// SetAPIKeyHash replaces an organization's API key hash.
func (s *OrganizationStore) SetAPIKeyHash(ctx context.Context, id, hash string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := s.Pool.Exec(ctx,
		"UPDATE organizations SET api_key_hash = $2, updated_at = now() WHERE id = $1", id, hash)
	if err != nil {
		return classify("rotating API key", err)
	}

	if tag.RowsAffected() == 0 {
		return models.ErrOrganizationNotFound
	}

	return nil
}

// DeleteOrganization removes an organization and, by cascade, its logs and
// saved searches.
func (s *OrganizationStore) DeleteOrganization(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return models.ErrOrganizationNotFound
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := s.Pool.Exec(ctx, "DELETE FROM organizations WHERE id = $1", id)
	if err != nil {
		return classify("deleting organization", err)
	}

	if tag.RowsAffected() == 0 {
		return models.ErrOrganizationNotFound
	}

	return nil
}

func scanOrganization(scan func(dest ...any) error) (*models.Organization, error) {
	var o models.Organization
	var id uuid.UUID

	if err := scan(&id, &o.Name, &o.Email, &o.APIKeyHash, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}

	o.ID = id.String()
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()

	return &o, nil
}
