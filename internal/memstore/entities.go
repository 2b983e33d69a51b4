package memstore

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/persistorai/auditlog/internal/models"
)

// CreateOrganization stores org. Emails and key hashes are unique.
func (s *Store) CreateOrganization(_ context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.orgs {
		if o.Email == org.Email || o.APIKeyHash == org.APIKeyHash {
			return models.ErrDuplicateKey
		}
	}

	now := s.now().UTC()
	org.ID = uuid.NewString()
	org.CreatedAt = now
	org.UpdatedAt = now

	stored := *org
	s.orgs[org.ID] = &stored

	return nil
}

// GetOrganization returns a copy of the organization with id.
func (s *Store) GetOrganization(_ context.Context, id string) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orgs[id]
	if !ok {
		return nil, models.ErrOrganizationNotFound
	}

	out := *o

	return &out, nil
}

// GetOrganizationByAPIKeyHash returns the organization owning hash.
func (s *Store) GetOrganizationByAPIKeyHash(_ context.Context, hash string) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.orgs {
		if o.APIKeyHash == hash {
			out := *o
			return &out, nil
		}
	}

	return nil, models.ErrOrganizationNotFound
}

// CountOrganizations returns the number of organizations.
func (s *Store) CountOrganizations(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.orgs)), nil
}

// ListOrganizations returns a page of organizations, newest first.
func (s *Store) ListOrganizations(_ context.Context, skip, limit int) ([]models.Organization, error) {
	s.mu.RLock()
	all := make([]models.Organization, 0, len(s.orgs))
	for _, o := range s.orgs {
		all = append(all, *o)
	}
	s.mu.RUnlock()

	slices.SortFunc(all, func(a, b models.Organization) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}

		return strings.Compare(b.ID, a.ID)
	})

	if skip >= len(all) {
		return []models.Organization{}, nil
	}

	all = all[skip:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	return all, nil
}

// UpdateOrganization persists name and email changes on org.
func (s *Store) UpdateOrganization(_ context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.orgs[org.ID]
	if !ok {
		return models.ErrOrganizationNotFound
	}

	for id, o := range s.orgs {
		if id != org.ID && o.Email == org.Email {
			return models.ErrDuplicateKey
		}
	}

	cur.Name = org.Name
	cur.Email = org.Email
	cur.UpdatedAt = s.now().UTC()
	org.UpdatedAt = cur.UpdatedAt

	return nil
}

// SetAPIKeyHash replaces an organization's API key hash.
func (s *Store) SetAPIKeyHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orgs[id]
	if !ok {
		return models.ErrOrganizationNotFound
	}

	o.APIKeyHash = hash
	o.UpdatedAt = s.now().UTC()

	return nil
}

// DeleteOrganization removes an organization with its logs and saved searches.
func (s *Store) DeleteOrganization(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orgs[id]; !ok {
		return models.ErrOrganizationNotFound
	}

	delete(s.orgs, id)

	kept := s.logs[:0]
	for _, e := range s.logs {
		if e.OrganizationID != id {
			kept = append(kept, e)
		}
	}
	s.logs = kept

	s.logIndex = make(map[string]int, len(s.logs))
	for i, e := range s.logs {
		s.logIndex[e.ID] = i
	}

	for sid, ss := range s.searches {
		if ss.OrganizationID == id {
			delete(s.searches, sid)
		}
	}

	return nil
}

// CreateSavedSearch stores ss.
func (s *Store) CreateSavedSearch(_ context.Context, ss *models.SavedSearch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	ss.ID = uuid.NewString()
	ss.CreatedAt = now
	ss.UpdatedAt = now

	stored := *ss
	s.searches[ss.ID] = &stored

	return nil
}

func visible(ss *models.SavedSearch, tenantID, userID string) bool {
	return ss.OrganizationID == tenantID && (ss.UserID == userID || ss.IsGlobal)
}

// ListSavedSearches returns the caller's and the tenant's global searches, newest first.
func (s *Store) ListSavedSearches(_ context.Context, tenantID, userID string) ([]models.SavedSearch, error) {
	s.mu.RLock()
	out := make([]models.SavedSearch, 0, 8)
	for _, ss := range s.searches {
		if visible(ss, tenantID, userID) {
			out = append(out, *ss)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b models.SavedSearch) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}

		return strings.Compare(b.ID, a.ID)
	})

	return out, nil
}

// GetSavedSearch returns one search visible to userID within tenantID.
func (s *Store) GetSavedSearch(_ context.Context, tenantID, userID, id string) (*models.SavedSearch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ss, ok := s.searches[id]
	if !ok || !visible(ss, tenantID, userID) {
		return nil, models.ErrSavedSearchNotFound
	}

	out := *ss

	return &out, nil
}

// DeleteSavedSearch removes a search owned by userID within tenantID.
func (s *Store) DeleteSavedSearch(_ context.Context, tenantID, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ss, ok := s.searches[id]
	if !ok || ss.OrganizationID != tenantID || ss.UserID != userID {
		return models.ErrSavedSearchNotFound
	}

	delete(s.searches, id)

	return nil
}
