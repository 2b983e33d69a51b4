package client

import (
	"context"
	"net/url"
	"strconv"
)

// SavedSearchService handles query presets. User tokens are required: presets
// belong to a user.
type SavedSearchService struct {
	c *Client
}

// Create stores a preset for the calling user.
func (s *SavedSearchService) Create(ctx context.Context, req CreateSavedSearchRequest) (*SavedSearch, error) {
	var ss SavedSearch
	if err := s.c.post(ctx, "/api/v1/saved-searches", req, &ss); err != nil {
		return nil, err
	}
	return &ss, nil
}

// List returns the caller's presets and the tenant's global ones.
func (s *SavedSearchService) List(ctx context.Context) ([]SavedSearch, error) {
	var list []SavedSearch
	if err := s.c.get(ctx, "/api/v1/saved-searches", nil, &list, nil); err != nil {
		return nil, err
	}
	return list, nil
}

// Get returns one preset.
func (s *SavedSearchService) Get(ctx context.Context, id string) (*SavedSearch, error) {
	var ss SavedSearch
	if err := s.c.get(ctx, "/api/v1/saved-searches/"+url.PathEscape(id), nil, &ss, nil); err != nil {
		return nil, err
	}
	return &ss, nil
}

// Delete removes a preset owned by the caller.
func (s *SavedSearchService) Delete(ctx context.Context, id string) error {
	return s.c.del(ctx, "/api/v1/saved-searches/"+url.PathEscape(id))
}

// Run executes a preset. page, limit and cursor override the stored values
// when set.
func (s *SavedSearchService) Run(ctx context.Context, id string, page, limit int, cursor string) (*LogPage, error) {
	params := url.Values{}
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	var out LogPage
	if err := s.c.get(ctx, "/api/v1/saved-searches/"+url.PathEscape(id)+"/results", params, &out.Data, &out.Meta); err != nil {
		return nil, err
	}
	return &out, nil
}
