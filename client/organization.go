package client

import "context"

// OrganizationService handles the caller's own organization.
type OrganizationService struct {
	c *Client
}

// Me returns the caller's organization.
func (s *OrganizationService) Me(ctx context.Context) (*Organization, error) {
	var org Organization
	if err := s.c.get(ctx, "/api/v1/organization", nil, &org, nil); err != nil {
		return nil, err
	}
	return &org, nil
}

// RotateKey replaces the organization's API key and returns the new one. It
// requires an API key credential; the client keeps using the old key until
// reconfigured.
func (s *OrganizationService) RotateKey(ctx context.Context) (string, error) {
	var resp struct {
		APIKey string `json:"apiKey"`
	}
	if err := s.c.post(ctx, "/api/v1/organization/rotate-key", nil, &resp); err != nil {
		return "", err
	}
	return resp.APIKey, nil
}
