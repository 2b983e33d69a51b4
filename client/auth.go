package client

import "context"

// AuthService exchanges an API key for user tokens.
type AuthService struct {
	c *Client
}

// Token issues a token for the given user of the caller's organization.
func (s *AuthService) Token(ctx context.Context, req TokenRequest) (*Token, error) {
	var tok Token
	if err := s.c.post(ctx, "/api/v1/auth/token", req, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}
