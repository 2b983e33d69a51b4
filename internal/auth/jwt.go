// Package auth issues and verifies the HS256 tokens that carry caller identity.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/persistorai/auditlog/internal/models"
)

// DefaultTTL is the lifetime of issued tokens when none is configured.
const DefaultTTL = 5 * time.Hour

// DefaultLeeway tolerates clock skew between replicas.
const DefaultLeeway = 30 * time.Second

// MinSecretLen is the shortest accepted signing secret.
const MinSecretLen = 16

// Token errors.
var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token has expired")
	ErrEmptySubject  = errors.New("token subject cannot be empty")
	ErrEmptyTenant   = errors.New("token organization cannot be empty")
	ErrSecretTooWeak = errors.New("jwt secret must be at least 16 bytes")
)

// Claims are the JWT claims identifying an end user of a tenant.
type Claims struct {
	jwt.RegisteredClaims
	OrganizationID string `json:"org"`
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`
}

// Identity converts validated claims into a user identity.
func (c *Claims) Identity() models.Identity {
	return models.Identity{
		TenantID: c.OrganizationID,
		ActorID:  c.Subject,
		Name:     c.Name,
		Email:    c.Email,
		Kind:     models.IdentityUser,
	}
}

// JWTService signs and validates tokens with a shared secret.
type JWTService struct {
	secret []byte
	ttl    time.Duration
	leeway time.Duration
	now    func() time.Time
}

// NewJWTService creates a JWTService. A non-positive ttl selects DefaultTTL.
func NewJWTService(secret string, ttl time.Duration) (*JWTService, error) {
	if len(secret) < MinSecretLen {
		return nil, ErrSecretTooWeak
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &JWTService{
		secret: []byte(secret),
		ttl:    ttl,
		leeway: DefaultLeeway,
		now:    time.Now,
	}, nil
}

// TTL returns the lifetime of issued tokens.
func (s *JWTService) TTL() time.Duration { return s.ttl }

// Issue signs a token for id and returns it with its expiry.
func (s *JWTService) Issue(id models.Identity) (string, time.Time, error) {
	if strings.TrimSpace(id.ActorID) == "" {
		return "", time.Time{}, ErrEmptySubject
	}

	if strings.TrimSpace(id.TenantID) == "" {
		return "", time.Time{}, ErrEmptyTenant
	}

	now := s.now()
	exp := now.Add(s.ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ActorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		OrganizationID: id.TenantID,
		Name:           id.Name,
		Email:          id.Email,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return token, exp.UTC(), nil
}

// Validate parses tokenString and returns its claims. Tokens without a subject
// or organization are rejected.
func (s *JWTService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	},
		jwt.WithLeeway(s.leeway),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" || claims.OrganizationID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// LooksLikeJWT reports whether credential has the three-segment JWT shape.
// API keys are hex and never contain dots.
func LooksLikeJWT(credential string) bool {
	return strings.Count(credential, ".") == 2
}
