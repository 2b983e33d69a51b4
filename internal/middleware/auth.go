package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditlog/internal/auth"
	"github.com/persistorai/auditlog/internal/models"
	"github.com/persistorai/auditlog/internal/security"
)

// Gin context keys set by Authenticator.
const (
	IdentityKey = "identity"
	TenantIDKey = "tenant_id"
)

// authTimingFloor is the minimum response time for rejected credentials so
// valid and invalid API keys cannot be told apart by latency.
const authTimingFloor = 50 * time.Millisecond

// Authentication failures.
var (
	ErrMissingCredential = errors.New("missing or invalid authorization header")
	ErrInvalidCredential = errors.New("invalid credentials")
	ErrLockedOut         = errors.New("too many failed authentication attempts")
)

// TenantLookup resolves an API key to its tenant.
type TenantLookup interface {
	GetTenantByAPIKey(ctx context.Context, apiKey string) (string, error)
}

// TokenValidator verifies signed identity tokens.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// Authenticator turns a bearer credential into a models.Identity. JWTs are
// verified locally; anything else is treated as an API key.
type Authenticator struct {
	tokens TokenValidator
	lookup TenantLookup
	guard  *security.BruteForceGuard
	log    *logrus.Logger
}

// NewAuthenticator creates an Authenticator. tokens and guard may be nil.
func NewAuthenticator(tokens TokenValidator, lookup TenantLookup, guard *security.BruteForceGuard, log *logrus.Logger) *Authenticator {
	return &Authenticator{tokens: tokens, lookup: lookup, guard: guard, log: log}
}

// Identify resolves credential to an identity.
func (a *Authenticator) Identify(ctx context.Context, credential string) (models.Identity, error) {
	if credential == "" {
		return models.Identity{}, ErrMissingCredential
	}

	if a.guard != nil && a.guard.IsBlocked(credential) {
		return models.Identity{}, ErrLockedOut
	}

	id, err := a.resolve(ctx, credential)
	if err != nil {
		if a.guard != nil {
			a.guard.RecordFailure(credential)
		}

		return models.Identity{}, err
	}

	if a.guard != nil {
		a.guard.ResetKey(credential)
	}

	return id, nil
}

func (a *Authenticator) resolve(ctx context.Context, credential string) (models.Identity, error) {
	if a.tokens != nil && auth.LooksLikeJWT(credential) {
		claims, err := a.tokens.Validate(credential)
		if err != nil {
			return models.Identity{}, err
		}

		return claims.Identity(), nil
	}

	tenantID, err := a.lookup.GetTenantByAPIKey(ctx, credential)
	if err != nil {
		return models.Identity{}, ErrInvalidCredential
	}

	return models.Identity{TenantID: tenantID, Kind: models.IdentityService}, nil
}

// Middleware returns Gin middleware that requires a valid bearer credential
// and stores the identity and tenant ID on the context.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if c.Writer.Status() == http.StatusUnauthorized {
				enforceTimingFloor(start)
			}
		}()

		credential := ExtractBearerToken(c)

		id, err := a.Identify(c.Request.Context(), credential)
		switch {
		case errors.Is(err, ErrLockedOut):
			respondError(c, http.StatusTooManyRequests, "rate_limited", err.Error())
			return
		case errors.Is(err, ErrMissingCredential):
			respondError(c, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		case errors.Is(err, auth.ErrExpiredToken):
			logAuthFailure(a.log, c, credential)
			respondError(c, http.StatusUnauthorized, "unauthorized", "token has expired")
			return
		case err != nil:
			logAuthFailure(a.log, c, credential)
			respondError(c, http.StatusUnauthorized, "unauthorized", "invalid credentials")
			return
		}

		c.Set(IdentityKey, id)
		c.Set(TenantIDKey, id.TenantID)
		c.Next()
	}
}

// IdentityFrom returns the identity stored by Authenticator.
func IdentityFrom(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return models.Identity{}, false
	}

	id, ok := v.(models.Identity)

	return id, ok && id.TenantID != ""
}

// RequireService rejects callers that did not authenticate with an API key.
func RequireService() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, ok := IdentityFrom(c); !ok || !id.IsService() {
			respondError(c, http.StatusForbidden, "forbidden", "api key required")
			return
		}

		c.Next()
	}
}

// AdminAuth requires Authorization: Bearer <token> matching the admin token.
// An empty admin token disables the admin surface.
func AdminAuth(token string, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			respondError(c, http.StatusNotFound, "not_found", "not found")
			return
		}

		start := time.Now()

		got := ExtractBearerToken(c)
		if got == "" || !security.ConstantTimeEqual(got, token) {
			logAuthFailure(log, c, got)
			enforceTimingFloor(start)
			respondError(c, http.StatusUnauthorized, "unauthorized", "invalid admin token")
			return
		}

		c.Next()
	}
}

// ExtractBearerToken extracts the credential from the Authorization header.
func ExtractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}

	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// enforceTimingFloor sleeps if needed so the response takes at least authTimingFloor.
func enforceTimingFloor(start time.Time) {
	if elapsed := time.Since(start); elapsed < authTimingFloor {
		time.Sleep(authTimingFloor - elapsed)
	}
}

// truncateKey returns at most the first 4 characters of key followed by "...".
func truncateKey(key string) string {
	if len(key) > 4 {
		return key[:4] + "..."
	}
	return key
}

func logAuthFailure(log *logrus.Logger, c *gin.Context, credential string) {
	log.WithFields(logrus.Fields{
		"client_ip":  c.ClientIP(),
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"user_agent": c.Request.UserAgent(),
		"request_id": c.GetString(RequestIDKey),
		"key_prefix": truncateKey(credential),
	}).Warn("authentication failed")
}
