package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditlog/internal/httputil"
	"github.com/persistorai/auditlog/internal/models"
)

// TokenRequest asks for a user token on behalf of an API key holder.
type TokenRequest struct {
	UserID string `json:"userId" binding:"required,max=255"`
	Name   string `json:"name" binding:"max=255"`
	Email  string `json:"email" binding:"omitempty,email,max=320"`
}

// TokenResponse carries an issued token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TokenHandler exchanges an API key for a user-scoped JWT.
type TokenHandler struct {
	tokens TokenIssuer
	log    *logrus.Logger
}

// NewTokenHandler creates a TokenHandler.
func NewTokenHandler(tokens TokenIssuer, log *logrus.Logger) *TokenHandler {
	return &TokenHandler{tokens: tokens, log: log}
}

// Issue handles POST /api/v1/auth/token.
func (h *TokenHandler) Issue(c *gin.Context) {
	caller, ok := callerIdentity(c)
	if !ok {
		return
	}

	var req TokenRequest
	if !bindJSON(c, &req) {
		return
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		respondServiceError(c, h.log, "auth.token", models.NewValidationError("userId", "is required"))
		return
	}

	token, exp, err := h.tokens.Issue(models.Identity{
		TenantID: caller.TenantID,
		ActorID:  userID,
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Kind:     models.IdentityUser,
	})
	if err != nil {
		respondServiceError(c, h.log, "auth.token", err)
		return
	}

	h.log.WithFields(logrus.Fields{
		"action":    "auth.token",
		"tenant_id": caller.TenantID,
		"user_id":   userID,
	}).Info("audit")

	httputil.RespondData(c, http.StatusCreated, TokenResponse{Token: token, ExpiresAt: exp})
}
