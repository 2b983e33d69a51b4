package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditlog/internal/httputil"
	"github.com/persistorai/auditlog/internal/metrics"
	"github.com/persistorai/auditlog/internal/models"
)

// Error code constants for standardized API responses.
const (
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationError  = "validation_error"
	ErrCodeInvalidCursor    = "invalid_cursor"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeStoreUnavailable = "store_unavailable"
	ErrCodeInternalError    = "internal_error"
)

// exposeErrorsKey marks requests whose 500 responses may carry the error text.
const exposeErrorsKey = "expose_errors"

// respondError writes a standardized JSON error response, pulling the request
// ID from the Gin context (set by the request ID middleware).
func respondError(c *gin.Context, status int, code, message string) {
	metrics.ErrorsTotal.WithLabelValues(code).Inc()
	httputil.RespondError(c, status, code, message)
}

// respondServiceError maps a service or store error to its HTTP response.
// Unexpected errors are logged with op and reported as 500.
func respondServiceError(c *gin.Context, log *logrus.Logger, op string, err error) {
	var ve *models.ValidationError

	switch {
	case errors.As(err, &ve):
		respondError(c, http.StatusBadRequest, ErrCodeValidationError, ve.Error())
	case errors.Is(err, models.ErrInvalidCursor):
		respondError(c, http.StatusBadRequest, ErrCodeInvalidCursor, "invalid cursor")
	case errors.Is(err, models.ErrLogNotFound),
		errors.Is(err, models.ErrOrganizationNotFound),
		errors.Is(err, models.ErrSavedSearchNotFound):
		respondError(c, http.StatusNotFound, ErrCodeNotFound, "not found")
	case errors.Is(err, models.ErrDuplicateKey):
		respondError(c, http.StatusConflict, ErrCodeConflict, "already exists")
	case errors.Is(err, models.ErrStoreUnavailable):
		log.WithError(err).WithField("op", op).Warn("store unavailable")
		respondError(c, http.StatusServiceUnavailable, ErrCodeStoreUnavailable, "service temporarily unavailable")
	default:
		log.WithError(err).WithField("op", op).Error("request failed")

		msg := "internal server error"
		if c.GetBool(exposeErrorsKey) {
			msg = err.Error()
		}

		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, msg)
	}
}

// exposeErrors returns middleware that lets 500 responses carry error text.
// It is installed only in development.
func exposeErrors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(exposeErrorsKey, true)
		c.Next()
	}
}
