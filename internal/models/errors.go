package models

import (
	"errors"
	"fmt"
)

// ValidationError reports a missing or malformed input. It maps to HTTP 400.
type ValidationError struct {
	Field   string
	Problem string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Problem
	}

	return e.Field + " " + e.Problem
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, problem string) *ValidationError {
	return &ValidationError{Field: field, Problem: problem}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Sentinel errors for validation.
var (
	ErrMissingAction = NewValidationError("action", "is required")
	ErrMissingTenant = NewValidationError("organizationId", "is required")
	ErrMissingActor  = NewValidationError("actor.id", "is required")
	ErrMissingName   = NewValidationError("name", "is required")
	ErrMissingEmail  = NewValidationError("email", "is required")
)

// ErrInvalidCursor is returned when a pagination cursor cannot be decoded or was
// minted for a different sort field.
var ErrInvalidCursor = errors.New("invalid cursor")

// Sentinel errors for entity lookups.
var (
	ErrLogNotFound          = errors.New("log entry not found")
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrSavedSearchNotFound  = errors.New("saved search not found")
)

// ErrDuplicateKey indicates a unique constraint violation (maps to HTTP 409 Conflict).
var ErrDuplicateKey = errors.New("duplicate key")

// ErrStoreUnavailable marks transient backing-store failures (maps to HTTP 503).
var ErrStoreUnavailable = errors.New("store unavailable")

// ErrFieldTooLong returns an error indicating a field exceeds its maximum length.
func ErrFieldTooLong(field string, maxLen int) error {
	return NewValidationError(field, fmt.Sprintf("exceeds maximum length of %d", maxLen))
}
