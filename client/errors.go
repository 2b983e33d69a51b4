package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// APIError represents a structured error response from the audit log API.
type APIError struct {
	StatusCode int           `json:"-"`
	Code       string        `json:"code"`
	Message    string        `json:"message"`
	RequestID  string        `json:"request_id,omitempty"`
	RetryAfter time.Duration `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("auditlog: %d %s: %s (request_id=%s)", e.StatusCode, e.Code, e.Message, e.RequestID)
	}
	return fmt.Sprintf("auditlog: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

func statusOf(err error) int {
	var e *APIError
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// IsNotFound returns true if the error is a 404 not found. Records of other
// tenants are reported this way too.
func IsNotFound(err error) bool { return statusOf(err) == 404 }

// IsUnauthorized returns true if the credential was missing or rejected.
func IsUnauthorized(err error) bool { return statusOf(err) == 401 }

// IsConflict returns true if the error is a 409 conflict (duplicate key).
func IsConflict(err error) bool { return statusOf(err) == 409 }

// IsRateLimited returns true if the error is a 429 rate limit.
func IsRateLimited(err error) bool { return statusOf(err) == 429 }

// IsInvalidCursor returns true if a pagination cursor was rejected.
func IsInvalidCursor(err error) bool {
	var e *APIError
	return errors.As(err, &e) && e.Code == "invalid_cursor"
}

// parseAPIError attempts to decode a JSON error body; falls back to raw text.
func parseAPIError(statusCode int, retryAfter string, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Code == "" {
		apiErr.Code = "unknown"
		apiErr.Message = string(body)
	}
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs > 0 {
		apiErr.RetryAfter = time.Duration(secs) * time.Second
	}
	return apiErr
}
