// Package apierror maps failures of the sync pipeline and the admin API to
// JSON error bodies.
package apierror

import (
	"context"
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"bling-mirror/internal/bling"
)

// Error represents a structured API error response.
type Error struct {
	StatusCode int          `json:"-"`
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Kind       bling.Kind   `json:"kind,omitempty"`
	Details    []FieldError `json:"details,omitempty"`
	RequestID  string       `json:"request_id,omitempty"`
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type body struct {
	Success bool   `json:"success"`
	Error   *Error `json:"error"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// ToJSON converts the error to its response body.
func (e *Error) ToJSON() []byte {
	data, err := json.Marshal(body{Error: e})
	if err != nil {
		return []byte(`{"success":false,"error":{"code":"INTERNAL_ERROR","message":"error encoding failed"}}`)
	}
	return data
}

// FromError converts err to an API error. *Error values pass through; pipeline
// errors are mapped by kind: a store failure is 503, anything the upstream API
// caused is 502. Everything else is a 500 that does not leak err's text.
func FromError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch bling.KindOf(err) {
	case bling.KindPersistence:
		return StoreUnavailable("document store unavailable")
	case bling.KindUpstream:
		return badGateway("UPSTREAM_ERROR", bling.KindUpstream, "Bling API request failed")
	case bling.KindAuth:
		return badGateway("UPSTREAM_AUTH_FAILED", bling.KindAuth, "Bling token could not be obtained")
	case bling.KindParse:
		return badGateway("UPSTREAM_PARSE_ERROR", bling.KindParse, "Bling API returned an unreadable payload")
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{
			StatusCode: http.StatusGatewayTimeout,
			Code:       "TIMEOUT",
			Message:    "request timed out",
		}
	}
	return InternalError("")
}

func badGateway(code string, kind bling.Kind, message string) *Error {
	return &Error{
		StatusCode: http.StatusBadGateway,
		Code:       code,
		Message:    message,
		Kind:       kind,
	}
}

// StoreUnavailable creates a 503 error for document store or token cache outages.
func StoreUnavailable(message string) *Error {
	return &Error{
		StatusCode: http.StatusServiceUnavailable,
		Code:       "STORE_UNAVAILABLE",
		Message:    message,
		Kind:       bling.KindPersistence,
	}
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *Error {
	return &Error{
		StatusCode: http.StatusBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
	}
}

// ValidationError creates a 400 error with validation details.
func ValidationError(message string, details ...FieldError) *Error {
	return &Error{
		StatusCode: http.StatusBadRequest,
		Code:       "VALIDATION_ERROR",
		Message:    message,
		Details:    details,
	}
}

// Unauthorized creates a 401 Unauthorized error.
func Unauthorized(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return &Error{
		StatusCode: http.StatusUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
	}
}

// NotFound creates a 404 Not Found error.
func NotFound(message string) *Error {
	if message == "" {
		message = "Resource not found"
	}
	return &Error{
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    message,
	}
}

// Conflict creates a 409 Conflict error.
func Conflict(message string) *Error {
	return &Error{
		StatusCode: http.StatusConflict,
		Code:       "CONFLICT",
		Message:    message,
	}
}

// InternalError creates a 500 Internal Server Error.
func InternalError(message string) *Error {
	if message == "" {
		message = "An unexpected error occurred"
	}
	return &Error{
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
	}
}
