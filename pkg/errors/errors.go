package errors

import (
	"fmt"
	"net/http"
)

// Error types
const (
	// ErrInvalidRequest is returned when the request is malformed or missing required input
	ErrInvalidRequest = "invalid_request"

	// ErrUnauthenticated is returned when credentials are missing or could not be validated
	ErrUnauthenticated = "unauthenticated"

	// ErrForbidden is returned when the caller lacks the required role or membership
	ErrForbidden = "forbidden"

	// ErrUpstreamUnavailable is returned when a dependency such as the identity provider cannot be reached
	ErrUpstreamUnavailable = "upstream_unavailable"

	// ErrSessionStale is returned when the session's claims no longer match the live identity record
	ErrSessionStale = "session_stale"

	// ErrInternal is returned when there is an internal error
	ErrInternal = "internal"
)

// Error represents an error in the application
type Error struct {
	// Type is the error type
	Type string

	// Message is the error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new error
func NewError(errorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewInvalidRequestError creates a new invalid request error
func NewInvalidRequestError(message string, cause error) *Error {
	return NewError(ErrInvalidRequest, message, cause)
}

// NewUnauthenticatedError creates a new unauthenticated error
func NewUnauthenticatedError(message string, cause error) *Error {
	return NewError(ErrUnauthenticated, message, cause)
}

// NewForbiddenError creates a new forbidden error
func NewForbiddenError(message string, cause error) *Error {
	return NewError(ErrForbidden, message, cause)
}

// NewUpstreamUnavailableError creates a new upstream unavailable error
func NewUpstreamUnavailableError(message string, cause error) *Error {
	return NewError(ErrUpstreamUnavailable, message, cause)
}

// NewSessionStaleError creates a new session stale error
func NewSessionStaleError(message string, cause error) *Error {
	return NewError(ErrSessionStale, message, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *Error {
	return NewError(ErrInternal, message, cause)
}

// IsInvalidRequest checks if the error is an invalid request error
func IsInvalidRequest(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrInvalidRequest
}

// IsUnauthenticated checks if the error is an unauthenticated error
func IsUnauthenticated(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrUnauthenticated
}

// IsForbidden checks if the error is a forbidden error
func IsForbidden(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrForbidden
}

// IsUpstreamUnavailable checks if the error is an upstream unavailable error
func IsUpstreamUnavailable(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrUpstreamUnavailable
}

// IsSessionStale checks if the error is a session stale error
func IsSessionStale(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrSessionStale
}

// IsInternal checks if the error is an internal error
func IsInternal(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrInternal
}

// Code returns the HTTP status code that corresponds to the error's type.
// Errors that are not an *Error, and internal errors, map to 500.
func Code(err error) int {
	e, ok := err.(*Error)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Type {
	case ErrInvalidRequest:
		return http.StatusBadRequest
	case ErrUnauthenticated, ErrSessionStale:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrUpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
