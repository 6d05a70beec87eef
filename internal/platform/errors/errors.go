// Package errors provides structured application errors that map onto HTTP
// status codes and a stable JSON error body.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	TypeValidation  ErrorType = "validation"
	TypeNotFound    ErrorType = "not_found"
	TypeRateLimited ErrorType = "rate_limited"
	TypeInternal    ErrorType = "internal"
	TypeUnavailable ErrorType = "unavailable"
)

// Error is a categorized error with an optional cause and response context.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeNotFound:
		return http.StatusNotFound
	case TypeRateLimited:
		return http.StatusTooManyRequests
	case TypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func newError(t ErrorType, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Cause: cause, Context: make(map[string]any)}
}

func ValidationError(message string) *Error { return newError(TypeValidation, message, nil) }

func NotFoundError(message string) *Error { return newError(TypeNotFound, message, nil) }

func RateLimitedError(message string) *Error { return newError(TypeRateLimited, message, nil) }

func InternalError(message string, cause error) *Error {
	return newError(TypeInternal, message, cause)
}

func UnavailableError(message string, cause error) *Error {
	return newError(TypeUnavailable, message, cause)
}

// WithField adds a context field that is included in the response body (chainable).
func (e *Error) WithField(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ErrorResponse is the JSON body sent to clients.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Type    ErrorType      `json:"type"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{Error: e.Message, Type: e.Type, Context: e.Context}
}

// AsStructuredError returns err as an *Error, wrapping unknown errors as internal.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	return InternalError("internal server error", err)
}
