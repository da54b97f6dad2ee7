// Package httpx carries the shared HTTP client infrastructure for external
// service adapters: typed errors, exponential backoff with jitter, and
// structured request/response logging with credential redaction.
package httpx

import "fmt"

// ErrorType represents the category of error that occurred.
type ErrorType int

const (
	ErrTypeAuthentication ErrorType = iota
	ErrTypeRateLimit
	ErrTypeServiceUnavailable
	ErrTypeInvalidRequest
	ErrTypeTimeout
	ErrTypeNotFound
	ErrTypeUnknown
)

// String returns a human-readable description of the error type.
func (e ErrorType) String() string {
	switch e {
	case ErrTypeAuthentication:
		return "authentication error"
	case ErrTypeRateLimit:
		return "rate limit exceeded"
	case ErrTypeServiceUnavailable:
		return "service unavailable"
	case ErrTypeInvalidRequest:
		return "invalid request"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeNotFound:
		return "not found"
	default:
		return "unknown error"
	}
}

// Error represents an HTTP client error with additional context.
type Error struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Retryable  bool
	Service    string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s (status: %d)", e.Service, e.Type.String(), e.Message, e.StatusCode)
}

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// IsRetryable returns true if the error is retryable.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// FromStatusCode maps an HTTP response status to a typed error.
func FromStatusCode(service string, statusCode int, message string) *Error {
	switch {
	case statusCode == 401 || statusCode == 403:
		return &Error{Type: ErrTypeAuthentication, Message: message, StatusCode: statusCode, Service: service}
	case statusCode == 404:
		return &Error{Type: ErrTypeNotFound, Message: message, StatusCode: statusCode, Service: service}
	case statusCode == 429:
		return &Error{Type: ErrTypeRateLimit, Message: message, StatusCode: statusCode, Retryable: true, Service: service}
	case statusCode >= 500:
		return &Error{Type: ErrTypeServiceUnavailable, Message: message, StatusCode: statusCode, Retryable: true, Service: service}
	case statusCode >= 400:
		return &Error{Type: ErrTypeInvalidRequest, Message: message, StatusCode: statusCode, Service: service}
	default:
		return &Error{Type: ErrTypeUnknown, Message: message, StatusCode: statusCode, Service: service}
	}
}
