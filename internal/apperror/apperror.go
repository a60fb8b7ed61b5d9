package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
)

// AppError is the domain error type returned by the service layer.
//
// Field carries the form field the error belongs to ("email", "password",
// "resetEmail"). Auth failures are surfaced to the client as a field→message
// mapping rather than a bare status code, so every auth-shaped constructor
// here takes a field name.
type AppError struct {
	Err     error  // sentinel, for errors.Is checks
	Message string // human-readable error message
	Field   string // optional: field the message attaches to
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource string, id int64) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %d", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports that the request collides with existing state, e.g.
// registering an email that already has an account. HTTP handlers map
// this to 409 Conflict.
func Conflict(field, message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
		Field:   field,
	}
}

// Unauthorized reports a failed credential check. HTTP handlers map this
// to 401 Unauthorized.
func Unauthorized(field, message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
		Field:   field,
	}
}

// RateLimited reports that the caller has been throttled (too many failed
// login attempts). HTTP handlers map this to 429 Too Many Requests.
func RateLimited(field, message string) *AppError {
	return &AppError{
		Err:     ErrRateLimited,
		Message: message,
		Field:   field,
	}
}
