package apperror

import (
	"errors"
	"fmt"
	"testing"
)

// TABLE-DRIVEN TESTS:
// Go's idiomatic pattern for covering many cases with one assertion body.
// Each case gets a name that shows up in `go test -v` output.

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("post", 1747000000000),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("email", "invalid email format"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("email", "email already in use"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "Unauthorized wraps ErrUnauthorized",
			err:       Unauthorized("password", "incorrect password"),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "RateLimited wraps ErrRateLimited",
			err:       RateLimited("password", "too many attempts"),
			target:    ErrRateLimited,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("post", 42),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "Unauthorized does NOT match ErrRateLimited",
			err:       Unauthorized("password", "incorrect password"),
			target:    ErrRateLimited,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

// errors.Is must still match after the service layer wraps the error with
// fmt.Errorf("...: %w", err) — that's the whole point of the Unwrap chain.
func TestErrorsIs_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("logging in: %w", Unauthorized("password", "incorrect password"))
	if !errors.Is(wrapped, ErrUnauthorized) {
		t.Error("errors.Is() failed to find ErrUnauthorized through a fmt.Errorf wrap")
	}

	var appErr *AppError
	if !errors.As(wrapped, &appErr) {
		t.Fatal("errors.As() failed to extract *AppError through a fmt.Errorf wrap")
	}
	if appErr.Field != "password" {
		t.Errorf("Field = %q, want %q", appErr.Field, "password")
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("post", 42),
			wantMessage: "post not found with id 42",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("email", "invalid email format"),
			wantMessage: "invalid email format",
		},
		{
			name:        "RateLimited uses custom message",
			err:         RateLimited("password", "too many attempts, try again later"),
			wantMessage: "too many attempts, try again later",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestFieldAttachment(t *testing.T) {
	// The Field is what lets the client render the message next to the
	// right form input instead of in a generic error banner.
	tests := []struct {
		err       *AppError
		wantField string
	}{
		{Unauthorized("password", "incorrect password"), "password"},
		{Conflict("email", "email already in use"), "email"},
		{ValidationFailed("resetEmail", "no user found with this email"), "resetEmail"},
		{NotFound("post", 1), ""},
	}

	for _, tt := range tests {
		if tt.err.Field != tt.wantField {
			t.Errorf("Field = %q, want %q", tt.err.Field, tt.wantField)
		}
	}
}
