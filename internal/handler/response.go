package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// TWO ERROR SHAPES:
// Errors come back in one of two forms, and the frontend relies on the
// distinction:
//
//	{"errors": {"password": "incorrect password"}}
//	{"error": "not_found", "message": "post not found with id 42"}
//
// The first is a FIELD error — it belongs next to a specific form input
// (the auth forms render these inline under the field). The second is a
// general error with a machine-readable type. An AppError with a Field
// set produces the first shape; everything else produces the second.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/threadlite/internal/apperror"
)

// ErrorResponse is the general error format: a machine-readable type plus
// a human-readable description.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// FieldErrorResponse carries errors keyed by the form field they belong to.
type FieldErrorResponse struct {
	Errors map[string]string `json:"errors"`
}

// writeJSON sends a JSON response with the given status code.
//
// Headers and status must be written before the body: once Encode calls
// w.Write, the headers are sent and further changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already gone — all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status and shape.
//
// The service layer returns apperror sentinels (ErrValidation, ErrNotFound,
// ...) without knowing about HTTP; the mapping to status codes lives here
// and only here. errors.Is walks the whole chain, so wrapping at the
// service boundary doesn't hide the sentinel.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		case errors.Is(err, apperror.ErrRateLimited):
			status = http.StatusTooManyRequests
			errorType = "rate_limited"
		}

		// Field errors render inline under a form input; send them keyed
		// by field so the frontend doesn't have to guess.
		if appErr.Field != "" {
			writeJSON(w, status, FieldErrorResponse{
				Errors: map[string]string{appErr.Field: appErr.Message},
			})
			return
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
		})
		return
	}

	// Unknown error — generic 500. The raw message stays in the logs;
	// it must never reach the client.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
