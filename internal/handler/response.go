package handler

// RESPONSE HELPERS:
// Every JSON response goes through writeJSON and every failure through
// writeError, so the API has one error shape:
//
//	{"error": "not_found", "message": "block not found with id abc123"}
//
// Validation failures also name the offending request field:
//
//	{"error": "validation_error", "message": "title is required", "field": "title"}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/quiet-hours/internal/apperror"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // machine-readable error type (e.g. "not_found")
	Message string `json:"message"`         // human-readable description
	Field   string `json:"field,omitempty"` // request field that failed validation
}

// writeJSON sends a JSON response with the given status code. Headers must be
// set before WriteHeader; anything set after the body starts is dropped.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status code.
//
// errors.Is walks the whole chain, so a service error like
//
//	fmt.Errorf("updating block: %w", apperror.NotFound("block", id))
//
// still becomes a 404. Anything that is not an *apperror.AppError is an
// internal error and its text is never sent to the client.
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
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
			Field:   appErr.Field,
		})
		return
	}

	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// decodeJSON reads a size-limited JSON body into dst and runs the struct
// validation tags. All failures come back as validation AppErrors.
func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperror.ValidationFailed("", "invalid JSON body")
	}
	return validateRequest(dst)
}
