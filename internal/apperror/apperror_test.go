package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("block", "abc123"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("title", "title is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("block", "abc123"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "Unauthorized wraps ErrUnauthorized",
			err:       Unauthorized("invalid email or password"),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "wrapped NotFound still matches",
			err:       fmt.Errorf("deleting block: %w", NotFound("block", "abc123")),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("block", "abc123"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "ValidationFailed does NOT match ErrNotFound",
			err:       ValidationFailed("title", "too long"),
			target:    ErrNotFound,
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

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("block", "abc123"),
			wantMessage: "block not found with id abc123",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("title", "title is required"),
			wantMessage: "title is required",
		},
		{
			name:        "Conflict message includes resource and id",
			err:         Conflict("block", "abc123"),
			wantMessage: "block conflict with id abc123",
		},
		{
			name:        "Forbidden uses custom message",
			err:         Forbidden("not your block"),
			wantMessage: "not your block",
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

func TestUnwrap(t *testing.T) {
	err := NotFound("block", "abc123")
	if unwrapped := err.Unwrap(); unwrapped != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrNotFound)
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("endTime", "end time must be after start time")

	if err.Field != "endTime" {
		t.Errorf("Field = %q, want %q", err.Field, "endTime")
	}
}
