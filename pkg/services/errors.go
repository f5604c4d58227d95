// Package services holds the thin domain services the orchestrator and API
// share: job state machine maintenance, chat retention, video transitions.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an entity is not found.
	ErrNotFound = errors.New("entity not found")

	// ErrUnauthorized is returned when no authenticated user is present.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the caller does not own the entity.
	ErrForbidden = errors.New("forbidden")

	// ErrRequirementsIncomplete is returned when a gated task runs before the
	// job's required intake fields are complete.
	ErrRequirementsIncomplete = errors.New("requirements incomplete")

	// ErrInsufficientCredits is returned when a credit reservation fails.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrInvalidTransition is returned for video status moves outside the
	// allowed DAG.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError wraps field-specific validation errors.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
