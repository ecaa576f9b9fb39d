package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyLocked is returned when a stage clock anchor that has already
	// been confirmed is set again.
	ErrAlreadyLocked = errors.New("stage clock time is already locked")

	// ErrInvalidSequence is returned when the second stage is set before the
	// active first stage, or at/before its start time.
	ErrInvalidSequence = errors.New("second stage must start after the active first stage start time")

	ErrPatientNotFound = errors.New("patient not found")

	ErrForbidden = errors.New("forbidden")

	// ErrStatusConflict signals that the stored status no longer matches the
	// status the transition was evaluated against.
	ErrStatusConflict = errors.New("patient status changed concurrently")
)

// ValidationError reports a value that is outside a field's allowed option
// set or bounds. It is surfaced to the caller as a blocking input rejection.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError with a formatted reason.
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err wraps a ValidationError.
func IsValidationError(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}
