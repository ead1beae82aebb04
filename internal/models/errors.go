package models

import (
	"errors"
	"fmt"
)

// ValidationError is returned when a request is rejected before any mutation.
// The caller must correct the input and retry.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// StateConflictError is returned when a mutation is rejected because the
// record is not in the expected state. Current carries the state observed at
// rejection time so the caller can decide how to proceed.
type StateConflictError struct {
	Entity   string
	ID       int32
	Current  string
	Expected string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("%s %d is %s, expected %s", e.Entity, e.ID, e.Current, e.Expected)
}

// NotFoundError is returned for unknown record identifiers. It is distinct
// from a state conflict: the record does not exist at all.
type NotFoundError struct {
	Entity string
	ID     int32
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStateConflict reports whether err is (or wraps) a StateConflictError.
func IsStateConflict(err error) bool {
	var sc *StateConflictError
	return errors.As(err, &sc)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
