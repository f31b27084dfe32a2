package appointment

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("appointment not found")
	ErrConflict          = errors.New("property is not available at the requested time")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError lists the offending fields of a request or record.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func newValidationError(msg string) *ValidationError {
	return &ValidationError{Message: msg, Fields: map[string]string{}}
}

func (e *ValidationError) add(field, msg string) {
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConflictError carries every appointment that blocks the requested day.
type ConflictError struct {
	PropertyAddress string
	Conflicts       []*Appointment
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %d existing appointment(s) at %q", ErrConflict, len(e.Conflicts), e.PropertyAddress)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// TransitionError is returned when a TransitionPolicy rejects a status change.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
