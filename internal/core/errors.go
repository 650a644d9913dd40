package core

import (
	"errors"
	"fmt"
)

// RefKind names a reference-data catalog.
type RefKind string

const (
	RefCategory      RefKind = "category"
	RefResponsible   RefKind = "responsible"
	RefPaymentMethod RefKind = "payment_method"
)

// ErrNotFound is returned when the addressed record does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError reports malformed or missing input. Field names the first failing field.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ReferenceError reports a reference-data id that does not resolve.
type ReferenceError struct {
	Kind RefKind
	ID   int64
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("unknown %s reference %d", e.Kind, e.ID)
}

// InUseError reports a reference-data delete refused because expenses still reference it.
type InUseError struct {
	Kind       RefKind
	ID         int64
	References int
}

func (e *InUseError) Error() string {
	return fmt.Sprintf("%s %d is referenced by %d expense(s)", e.Kind, e.ID, e.References)
}

// StoreError wraps a failure of the backing store. Partial is set when a multi-record
// write could not be rolled back and the store may hold an incomplete result.
type StoreError struct {
	Op      string
	Table   string
	Partial bool
	Err     error
}

func (e *StoreError) Error() string {
	msg := fmt.Sprintf("store %s %s: %v", e.Op, e.Table, e.Err)
	if e.Partial {
		msg += " (partial write)"
	}
	return msg
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsReference reports whether err is or wraps a *ReferenceError.
func IsReference(err error) bool {
	var re *ReferenceError
	return errors.As(err, &re)
}

// IsInUse reports whether err is or wraps an *InUseError.
func IsInUse(err error) bool {
	var ie *InUseError
	return errors.As(err, &ie)
}

// IsStore reports whether err is or wraps a *StoreError.
func IsStore(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
