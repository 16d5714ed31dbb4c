// Package errs defines the error taxonomy shared by the inventory services.
// Handlers map these to HTTP statuses; everything else is wrapped as a
// PersistenceError so callers can tell bad input from infrastructure trouble.
package errs

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError reports user-correctable input problems, keyed by field.
// It is never retried automatically.
type ValidationError struct {
	Fields map[string]string
}

func NewValidation(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NotFoundError signals that a referenced entity does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// DuplicateAssetNumberError is returned when asset number generation (or an
// explicitly supplied number) keeps colliding after the bounded retry budget.
type DuplicateAssetNumberError struct {
	AssetNumber string
	Attempts    int
}

func (e *DuplicateAssetNumberError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("asset number %s already in use after %d attempts", e.AssetNumber, e.Attempts)
	}
	return fmt.Sprintf("asset number %s already in use", e.AssetNumber)
}

// PersistenceError wraps a transient infrastructure failure. Reads and
// idempotent writes may be retried; everything else surfaces it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// FileTooLargeError is returned when an upload exceeds the attachment ceiling.
type FileTooLargeError struct {
	Size  int64
	Limit int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file of %d bytes exceeds the %d byte limit", e.Size, e.Limit)
}

// ConversionError reports a purchase-to-equipment conversion that could not
// complete atomically. Step identifies where it failed: 1 = equipment
// creation, 2 = marking the purchase acquired.
type ConversionError struct {
	Step int
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("purchase conversion failed at step %d: %v", e.Step, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }
