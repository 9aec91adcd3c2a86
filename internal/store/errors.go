package store

import (
	"errors"
	"fmt"

	"github.com/roach88/recs/internal/ir"
)

// Error represents a rejected store operation.
//
// Store errors are raised synchronously to the caller and never leave a
// table partially written.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Table is the id of the affected table, if any.
	Table string

	// Record is the affected record, if any.
	Record ir.Record
}

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	// ErrCodeMutation indicates an update of an absent record without fallback.
	ErrCodeMutation ErrorCode = "MUTATION"

	// ErrCodeTypeMismatch indicates a declared field written with a value of
	// the wrong kind.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// ErrCodeConfiguration indicates an invalid table registration or a
	// table handle from another store.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION"
)

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Table != "" && !e.Record.IsZero():
		return fmt.Sprintf("%s: %s (table=%s, record=%s)", e.Code, e.Message, e.Table, e.Record.Short())
	case e.Table != "":
		return fmt.Sprintf("%s: %s (table=%s)", e.Code, e.Message, e.Table)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// IsMutationError returns true if err is an update of an absent record.
// Uses errors.As to handle wrapped errors.
func IsMutationError(err error) bool {
	return hasCode(err, ErrCodeMutation)
}

// IsTypeMismatchError returns true if err is a rejected write of a
// wrongly-typed value.
func IsTypeMismatchError(err error) bool {
	return hasCode(err, ErrCodeTypeMismatch)
}

// IsConfigurationError returns true if err is a rejected registration.
func IsConfigurationError(err error) bool {
	return hasCode(err, ErrCodeConfiguration)
}

func hasCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

func newMutationError(t *Table, r ir.Record) *Error {
	return &Error{
		Code:    ErrCodeMutation,
		Message: "update of a record without properties and no fallback",
		Table:   t.id,
		Record:  r,
	}
}

func newTypeMismatchError(t *Table, r ir.Record, field string, cause error) *Error {
	return &Error{
		Code:    ErrCodeTypeMismatch,
		Message: fmt.Sprintf("field %s: %v", field, cause),
		Table:   t.id,
		Record:  r,
	}
}

func newConfigurationError(table, format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeConfiguration,
		Message: fmt.Sprintf(format, args...),
		Table:   table,
	}
}
