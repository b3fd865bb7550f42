// Package store defines the row-oriented table store the ledgers are kept in.
//
// A store holds named tables of string cells. Row 0 of every table is its header.
// Backends are the system of record: callers re-read a table whenever they need
// its state and never assume exclusive access, since other runs may write the
// same table between a read and a write. There is no multi-row atomicity.
//
// Backends classify their native errors into ErrNotFound (never retried) and
// ErrTransient (retried by WithRetry). Anything else fails fast.
package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a table or row does not exist.
	ErrNotFound = errors.New("table or row not found")

	// ErrTransient marks network, quota and server-side errors that may succeed on retry.
	ErrTransient = errors.New("transient store error")

	// ErrUnavailable is returned by WithRetry once all attempts failed transiently.
	ErrUnavailable = errors.New("store unavailable")
)

// Store is a row-oriented table store. Row indexes are 0-based positions in the
// slice returned by ReadRows, so index 0 is the header.
type Store interface {
	// EnsureTable creates the table if it is missing and writes header if the table is empty.
	EnsureTable(ctx context.Context, table string, header []string) error

	// ReadRows returns all rows of the table, header included.
	ReadRows(ctx context.Context, table string) ([][]string, error)

	// AppendRow adds row after the last row of the table.
	AppendRow(ctx context.Context, table string, row []string) error

	// UpdateRow overwrites the row at index.
	UpdateRow(ctx context.Context, table string, index int, row []string) error

	// DeleteRow removes the row at index; following rows shift up by one.
	DeleteRow(ctx context.Context, table string, index int) error

	// ReplaceRows clears the table and writes rows in order.
	ReplaceRows(ctx context.Context, table string, rows [][]string) error
}

// Error wraps a backend failure with the operation and table it concerned.
type Error struct {
	Op    string
	Table string
	Err   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("store: %s on '%s' failed: %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("store: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new Error.
func NewError(op, table string, err error) *Error {
	return &Error{
		Op:    op,
		Table: table,
		Err:   err,
	}
}

type transientError struct {
	err error
}

func (e *transientError) Error() string {
	return e.err.Error()
}

func (e *transientError) Unwrap() error {
	return e.err
}

func (e *transientError) Is(target error) bool {
	return target == ErrTransient
}

// MarkTransient marks err as retryable. A nil err stays nil.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err may succeed when retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
