// Package errs provides the unified error type used across all of aiodb.
//
// Every subsystem (database core, vendor drivers, manager) wraps its native
// errors into *errs.Error before returning them to callers. Callers use the
// Is* predicates to branch on failure kind without importing driver-specific
// packages.
//
// Usage:
//
//	// In a driver — wrap native errors:
//	return errs.Wrap(errs.ErrKindConflict, "duplicate key", pgErr)
//
//	// In calling code — check error kind:
//	if errs.IsNotFound(err) {
//	    return nil // treat as absent
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing driver-specific codes.
// Both vendor backends (Postgres, MySQL) map their native errors to one of
// these kinds, giving callers a single consistent API. No operation in aiodb
// ever returns a bare driver error.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotFound                 // get-style lookup matched zero rows
	ErrKindConnectionFailed         // cannot reach or authenticate to the DB
	ErrKindTimeout                  // context deadline / cancellation
	ErrKindQueryFailed              // SQL syntax or runtime execution error
	ErrKindInvalidInput             // bad arguments from the caller
	ErrKindConflict                 // integrity violation (unique / FK)
	ErrKindNotConnected             // operation attempted before Connect
	ErrKindPoolCreation             // connection pool could not be built
	ErrKindPoolTerminated           // acquire after the pool was shut down
	ErrKindTxDepth                  // transaction depth popped below zero
	ErrKindNoTask                   // transaction entered outside a task
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindConflict:
		return "conflict"
	case ErrKindNotConnected:
		return "not_connected"
	case ErrKindPoolCreation:
		return "pool_creation_failed"
	case ErrKindPoolTerminated:
		return "pool_terminated"
	case ErrKindTxDepth:
		return "transaction_depth"
	case ErrKindNoTask:
		return "no_active_task"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all aiodb subsystems.
// Drivers produce it; callers inspect it via the Is* predicates below.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsNotFound reports whether err represents a zero-row lookup result.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity or auth failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsQueryFailed reports whether err is a SQL execution error.
func IsQueryFailed(err error) bool {
	return KindOf(err) == ErrKindQueryFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsConflict reports whether err is an integrity violation (duplicate key,
// foreign key constraint). CreateOrGet uses this to fall back to a lookup.
func IsConflict(err error) bool {
	return KindOf(err) == ErrKindConflict
}

// IsNotConnected reports whether an operation ran before Connect succeeded.
func IsNotConnected(err error) bool {
	return KindOf(err) == ErrKindNotConnected
}

// IsPoolCreation reports whether building the connection pool failed.
func IsPoolCreation(err error) bool {
	return KindOf(err) == ErrKindPoolCreation
}

// IsPoolTerminated reports whether err came from using a terminated pool.
func IsPoolTerminated(err error) bool {
	return KindOf(err) == ErrKindPoolTerminated
}

// IsTxDepth reports whether err is a transaction scope nesting bug
// (depth decremented below zero).
func IsTxDepth(err error) bool {
	return KindOf(err) == ErrKindTxDepth
}

// IsNoTask reports whether err was raised because no task handle was
// present in the context.
func IsNoTask(err error) bool {
	return KindOf(err) == ErrKindNoTask
}

// KindOf extracts the ErrKind from any error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
