package syncdb

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDatabase is reported when the local file is not a readable
	// SQLite database.
	ErrInvalidDatabase = errors.New("invalid database")

	// ErrTooManyConflicts is matched by ConflictError once the retry budget
	// for external changes is spent.
	ErrTooManyConflicts = errors.New("too many conflicts")

	// ErrConsumed is returned by a Transition that already ran.
	ErrConsumed = errors.New("transition already consumed")

	// ErrWrongMode is returned when an operation requires the other mode.
	ErrWrongMode = errors.New("user is in the wrong mode")

	// ErrLocationInUse is returned when externalizing to a document that
	// another user already lives in.
	ErrLocationInUse = errors.New("external location is used by another user")

	// ErrUnreportedEdit is the cause of a LogicalError raised when a body
	// changed rows but returned an Outcome with Edited unset. The changes
	// are rolled back.
	ErrUnreportedEdit = errors.New("transaction changed rows without reporting an edit")

	// errConflict marks an attempt that observed an external change before
	// write-back.
	errConflict = errors.New("external document changed during transaction")
)

// LogicalError wraps a failure raised by a transaction body.
type LogicalError struct {
	Cause error
}

func (e *LogicalError) Error() string {
	return fmt.Sprintf("transaction failed: %v", e.Cause)
}

func (e *LogicalError) Unwrap() error { return e.Cause }

// UnreachableError reports that op could not reach the external document
// or the local store.
type UnreachableError struct {
	Op    string
	Cause error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("%s: resource unreachable: %v", e.Op, e.Cause)
}

func (e *UnreachableError) Unwrap() error { return e.Cause }

// ProviderFailureError reports that the provider answered op without a
// stream.
type ProviderFailureError struct {
	Op string
}

func (e *ProviderFailureError) Error() string {
	return fmt.Sprintf("%s: provider returned no stream", e.Op)
}

// ConflictError is returned after Attempts runs all saw the external
// document change before write-back.
type ConflictError struct {
	Attempts int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%v after %d attempts", ErrTooManyConflicts, e.Attempts)
}

func (e *ConflictError) Is(target error) bool { return target == ErrTooManyConflicts }
