package syncdb

import (
	"errors"
	"fmt"
)

// Kind discriminates the variants of Result.
type Kind int

const (
	KindSuccess Kind = iota
	KindLogicalError
	KindInvalidDatabase
	KindResourceUnreachable
	KindProviderFailure
	KindTooManyConflicts
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindLogicalError:
		return "logical_error"
	case KindInvalidDatabase:
		return "invalid_database"
	case KindResourceUnreachable:
		return "resource_unreachable"
	case KindProviderFailure:
		return "provider_failure"
	case KindTooManyConflicts:
		return "too_many_conflicts"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Result is the outcome of every public engine operation. Only the fields
// relevant to Kind are set: Value for success, Cause for logical errors and
// unreachable resources, Op for unreachable resources and provider failures,
// Attempts for conflicts.
type Result[T any] struct {
	Kind     Kind
	Value    T
	Op       string
	Cause    error
	Attempts int
}

func Success[T any](v T) Result[T] {
	return Result[T]{Kind: KindSuccess, Value: v}
}

func Logical[T any](cause error) Result[T] {
	return Result[T]{Kind: KindLogicalError, Cause: cause}
}

func InvalidDatabase[T any]() Result[T] {
	return Result[T]{Kind: KindInvalidDatabase}
}

func Unreachable[T any](op string, cause error) Result[T] {
	return Result[T]{Kind: KindResourceUnreachable, Op: op, Cause: cause}
}

func ProviderFailure[T any](op string) Result[T] {
	return Result[T]{Kind: KindProviderFailure, Op: op}
}

func TooManyConflicts[T any](attempts int) Result[T] {
	return Result[T]{Kind: KindTooManyConflicts, Attempts: attempts}
}

// OK reports whether r is a success.
func (r Result[T]) OK() bool {
	return r.Kind == KindSuccess
}

// Err returns nil on success and the typed error of the variant otherwise.
func (r Result[T]) Err() error {
	switch r.Kind {
	case KindSuccess:
		return nil
	case KindLogicalError:
		return &LogicalError{Cause: r.Cause}
	case KindInvalidDatabase:
		return ErrInvalidDatabase
	case KindResourceUnreachable:
		return &UnreachableError{Op: r.Op, Cause: r.Cause}
	case KindProviderFailure:
		return &ProviderFailureError{Op: r.Op}
	case KindTooManyConflicts:
		return &ConflictError{Attempts: r.Attempts}
	}
	return fmt.Errorf("unexpected result kind %v", r.Kind)
}

// Get unpacks r into the usual value/error pair.
func (r Result[T]) Get() (T, error) {
	if r.OK() {
		return r.Value, nil
	}
	var zero T
	return zero, r.Err()
}

func (r Result[T]) String() string {
	switch r.Kind {
	case KindSuccess:
		return "success"
	case KindInvalidDatabase:
		return r.Kind.String()
	}
	return r.Err().Error()
}

// recast converts a failed result to another value type. Success values
// cannot be converted and are reported as a logical error.
func recast[U, T any](r Result[T]) Result[U] {
	if r.OK() {
		return Logical[U](errors.New("recast of a successful result"))
	}
	return Result[U]{Kind: r.Kind, Op: r.Op, Cause: r.Cause, Attempts: r.Attempts}
}

// fromError maps the typed errors produced inside the engine back to a
// Result. Unclassified errors become logical errors.
func fromError[T any](err error) Result[T] {
	var (
		lerr *LogicalError
		uerr *UnreachableError
		perr *ProviderFailureError
		cerr *ConflictError
	)
	switch {
	case err == nil:
		var zero T
		return Success(zero)
	case errors.As(err, &lerr):
		return Logical[T](lerr.Cause)
	case errors.As(err, &uerr):
		return Unreachable[T](uerr.Op, uerr.Cause)
	case errors.As(err, &perr):
		return ProviderFailure[T](perr.Op)
	case errors.As(err, &cerr):
		return TooManyConflicts[T](cerr.Attempts)
	case errors.Is(err, ErrInvalidDatabase):
		return InvalidDatabase[T]()
	}
	return Logical[T](err)
}
