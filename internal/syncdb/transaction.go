package syncdb

import (
	"context"

	"github.com/dmitrijs2005/userdb/internal/dbx"
)

// Outcome is what a transaction body hands back. Edited must be true
// whenever the body changed the database; it is the only signal that
// triggers write-back of an external document.
type Outcome[T any] struct {
	Edited bool
	Value  T
}

// Read wraps the result of a body that made no changes.
func Read[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v}
}

// Wrote wraps the result of a body that changed the database.
func Wrote[T any](v T) Outcome[T] {
	return Outcome[T]{Edited: true, Value: v}
}

// Transaction is a unit of work run inside one SQL transaction. Returning
// an error rolls the transaction back and yields a LogicalError.
type Transaction[T any] func(ctx context.Context, tx dbx.DBTX) (Outcome[T], error)
