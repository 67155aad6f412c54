// Package dbx provides tiny DB abstractions shared by the registry and the
// transaction executor: a minimal interface (DBTX) implemented by both
// *sql.DB and *sql.Tx, and a helper to run functions inside a transaction.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql handed to repositories and to
// transaction bodies. Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx begins a transaction, runs fn with a transactional handle, and then
// commits on success or rolls back on error/panic. Panics are rethrown after
// the rollback.
//
// Typical use:
//
//	n, err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) (int64, error) {
//	    res, err := tx.ExecContext(ctx, "UPDATE ...")
//	    if err != nil {
//	        return 0, err
//	    }
//	    return res.RowsAffected()
//	})
func WithTx[T any](ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) (T, error)) (out T, err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return out, err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	out, err = fn(ctx, tx)
	return out, err
}
