package syncdb

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/userdb/internal/dbx"
	"github.com/dmitrijs2005/userdb/internal/logging"
)

// Executor opens local database files and runs transactions against them,
// one at a time per file.
type Executor struct {
	files *Serializer
	log   logging.Logger
}

func NewExecutor(log logging.Logger) *Executor {
	if log == nil {
		log = logging.Nop()
	}
	return &Executor{files: NewSerializer(), log: log}
}

// Execute runs tx against the SQLite file at path. Errors returned or
// panics raised by tx become a LogicalError. When the file turns out not to
// be a valid database, onCorrupted is called and InvalidDatabase returned.
// The database handle is closed on every path.
func Execute[T any](ctx context.Context, ex *Executor, path string, onCorrupted func(), tx Transaction[T]) (res Result[Outcome[T]]) {
	err := ex.files.Do(ctx, path, func(ctx context.Context) error {
		res = executeLocked(ctx, ex, path, onCorrupted, tx)
		return nil
	})
	if err != nil {
		return Unreachable[Outcome[T]](OpOpen, err)
	}
	return res
}

func executeLocked[T any](ctx context.Context, ex *Executor, path string, onCorrupted func(), tx Transaction[T]) (res Result[Outcome[T]]) {
	db, err := dbx.OpenSQLite(ctx, path)
	if err != nil {
		if dbx.IsCorrupt(err) {
			return corrupted[Outcome[T]](ctx, ex, path, onCorrupted, err)
		}
		return Unreachable[Outcome[T]](OpOpen, err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			ex.log.Warn(ctx, "failed to close database", "path", path, "error", cerr)
		}
	}()

	defer func() {
		if p := recover(); p != nil {
			ex.log.Error(ctx, "transaction panicked", "path", path, "panic", p)
			res = Logical[Outcome[T]](fmt.Errorf("transaction panicked: %v", p))
		}
	}()

	out, err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, q dbx.DBTX) (Outcome[T], error) {
		before, err := totalChanges(ctx, q)
		if err != nil {
			return Outcome[T]{}, err
		}
		out, err := tx(ctx, q)
		if err != nil || out.Edited {
			return out, err
		}
		after, err := totalChanges(ctx, q)
		if err != nil {
			return Outcome[T]{}, err
		}
		if after != before {
			return Outcome[T]{}, fmt.Errorf("%w: %d row(s)", ErrUnreportedEdit, after-before)
		}
		return out, nil
	})
	if err != nil {
		if dbx.IsCorrupt(err) {
			return corrupted[Outcome[T]](ctx, ex, path, onCorrupted, err)
		}
		return Logical[Outcome[T]](err)
	}

	return Success(out)
}

// totalChanges returns the rows inserted, updated or deleted on the
// connection so far. Schema changes are not counted.
func totalChanges(ctx context.Context, q dbx.DBTX) (int64, error) {
	var n int64
	if err := q.QueryRowContext(ctx, "SELECT total_changes()").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func corrupted[T any](ctx context.Context, ex *Executor, path string, onCorrupted func(), err error) Result[T] {
	ex.log.Error(ctx, "database is corrupted", "path", path, "error", err)
	if onCorrupted != nil {
		onCorrupted()
	}
	return InvalidDatabase[T]()
}
