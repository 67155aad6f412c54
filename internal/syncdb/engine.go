// Package syncdb runs transactions against a user's SQLite database
// wherever it lives.
//
// A managed user owns managed/{id}.db outright. An external user's
// database is a document behind a provider.Provider; the engine keeps a
// disposable copy in cached/{id}.cached.db and reconciles it with the
// document on every operation:
//
//  1. probe the document's timestamp and compare it with the one the
//     registry remembers; copy the document in when they differ
//  2. run the transaction on the cache
//  3. for editing transactions, re-probe; if the document moved meanwhile
//     drop the cache and start over, otherwise copy the cache out and
//     remember the document's new timestamp
//
// Every entry point returns a Result and never panics. Operations on the
// same user are serialized.
package syncdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/userdb/internal/common"
	"github.com/dmitrijs2005/userdb/internal/dbx"
	"github.com/dmitrijs2005/userdb/internal/logging"
	"github.com/dmitrijs2005/userdb/internal/provider"
	"github.com/dmitrijs2005/userdb/internal/registry"
	"github.com/sethvargo/go-retry"
)

// Mode is the storage policy of a user.
type Mode int

const (
	Managed Mode = iota
	External
)

func (m Mode) String() string {
	if m == External {
		return "external"
	}
	return "managed"
}

// Config holds the collaborators of an Engine.
type Config struct {
	Layout   *Layout
	Registry registry.Registry
	Provider provider.Provider
	Retry    RetryPolicy
	Logger   logging.Logger
}

type Engine struct {
	layout *Layout
	reg    registry.Registry
	prov   provider.Provider
	retry  RetryPolicy
	log    logging.Logger
	users  *Serializer
	exec   *Executor
}

func New(cfg Config) (*Engine, error) {
	if cfg.Layout == nil || cfg.Registry == nil || cfg.Provider == nil {
		return nil, errors.New("syncdb: layout, registry and provider are required")
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}
	return &Engine{
		layout: cfg.Layout,
		reg:    cfg.Registry,
		prov:   cfg.Provider,
		retry:  cfg.Retry,
		log:    log,
		users:  NewSerializer(),
		exec:   NewExecutor(log),
	}, nil
}

// Run executes tx against the database of userID in whichever mode the
// registry records. Unknown users are registered as managed.
func Run[T any](ctx context.Context, e *Engine, userID string, tx Transaction[T]) Result[T] {
	return serialized(ctx, e, userID, func(ctx context.Context) Result[T] {
		rec, res, ok := lookup[T](ctx, e, userID)
		if !ok {
			return res
		}
		if rec.External() {
			return runExternal(ctx, e, userID, tx)
		}
		return runManaged(ctx, e, userID, tx)
	})
}

// RunManaged executes tx against the managed database of userID. It fails
// with ErrWrongMode for external users.
func RunManaged[T any](ctx context.Context, e *Engine, userID string, tx Transaction[T]) Result[T] {
	return serialized(ctx, e, userID, func(ctx context.Context) Result[T] {
		rec, res, ok := lookup[T](ctx, e, userID)
		if !ok {
			return res
		}
		if rec.External() {
			return Logical[T](fmt.Errorf("%w: %s is external", ErrWrongMode, userID))
		}
		return runManaged(ctx, e, userID, tx)
	})
}

// RunExternal executes tx against the cached copy of userID's external
// document. It fails with ErrWrongMode for managed users.
func RunExternal[T any](ctx context.Context, e *Engine, userID string, tx Transaction[T]) Result[T] {
	return serialized(ctx, e, userID, func(ctx context.Context) Result[T] {
		rec, res, ok := lookup[T](ctx, e, userID)
		if !ok {
			return res
		}
		if !rec.External() {
			return Logical[T](fmt.Errorf("%w: %s is managed", ErrWrongMode, userID))
		}
		return runExternal(ctx, e, userID, tx)
	})
}

// Refresh runs an empty read so an external user's cache reflects the
// current document.
func (e *Engine) Refresh(ctx context.Context, userID string) Result[struct{}] {
	return Run(ctx, e, userID, func(ctx context.Context, tx dbx.DBTX) (Outcome[struct{}], error) {
		return Read(struct{}{}), nil
	})
}

func serialized[T any](ctx context.Context, e *Engine, userID string, fn func(ctx context.Context) Result[T]) Result[T] {
	if err := ValidateUserID(userID); err != nil {
		return Logical[T](err)
	}
	var res Result[T]
	err := e.users.Do(ctx, userID, func(ctx context.Context) error {
		res = fn(ctx)
		return nil
	})
	if err != nil {
		return Unreachable[T](OpSync, err)
	}
	return res
}

// lookup returns the registry record of userID, registering unknown users
// as managed. ok is false when res carries a failure.
func lookup[T any](ctx context.Context, e *Engine, userID string) (rec registry.UserRecord, res Result[T], ok bool) {
	rec, err := e.reg.Get(ctx, userID)
	if errors.Is(err, common.ErrorNotFound) {
		if err := e.reg.Ensure(ctx, userID); err != nil {
			return rec, Unreachable[T](OpRegistry, err), false
		}
		return registry.UserRecord{ID: userID}, res, true
	}
	if err != nil {
		return rec, Unreachable[T](OpRegistry, err), false
	}
	return rec, res, true
}

// onCorrupted returns the remediation for a corrupted file. A cache is
// rebuilt from the document on the next run; a managed file is the only
// copy and stays in place.
func (e *Engine) onCorrupted(ctx context.Context, mode Mode, userID, path string) func() {
	return func() {
		if mode == Managed {
			e.log.Error(ctx, "managed database is corrupted, leaving it in place", "user", userID, "path", path)
			return
		}
		e.dropCache(ctx, userID, path, "corrupted")
	}
}

func (e *Engine) dropCache(ctx context.Context, userID, path, reason string) {
	if err := e.layout.Remove(path); err != nil {
		e.log.Error(ctx, "failed to delete cache", "user", userID, "reason", reason, "error", err)
		return
	}
	e.log.Info(ctx, "cache deleted", "user", userID, "reason", reason)
}

func runManaged[T any](ctx context.Context, e *Engine, userID string, tx Transaction[T]) Result[T] {
	path, err := e.layout.ManagedPath(userID)
	if err != nil {
		return Logical[T](err)
	}

	r := Execute(ctx, e.exec, path, e.onCorrupted(ctx, Managed, userID, path), tx)
	if !r.OK() {
		return recast[T](r)
	}
	return Success(r.Value.Value)
}

func runExternal[T any](ctx context.Context, e *Engine, userID string, tx Transaction[T]) Result[T] {
	var (
		res      Result[T]
		attempts int
	)

	err := retry.Do(ctx, e.retry.backoff(), func(ctx context.Context) error {
		attempts++
		r, err := externalAttempt(ctx, e, userID, tx)
		if errors.Is(err, errConflict) {
			e.log.Warn(ctx, "external document changed during transaction, retrying",
				"user", userID, "attempt", attempts)
			return retry.RetryableError(err)
		}
		res = r
		return nil
	})

	switch {
	case errors.Is(err, errConflict):
		e.log.Error(ctx, "giving up after repeated conflicts", "user", userID, "attempts", attempts)
		return TooManyConflicts[T](attempts)
	case err != nil:
		return Unreachable[T](OpSync, err)
	}
	return res
}

// externalAttempt is one pass of the external algorithm. It returns
// errConflict when the pass must be restarted from scratch.
func externalAttempt[T any](ctx context.Context, e *Engine, userID string, tx Transaction[T]) (Result[T], error) {
	rec, err := e.reg.Get(ctx, userID)
	if err != nil {
		return Unreachable[T](OpRegistry, err), nil
	}
	if !rec.External() {
		return Logical[T](fmt.Errorf("%w: %s is managed", ErrWrongMode, userID)), nil
	}
	loc := rec.ExternalLocation

	cachePath, err := e.layout.CachePath(userID)
	if err != nil {
		return Logical[T](err), nil
	}

	observed, err := e.prov.LastModified(ctx, loc)
	if err != nil {
		return Unreachable[T](OpLastModified, err), nil
	}

	exists := e.layout.Exists(cachePath)
	if !IsUpToDate(exists, rec.CachedTimestamp, observed) {
		e.log.Debug(ctx, "cache is stale", "user", userID, "exists", exists,
			"remembered", rec.CachedTimestamp.String(), "current", observed.String())

		report, err := CopyExternalToLocal(ctx, e.prov, loc, cachePath)
		if err != nil {
			e.log.Warn(ctx, "copy-in failed", "user", userID, "error", err)
			return fromError[T](err), nil
		}
		e.log.Debug(ctx, "copied document into cache", "user", userID,
			"bytes", report.Bytes, "digest", report.Digest.Short())

		if err := e.reg.SetCachedTimestamp(ctx, userID, observed); err != nil {
			return Unreachable[T](OpRegistry, err), nil
		}
	}

	r := Execute(ctx, e.exec, cachePath, e.onCorrupted(ctx, External, userID, cachePath), tx)
	if !r.OK() {
		return recast[T](r), nil
	}
	if !r.Value.Edited {
		return Success(r.Value.Value), nil
	}

	// The cache now holds an edit the document lacks. Until write-back
	// completes the remembered timestamp must not vouch for it.
	if err := e.reg.SetCachedTimestamp(ctx, userID, provider.Unknown); err != nil {
		e.dropCache(ctx, userID, cachePath, "could not mark cache as unsynced")
		return Unreachable[T](OpRegistry, err), nil
	}

	current, err := e.prov.LastModified(ctx, loc)
	if err != nil {
		e.dropCache(ctx, userID, cachePath, "probe before write-back failed")
		return Unreachable[T](OpLastModified, err), nil
	}
	if !current.Equal(observed) {
		e.log.Info(ctx, "conflict detected", "user", userID,
			"observed", observed.String(), "current", current.String())
		e.dropCache(ctx, userID, cachePath, "conflict")
		return Result[T]{}, errConflict
	}

	report, err := CopyLocalToExternal(ctx, e.prov, cachePath, loc)
	if err != nil {
		e.log.Warn(ctx, "write-back failed", "user", userID, "error", err)
		e.dropCache(ctx, userID, cachePath, "write-back failed")
		return fromError[T](err), nil
	}
	e.log.Debug(ctx, "wrote cache back to document", "user", userID,
		"bytes", report.Bytes, "digest", report.Digest.Short())

	final, err := e.prov.LastModified(ctx, loc)
	if err != nil {
		// The document holds the edit; an unknown timestamp makes the
		// next run copy it back in.
		e.log.Warn(ctx, "probe after write-back failed", "user", userID, "error", err)
		final = provider.Unknown
	}
	if err := e.reg.SetCachedTimestamp(ctx, userID, final); err != nil {
		e.log.Warn(ctx, "failed to remember timestamp after write-back", "user", userID, "error", err)
	}

	return Success(r.Value.Value), nil
}
