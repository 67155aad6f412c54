package syncdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/dmitrijs2005/userdb/internal/dbx"
	"github.com/dmitrijs2005/userdb/internal/provider"
)

// Transition moves one user between managed and external mode. A
// Transition performs at most one successful move; afterwards every call
// fails with ErrConsumed. A failed move leaves the user in the original
// mode and may be retried.
type Transition struct {
	e      *Engine
	userID string

	mu       sync.Mutex
	consumed bool
}

func (e *Engine) NewTransition(userID string) *Transition {
	return &Transition{e: e, userID: userID}
}

// Externalize moves a managed user's database into the document at loc.
// The managed file becomes the initial cache.
func (t *Transition) Externalize(ctx context.Context, loc provider.Locator) Result[struct{}] {
	return t.once(ctx, func(ctx context.Context) Result[struct{}] {
		return externalize(ctx, t.e, t.userID, loc)
	})
}

// Internalize copies an external user's document into a managed file and
// forgets the document.
func (t *Transition) Internalize(ctx context.Context) Result[struct{}] {
	return t.once(ctx, func(ctx context.Context) Result[struct{}] {
		return internalize(ctx, t.e, t.userID)
	})
}

func (t *Transition) once(ctx context.Context, fn func(ctx context.Context) Result[struct{}]) Result[struct{}] {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.consumed {
		return Logical[struct{}](ErrConsumed)
	}
	res := serialized(ctx, t.e, t.userID, fn)
	if res.OK() {
		t.consumed = true
	}
	return res
}

func externalize(ctx context.Context, e *Engine, userID string, loc provider.Locator) Result[struct{}] {
	rec, res, ok := lookup[struct{}](ctx, e, userID)
	if !ok {
		return res
	}
	if rec.External() {
		return Logical[struct{}](fmt.Errorf("%w: %s is already external", ErrWrongMode, userID))
	}
	if loc == "" {
		return Logical[struct{}](errors.New("empty locator"))
	}
	owner, err := locationOwner(ctx, e, loc)
	if err != nil {
		return Unreachable[struct{}](OpRegistry, err)
	}
	if owner != "" {
		return Logical[struct{}](fmt.Errorf("%w: %s is used by %s", ErrLocationInUse, loc, owner))
	}

	managedPath, err := e.layout.ManagedPath(userID)
	if err != nil {
		return Logical[struct{}](err)
	}
	cachePath, err := e.layout.CachePath(userID)
	if err != nil {
		return Logical[struct{}](err)
	}

	if err := e.prov.AcquirePersistentAccess(ctx, loc); err != nil {
		return fromError[struct{}](openFailure(OpAcquire, err))
	}
	release := func() {
		if err := e.prov.ReleasePersistentAccess(ctx, loc); err != nil {
			e.log.Warn(ctx, "failed to release access grant", "user", userID, "locator", loc.String(), "error", err)
		}
	}

	// A brand-new managed database only exists on disk after its first
	// write.
	touch := runManaged(ctx, e, userID, func(ctx context.Context, tx dbx.DBTX) (Outcome[struct{}], error) {
		return Wrote(struct{}{}), nil
	})
	if !touch.OK() {
		release()
		return touch
	}

	report, err := CopyLocalToExternal(ctx, e.prov, managedPath, loc)
	if err != nil {
		release()
		return fromError[struct{}](err)
	}

	ts, err := e.prov.LastModified(ctx, loc)
	if err != nil {
		e.log.Warn(ctx, "probe after externalize failed", "user", userID, "error", err)
		ts = provider.Unknown
	}

	if err := e.reg.SetExternalLocation(ctx, userID, loc, ts); err != nil {
		release()
		return Unreachable[struct{}](OpRegistry, err)
	}

	// The registry already points at the document, so a failure below only
	// costs one extra copy-in.
	if err := e.layout.Remove(cachePath); err != nil {
		e.log.Warn(ctx, "failed to clear cache slot", "user", userID, "error", err)
	}
	if err := os.Rename(managedPath, cachePath); err != nil {
		e.log.Warn(ctx, "failed to adopt managed file as cache", "user", userID, "error", err)
		if err := e.reg.SetCachedTimestamp(ctx, userID, provider.Unknown); err != nil {
			e.log.Warn(ctx, "failed to reset timestamp", "user", userID, "error", err)
		}
	}

	e.log.Info(ctx, "user externalized", "user", userID, "locator", loc.String(),
		"bytes", report.Bytes, "digest", report.Digest.Short(), "ts", ts.String())
	return Success(struct{}{})
}

// locationOwner returns the user whose document is loc, or "".
func locationOwner(ctx context.Context, e *Engine, loc provider.Locator) (string, error) {
	recs, err := e.reg.List(ctx)
	if err != nil {
		return "", err
	}
	for _, rec := range recs {
		if rec.ExternalLocation == loc {
			return rec.ID, nil
		}
	}
	return "", nil
}

func internalize(ctx context.Context, e *Engine, userID string) Result[struct{}] {
	rec, res, ok := lookup[struct{}](ctx, e, userID)
	if !ok {
		return res
	}
	if !rec.External() {
		return Logical[struct{}](fmt.Errorf("%w: %s is already managed", ErrWrongMode, userID))
	}
	loc := rec.ExternalLocation

	managedPath, err := e.layout.ManagedPath(userID)
	if err != nil {
		return Logical[struct{}](err)
	}
	cachePath, err := e.layout.CachePath(userID)
	if err != nil {
		return Logical[struct{}](err)
	}

	report, err := CopyExternalToLocal(ctx, e.prov, loc, managedPath)
	if err != nil {
		return fromError[struct{}](err)
	}

	if err := e.reg.SetExternalLocation(ctx, userID, "", provider.Unknown); err != nil {
		if rerr := e.layout.Remove(managedPath); rerr != nil {
			e.log.Warn(ctx, "failed to remove managed copy", "user", userID, "error", rerr)
		}
		return Unreachable[struct{}](OpRegistry, err)
	}

	e.dropCache(ctx, userID, cachePath, "internalized")

	if err := e.prov.ReleasePersistentAccess(ctx, loc); err != nil {
		e.log.Warn(ctx, "failed to release access grant", "user", userID, "locator", loc.String(), "error", err)
	}

	e.log.Info(ctx, "user internalized", "user", userID, "locator", loc.String(),
		"bytes", report.Bytes, "digest", report.Digest.Short())
	return Success(struct{}{})
}
