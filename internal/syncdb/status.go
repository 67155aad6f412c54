package syncdb

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/userdb/internal/common"
	"github.com/dmitrijs2005/userdb/internal/provider"
	"github.com/dmitrijs2005/userdb/internal/registry"
)

// Status describes where a user's database lives and what is on disk.
type Status struct {
	UserID        string
	Mode          Mode
	Location      provider.Locator
	Remembered    provider.Timestamp
	ManagedExists bool
	CacheExists   bool
	Registered    bool
}

// Status reports the state of userID without touching the provider.
func (e *Engine) Status(ctx context.Context, userID string) (Status, error) {
	if err := ValidateUserID(userID); err != nil {
		return Status{}, err
	}
	rec, err := e.reg.Get(ctx, userID)
	registered := true
	if errors.Is(err, common.ErrorNotFound) {
		rec, err, registered = registry.UserRecord{ID: userID}, nil, false
	}
	if err != nil {
		return Status{}, err
	}
	return e.status(rec, registered), nil
}

// Statuses reports every registered user.
func (e *Engine) Statuses(ctx context.Context) ([]Status, error) {
	recs, err := e.reg.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(recs))
	for _, rec := range recs {
		if ValidateUserID(rec.ID) != nil {
			continue
		}
		out = append(out, e.status(rec, true))
	}
	return out, nil
}

func (e *Engine) status(rec registry.UserRecord, registered bool) Status {
	st := Status{
		UserID:     rec.ID,
		Location:   rec.ExternalLocation,
		Remembered: rec.CachedTimestamp,
		Registered: registered,
	}
	if rec.External() {
		st.Mode = External
	}
	if p, err := e.layout.ManagedPath(rec.ID); err == nil {
		st.ManagedExists = e.layout.Exists(p)
	}
	if p, err := e.layout.CachePath(rec.ID); err == nil {
		st.CacheExists = e.layout.Exists(p)
	}
	return st
}

// Unlink forgets userID: local files are deleted, an external document's
// access grant is released and the registry row removed. The external
// document itself is left alone.
func (e *Engine) Unlink(ctx context.Context, userID string) Result[struct{}] {
	return serialized(ctx, e, userID, func(ctx context.Context) Result[struct{}] {
		rec, err := e.reg.Get(ctx, userID)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return Unreachable[struct{}](OpRegistry, err)
		}

		for _, pathOf := range []func(string) (string, error){e.layout.ManagedPath, e.layout.CachePath} {
			p, err := pathOf(userID)
			if err != nil {
				return Logical[struct{}](err)
			}
			if err := e.layout.Remove(p); err != nil {
				return Unreachable[struct{}](OpCache, err)
			}
		}

		if rec.External() {
			if err := e.prov.ReleasePersistentAccess(ctx, rec.ExternalLocation); err != nil {
				e.log.Warn(ctx, "failed to release access grant", "user", userID, "error", err)
			}
		}

		if err := e.reg.Delete(ctx, userID); err != nil {
			return Unreachable[struct{}](OpRegistry, err)
		}
		e.log.Info(ctx, "user unlinked", "user", userID)
		return Success(struct{}{})
	})
}
