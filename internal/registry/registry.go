// Package registry persists, per user, where that user's database lives and
// which external timestamp the local cache was last synchronized with.
//
// # Data Model
//
// One row per user: id, an optional external locator and an optional cached
// external timestamp. A row without a locator means the user's database is
// managed locally. The timestamp is only meaningful when a locator is set.
// A second table records the persistent access grants held by providers.
//
// # Implementations
//
//   - SQLite   — default, a file next to the managed databases
//   - Postgres — for installations sharing one registry between hosts
//
// Both apply their embedded goose migrations on open.
package registry

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/userdb/internal/provider"
)

// UserRecord is the registry row of one user.
type UserRecord struct {
	ID               string
	ExternalLocation provider.Locator
	CachedTimestamp  provider.Timestamp
}

// External reports whether the user's database lives in an external
// document.
func (r UserRecord) External() bool {
	return r.ExternalLocation != ""
}

// Registry is the metadata store consulted and updated by the sync engine.
// Writes are durable when the call returns.
type Registry interface {
	// Get returns the user's record or common.ErrorNotFound.
	Get(ctx context.Context, userID string) (UserRecord, error)

	// Ensure creates a managed-mode row for userID unless one exists.
	Ensure(ctx context.Context, userID string) error

	// List returns every known user ordered by id.
	List(ctx context.Context) ([]UserRecord, error)

	// SetCachedTimestamp records the external timestamp the cache now
	// reflects. Returns common.ErrorNotFound for unknown users.
	SetCachedTimestamp(ctx context.Context, userID string, ts provider.Timestamp) error

	// SetExternalLocation creates or updates the user's row. An empty loc
	// switches the user to managed mode and clears the timestamp.
	SetExternalLocation(ctx context.Context, userID string, loc provider.Locator, ts provider.Timestamp) error

	// Delete removes the user's row. Deleting an unknown user is a no-op.
	Delete(ctx context.Context, userID string) error

	Close() error
}

// Store is a Registry that also records provider access grants. Both
// bundled implementations satisfy it.
type Store interface {
	Registry
	provider.GrantStore
}

func toNull(ts provider.Timestamp) sql.NullInt64 {
	return sql.NullInt64{Int64: ts.Millis(), Valid: ts.Known()}
}

func fromNull(n sql.NullInt64) provider.Timestamp {
	if !n.Valid {
		return provider.Unknown
	}
	return provider.FromMillis(n.Int64)
}

func locatorArg(loc provider.Locator) sql.NullString {
	return sql.NullString{String: string(loc), Valid: loc != ""}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (UserRecord, error) {
	var (
		rec UserRecord
		loc sql.NullString
		ts  sql.NullInt64
	)
	if err := s.Scan(&rec.ID, &loc, &ts); err != nil {
		return UserRecord{}, err
	}
	rec.ExternalLocation = provider.Locator(loc.String)
	if rec.External() {
		rec.CachedTimestamp = fromNull(ts)
	}
	return rec, nil
}
