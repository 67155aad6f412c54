// Package provider abstracts byte-stream access to documents the application
// does not own: a file in a cloud-synced folder, an S3 object, or an HTTP
// resource. The sync engine only ever talks to a Provider.
//
// # Stream semantics
//
// OpenRead and OpenWrite distinguish two kinds of failure. A returned error
// means the resource could not be reached (permission revoked, file deleted,
// network down). A nil stream with a nil error, or ErrNoStream, means the
// provider answered but had nothing to hand out. Callers keep these apart for
// diagnostics.
//
// Writers returned by OpenWrite commit on Close. When a copy fails midway the
// caller invokes Abort (see Aborter) so the external document stays untouched.
package provider

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNoStream is returned when the provider has no stream to offer for a
	// reachable locator.
	ErrNoStream = errors.New("provider returned no stream")

	// ErrUnsupportedScheme is returned for locators no provider handles.
	ErrUnsupportedScheme = errors.New("unsupported locator scheme")
)

// Provider reads, writes and stats externally owned documents.
type Provider interface {
	// OpenRead returns a stream over the current content of loc.
	OpenRead(ctx context.Context, loc Locator) (io.ReadCloser, error)

	// OpenWrite returns a writer replacing the content of loc. The new
	// content becomes visible only after Close returns nil.
	OpenWrite(ctx context.Context, loc Locator) (io.WriteCloser, error)

	// LastModified reports the modification time of loc. Providers that
	// cannot tell return Unknown with a nil error.
	LastModified(ctx context.Context, loc Locator) (Timestamp, error)

	// AcquirePersistentAccess makes access to loc survive restarts.
	AcquirePersistentAccess(ctx context.Context, loc Locator) error

	// ReleasePersistentAccess drops a grant taken by AcquirePersistentAccess.
	ReleasePersistentAccess(ctx context.Context, loc Locator) error
}

// Aborter is implemented by writers that can discard staged content instead
// of committing it.
type Aborter interface {
	Abort() error
}

// Abort discards w when it supports Aborter, and closes it otherwise.
func Abort(w io.WriteCloser) error {
	if a, ok := w.(Aborter); ok {
		return a.Abort()
	}
	return w.Close()
}

// GrantStore persists which locators the application holds long-lived
// access to. The registry implements it.
type GrantStore interface {
	Grant(ctx context.Context, loc Locator) error
	Revoke(ctx context.Context, loc Locator) error
	Granted(ctx context.Context, loc Locator) (bool, error)
}
