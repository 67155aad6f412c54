package syncdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/userdb/internal/cryptox"
	"github.com/dmitrijs2005/userdb/internal/filex"
	"github.com/dmitrijs2005/userdb/internal/provider"
)

// Operation names carried by UnreachableError and ProviderFailureError.
const (
	OpLastModified = "lastModified"
	OpOpenRead     = "openRead"
	OpOpenWrite    = "openWrite"
	OpRead         = "read"
	OpWrite        = "write"
	OpCommit       = "commit"
	OpCache        = "cache"
	OpOpen         = "open"
	OpRegistry     = "registry"
	OpAcquire      = "acquirePersistentAccess"
	OpSync         = "sync"
)

// CopyReport describes a completed copy.
type CopyReport struct {
	Bytes  int64
	Digest cryptox.Sum
}

// ctxReader stops a copy once ctx is done and remembers read failures so
// the caller can tell them apart from write failures.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
	err error
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		c.err = err
		return 0, err
	}
	n, err := c.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		c.err = err
	}
	return n, err
}

func openFailure(op string, err error) error {
	if errors.Is(err, provider.ErrNoStream) {
		return &ProviderFailureError{Op: op}
	}
	return &UnreachableError{Op: op, Cause: err}
}

// CopyExternalToLocal streams the document at loc into dst. dst is replaced
// atomically: on failure it keeps its previous content or stays absent.
func CopyExternalToLocal(ctx context.Context, p provider.Provider, loc provider.Locator, dst string) (CopyReport, error) {
	rc, err := p.OpenRead(ctx, loc)
	if err != nil {
		return CopyReport{}, openFailure(OpOpenRead, err)
	}
	if rc == nil {
		return CopyReport{}, &ProviderFailureError{Op: OpOpenRead}
	}
	defer rc.Close()

	// A journal left by an interrupted transaction belongs to the old
	// content and would be replayed onto the new one.
	if err := removeSidecars(dst); err != nil {
		return CopyReport{}, &UnreachableError{Op: OpCache, Cause: err}
	}

	src := &ctxReader{ctx: ctx, r: rc}
	digest := cryptox.NewDigest()
	var n int64

	err = filex.WriteAtomic(dst, func(w io.Writer) error {
		var cerr error
		n, cerr = io.Copy(io.MultiWriter(w, digest), src)
		return cerr
	})
	if err != nil {
		if src.err != nil {
			return CopyReport{}, &UnreachableError{Op: OpRead, Cause: src.err}
		}
		return CopyReport{}, &UnreachableError{Op: OpCache, Cause: err}
	}

	return CopyReport{Bytes: n, Digest: digest.Sum()}, nil
}

// CopyLocalToExternal streams src into the document at loc. The provider
// writer is aborted on failure so loc keeps its previous content.
func CopyLocalToExternal(ctx context.Context, p provider.Provider, src string, loc provider.Locator) (CopyReport, error) {
	f, err := os.Open(src)
	if err != nil {
		return CopyReport{}, &UnreachableError{Op: OpCache, Cause: err}
	}
	defer f.Close()

	w, err := p.OpenWrite(ctx, loc)
	if err != nil {
		return CopyReport{}, openFailure(OpOpenWrite, err)
	}
	if w == nil {
		return CopyReport{}, &ProviderFailureError{Op: OpOpenWrite}
	}

	in := &ctxReader{ctx: ctx, r: f}
	digest := cryptox.NewDigest()

	n, err := io.Copy(w, io.TeeReader(in, digest))
	if err != nil {
		_ = provider.Abort(w)
		switch {
		case ctx.Err() != nil:
			return CopyReport{}, &UnreachableError{Op: OpWrite, Cause: ctx.Err()}
		case in.err != nil:
			return CopyReport{}, &UnreachableError{Op: OpCache, Cause: in.err}
		}
		return CopyReport{}, &UnreachableError{Op: OpWrite, Cause: err}
	}

	if err := w.Close(); err != nil {
		return CopyReport{}, &UnreachableError{Op: OpCommit, Cause: fmt.Errorf("commit %s: %w", loc, err)}
	}

	return CopyReport{Bytes: n, Digest: digest.Sum()}, nil
}
