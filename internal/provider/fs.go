package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/userdb/internal/filex"
)

// FileProvider serves documents on a locally mounted filesystem, typically a
// folder kept in sync by a cloud client. Writes go through a temp sibling
// and a rename, so the sync client never uploads a half-written file.
type FileProvider struct {
	grants GrantStore
}

// NewFileProvider returns a FileProvider. grants may be nil, in which case
// persistent access is not recorded.
func NewFileProvider(grants GrantStore) *FileProvider {
	return &FileProvider{grants: grants}
}

func (p *FileProvider) OpenRead(ctx context.Context, loc Locator) (io.ReadCloser, error) {
	path, err := loc.FilePath()
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

func (p *FileProvider) OpenWrite(ctx context.Context, loc Locator) (io.WriteCloser, error) {
	path, err := loc.FilePath()
	if err != nil {
		return nil, err
	}
	tmp := filex.TempPath(path)
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o660)
	if err != nil {
		return nil, fmt.Errorf("open %s for writing: %w", path, err)
	}
	return &renameWriter{f: f, tmp: tmp, dst: path}, nil
}

func (p *FileProvider) LastModified(ctx context.Context, loc Locator) (Timestamp, error) {
	path, err := loc.FilePath()
	if err != nil {
		return Unknown, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return Unknown, fmt.Errorf("stat %s: %w", path, err)
	}
	return At(fi.ModTime()), nil
}

// AcquirePersistentAccess checks that the containing directory is reachable
// and records the grant.
func (p *FileProvider) AcquirePersistentAccess(ctx context.Context, loc Locator) error {
	path, err := loc.FilePath()
	if err != nil {
		return err
	}

	dir, err := os.Stat(filepath.Dir(path))
	if err != nil {
		return fmt.Errorf("stat parent of %s: %w", path, err)
	}
	if !dir.IsDir() {
		return fmt.Errorf("parent of %s is not a directory", path)
	}

	if fi, err := os.Stat(path); err == nil && !fi.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	if p.grants == nil {
		return nil
	}
	return p.grants.Grant(ctx, loc)
}

func (p *FileProvider) ReleasePersistentAccess(ctx context.Context, loc Locator) error {
	if p.grants == nil {
		return nil
	}
	return p.grants.Revoke(ctx, loc)
}

// renameWriter writes to a temp sibling and renames it over dst on Close.
type renameWriter struct {
	f    *os.File
	tmp  string
	dst  string
	done bool
}

func (w *renameWriter) Write(b []byte) (int, error) {
	return w.f.Write(b)
}

func (w *renameWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true

	if err := w.f.Sync(); err != nil {
		_ = w.f.Close()
		_ = os.Remove(w.tmp)
		return fmt.Errorf("sync %s: %w", w.tmp, err)
	}
	if err := w.f.Close(); err != nil {
		_ = os.Remove(w.tmp)
		return fmt.Errorf("close %s: %w", w.tmp, err)
	}
	if err := os.Rename(w.tmp, w.dst); err != nil {
		_ = os.Remove(w.tmp)
		return fmt.Errorf("rename into %s: %w", w.dst, err)
	}
	return nil
}

func (w *renameWriter) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	_ = w.f.Close()
	return filex.RemoveIfExists(w.tmp)
}
