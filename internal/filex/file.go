// Package filex contains small filesystem helpers used by the local cache
// layer: directory creation, existence checks and crash-safe writes.
package filex

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// EnsureSubdDir creates base/name (with parents) and returns its path.
func EnsureSubdDir(base, name string) (string, error) {
	dir := filepath.Join(base, name)

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}

// Exists reports whether path names an existing regular file.
func Exists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// RemoveIfExists deletes path. A missing file is not an error.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// TempPath returns a unique sibling path of dst suitable for staging a write
// that is later renamed over dst.
func TempPath(dst string) string {
	dir, base := filepath.Split(dst)
	return filepath.Join(dir, "."+base+"."+uuid.NewString()+".tmp")
}

// WriteAtomic stages the output of fill in a temporary sibling of dst and
// renames it over dst once fill succeeded and the data is synced.
//
// On any failure the temporary file is removed and dst is left untouched, so
// readers never observe a partially written destination.
func WriteAtomic(dst string, fill func(w io.Writer) error) (err error) {
	tmp := TempPath(dst)

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o660)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	if err = fill(f); err != nil {
		return err
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmp, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err = os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", dst, err)
	}

	return nil
}
