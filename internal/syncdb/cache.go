package syncdb

import (
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/dmitrijs2005/userdb/internal/common"
	"github.com/dmitrijs2005/userdb/internal/filex"
)

const (
	managedDir = "managed"
	cachedDir  = "cached"
)

// SQLite companion files that must follow the main file when it is removed
// or replaced.
var sidecars = []string{"-journal", "-wal", "-shm"}

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._@-]{0,127}$`)

// ValidateUserID rejects ids that cannot be used as a file name component.
func ValidateUserID(userID string) error {
	if !userIDPattern.MatchString(userID) {
		return fmt.Errorf("%w: %q", common.ErrorInvalidUserID, userID)
	}
	return nil
}

// Layout derives the on-disk location of managed and cached databases from
// a user id.
type Layout struct {
	managed string
	cached  string
}

// NewLayout creates root/managed and root/cached if needed.
func NewLayout(root string) (*Layout, error) {
	m, err := filex.EnsureSubdDir(root, managedDir)
	if err != nil {
		return nil, err
	}
	c, err := filex.EnsureSubdDir(root, cachedDir)
	if err != nil {
		return nil, err
	}
	return &Layout{managed: m, cached: c}, nil
}

// ManagedPath returns managed/{id}.db, the authoritative file of a managed
// user.
func (l *Layout) ManagedPath(userID string) (string, error) {
	if err := ValidateUserID(userID); err != nil {
		return "", err
	}
	return filepath.Join(l.managed, userID+".db"), nil
}

// CachePath returns cached/{id}.cached.db, the disposable copy of an
// external user's document.
func (l *Layout) CachePath(userID string) (string, error) {
	if err := ValidateUserID(userID); err != nil {
		return "", err
	}
	return filepath.Join(l.cached, userID+".cached.db"), nil
}

// Exists reports whether a database file is present at path.
func (l *Layout) Exists(path string) bool {
	return filex.Exists(path)
}

// Remove deletes the database at path together with its journal files.
func (l *Layout) Remove(path string) error {
	if err := removeSidecars(path); err != nil {
		return err
	}
	return filex.RemoveIfExists(path)
}

func removeSidecars(path string) error {
	for _, s := range sidecars {
		if err := filex.RemoveIfExists(path + s); err != nil {
			return err
		}
	}
	return nil
}
