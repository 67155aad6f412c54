package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

var pragmas = []string{
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

// OpenSQLite opens the SQLite file at path with a single connection and
// verifies that the file header is readable. A file that is not a database
// fails here with an error for which IsCorrupt reports true. A missing file
// is created empty.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer per file; the cache and managed files are never shared
	// between connections of this process.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", p, err)
		}
	}

	// The header is only read lazily; force it so corruption is reported at
	// open time rather than halfway through a caller's transaction.
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA schema_version").Scan(&version); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to read database header: %w", err)
	}

	return db, nil
}

// IsCorrupt reports whether err carries SQLite's "not a database" or
// "database disk image is malformed" codes anywhere in its chain.
func IsCorrupt(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch serr.Code() & 0xff {
	case sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB:
		return true
	}
	return false
}
