package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/userdb/internal/common"
	"github.com/dmitrijs2005/userdb/internal/dbx"
	"github.com/dmitrijs2005/userdb/internal/provider"
)

// SQLiteRepository implements Registry and provider.GrantStore on a local
// SQLite file.
type SQLiteRepository struct {
	conn *sql.DB
	db   dbx.DBTX
}

// OpenSQLite opens (creating if needed) the registry file at path and
// applies migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	conn, err := dbx.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, conn, "sqlite3"); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &SQLiteRepository{conn: conn, db: conn}, nil
}

// NewSQLiteRepository returns a repository bound to an already migrated DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, userID string) (UserRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, external_location, cached_external_ts FROM users WHERE id = ?`, userID)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return UserRecord{}, common.ErrorNotFound
	}
	if err != nil {
		return UserRecord{}, fmt.Errorf("failed to get user[%s]: %w", userID, err)
	}
	return rec, nil
}

func (r *SQLiteRepository) Ensure(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO users (id) VALUES (?) ON CONFLICT(id) DO NOTHING`, userID)
	if err != nil {
		return fmt.Errorf("failed to ensure user[%s]: %w", userID, err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]UserRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, external_location, cached_external_ts FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var result []UserRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) SetCachedTimestamp(ctx context.Context, userID string, ts provider.Timestamp) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET cached_external_ts = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		toNull(ts), userID)
	if err != nil {
		return fmt.Errorf("failed to set timestamp[%s]: %w", userID, err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLiteRepository) SetExternalLocation(ctx context.Context, userID string, loc provider.Locator, ts provider.Timestamp) error {
	if loc == "" {
		ts = provider.Unknown
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, external_location, cached_external_ts) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET external_location = excluded.external_location,
			cached_external_ts = excluded.cached_external_ts,
			updated_at = CURRENT_TIMESTAMP
	`, userID, locatorArg(loc), toNull(ts))
	if err != nil {
		return fmt.Errorf("failed to set location[%s]: %w", userID, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete user[%s]: %w", userID, err)
	}
	return nil
}

func (r *SQLiteRepository) Grant(ctx context.Context, loc provider.Locator) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO grants (locator) VALUES (?) ON CONFLICT(locator) DO NOTHING`, string(loc))
	if err != nil {
		return fmt.Errorf("failed to record grant[%s]: %w", loc, err)
	}
	return nil
}

func (r *SQLiteRepository) Revoke(ctx context.Context, loc provider.Locator) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM grants WHERE locator = ?`, string(loc)); err != nil {
		return fmt.Errorf("failed to revoke grant[%s]: %w", loc, err)
	}
	return nil
}

func (r *SQLiteRepository) Granted(ctx context.Context, loc provider.Locator) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM grants WHERE locator = ?`, string(loc)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check grant[%s]: %w", loc, err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

var _ Store = (*SQLiteRepository)(nil)
