package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/userdb/internal/common"
	"github.com/dmitrijs2005/userdb/internal/dbx"
	"github.com/dmitrijs2005/userdb/internal/provider"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresRepository implements Registry and provider.GrantStore on
// PostgreSQL through the pgx stdlib driver.
type PostgresRepository struct {
	conn *sql.DB
	db   dbx.DBTX
}

// OpenPostgres connects to dsn and applies migrations.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresRepository, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	if err := Migrate(ctx, conn, "postgres"); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &PostgresRepository{conn: conn, db: conn}, nil
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (UserRecord, error) {
	query :=
		`SELECT id, external_location, cached_external_ts FROM users
		 WHERE id = $1
		 `

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserRecord{}, common.ErrorNotFound
		}
		return UserRecord{}, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) Ensure(ctx context.Context, userID string) error {
	query := `INSERT INTO users (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]UserRecord, error) {
	query :=
		`SELECT id, external_location, cached_external_ts FROM users
		 ORDER BY id
		 `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []UserRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) SetCachedTimestamp(ctx context.Context, userID string, ts provider.Timestamp) error {
	query :=
		`UPDATE users SET cached_external_ts = $1, updated_at = now()
		 WHERE id = $2
		 `

	res, err := r.db.ExecContext(ctx, query, toNull(ts), userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if ra == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) SetExternalLocation(ctx context.Context, userID string, loc provider.Locator, ts provider.Timestamp) error {
	if loc == "" {
		ts = provider.Unknown
	}

	query :=
		`INSERT INTO users (id, external_location, cached_external_ts)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET external_location = EXCLUDED.external_location,
		 cached_external_ts = EXCLUDED.cached_external_ts, updated_at = now()
		 `

	if _, err := r.db.ExecContext(ctx, query, userID, locatorArg(loc), toNull(ts)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Grant(ctx context.Context, loc provider.Locator) error {
	query := `INSERT INTO grants (locator) VALUES ($1) ON CONFLICT (locator) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, string(loc)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Revoke(ctx context.Context, loc provider.Locator) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM grants WHERE locator = $1`, string(loc)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Granted(ctx context.Context, loc provider.Locator) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM grants WHERE locator = $1)`
	if err := r.db.QueryRowContext(ctx, query, string(loc)).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

var _ Store = (*PostgresRepository)(nil)
