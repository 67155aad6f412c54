package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/userdb/internal/app"
	"github.com/dmitrijs2005/userdb/internal/dbx"
	"github.com/dmitrijs2005/userdb/internal/provider"
	"github.com/dmitrijs2005/userdb/internal/syncdb"
	"github.com/spf13/cobra"
)

func statusCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "status [user...]",
		Short: "Show where users' databases live",
		Long: `Show mode, document location, remembered document timestamp and which
local files exist. Without arguments every registered user is listed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng := s.app.Engine()

			var sts []syncdb.Status
			if len(args) == 0 {
				all, err := eng.Statuses(ctx)
				if err != nil {
					return err
				}
				sts = all
			}
			for _, id := range args {
				st, err := eng.Status(ctx, id)
				if err != nil {
					return err
				}
				sts = append(sts, st)
			}

			printStatuses(cmd.OutOrStdout(), sts)
			return nil
		},
	}
}

type table struct {
	columns []string
	rows    [][]string
}

func queryCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "query <user> <sql> [args...]",
		Short: "Run a read-only statement and print the rows",
		Long: `Run a statement that does not modify the database. For external users
the cache is refreshed first if the document changed; nothing is written
back.

Examples:
  userdb query alice "SELECT name FROM sqlite_master"
  userdb query alice "SELECT * FROM notes WHERE id = ?" 7`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := syncdb.Run(cmd.Context(), s.app.Engine(), args[0], queryTx(args[1], args[2:]))
			if err := check(cmd.ErrOrStderr(), res); err != nil {
				return err
			}
			printTable(cmd.OutOrStdout(), res.Value.columns, res.Value.rows)
			return nil
		},
	}
}

func execCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <user> <sql> [args...]",
		Short: "Run a modifying statement",
		Long: `Run a statement that changes the database. For external users the edit
is written back to the document; if the document changed meanwhile the
statement is retried on a fresh copy.

Examples:
  userdb exec alice "CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)"
  userdb exec alice "INSERT INTO notes (body) VALUES (?)" "hello"`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := syncdb.Run(cmd.Context(), s.app.Engine(), args[0], execTx(args[1], args[2:]))
			if err := check(cmd.ErrOrStderr(), res); err != nil {
				return err
			}
			done(cmd.OutOrStdout(), "%d row(s) affected", res.Value)
			return nil
		},
	}
}

func externalizeCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "externalize <user> <locator>",
		Short: "Move a managed database into an external document",
		Long: `Copy a managed user's database to the document at <locator> and switch
the user to external mode. Locators are absolute paths, file:// URIs,
s3://bucket/key or http(s) URLs.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := provider.ParseLocator(args[1])
			if err != nil {
				return err
			}
			res := s.app.Engine().NewTransition(args[0]).Externalize(cmd.Context(), loc)
			if err := check(cmd.ErrOrStderr(), res); err != nil {
				return err
			}
			done(cmd.OutOrStdout(), "%s now lives in %s", args[0], loc)
			return nil
		},
	}
}

func internalizeCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "internalize <user>",
		Short: "Move an external document back into a managed database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := s.app.Engine().NewTransition(args[0]).Internalize(cmd.Context())
			if err := check(cmd.ErrOrStderr(), res); err != nil {
				return err
			}
			done(cmd.OutOrStdout(), "%s is managed again", args[0])
			return nil
		},
	}
}

func unlinkCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <user>",
		Short: "Forget a user and delete its local files",
		Long: `Delete the managed database and cache of a user and remove it from the
registry. An external document is left in place.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := s.app.Engine().Unlink(cmd.Context(), args[0])
			if err := check(cmd.ErrOrStderr(), res); err != nil {
				return err
			}
			done(cmd.OutOrStdout(), "%s unlinked", args[0])
			return nil
		},
	}
}

func watchCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <user...>",
		Short: "Refresh caches as soon as documents change",
		Long: `Watch the documents of external users kept in local or synced folders
and refresh their caches after each change. Runs until interrupted.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := app.SignalContext(cmd.Context())
			defer stop()
			return s.app.Watch(ctx, args)
		},
	}
}

func sqlArgs(args []string) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = a
	}
	return out
}

func execTx(query string, args []string) syncdb.Transaction[int64] {
	return func(ctx context.Context, tx dbx.DBTX) (syncdb.Outcome[int64], error) {
		res, err := tx.ExecContext(ctx, query, sqlArgs(args)...)
		if err != nil {
			return syncdb.Outcome[int64]{}, err
		}
		n, err := res.RowsAffected()
		return syncdb.Wrote(n), err
	}
}

func queryTx(query string, args []string) syncdb.Transaction[table] {
	return func(ctx context.Context, tx dbx.DBTX) (out syncdb.Outcome[table], err error) {
		// Statements that would write fail instead of leaving an edit in
		// the cache that is never written back.
		if _, err := tx.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
			return out, err
		}
		defer func() {
			if _, rerr := tx.ExecContext(ctx, "PRAGMA query_only = OFF"); rerr != nil && err == nil {
				err = rerr
			}
		}()

		rows, err := tx.QueryContext(ctx, query, sqlArgs(args)...)
		if err != nil {
			return syncdb.Outcome[table]{}, err
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			return syncdb.Outcome[table]{}, err
		}

		t := table{columns: cols}
		for rows.Next() {
			vals := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return syncdb.Outcome[table]{}, err
			}
			row := make([]string, len(cols))
			for i, v := range vals {
				row[i] = formatValue(v)
			}
			t.rows = append(t.rows, row)
		}
		return syncdb.Read(t), rows.Err()
	}
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	}
	return fmt.Sprint(v)
}
