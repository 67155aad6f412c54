package cli

import (
	"context"
	"errors"
	"io"

	"github.com/dmitrijs2005/userdb/internal/app"
	"github.com/dmitrijs2005/userdb/internal/config"
	"github.com/spf13/cobra"
)

// session carries the App between the persistent hook and a command.
type session struct {
	cfg *config.Config
	app *app.App
}

// Execute runs the command line args against cfg and releases the App
// afterwards whether the command succeeded or not. cfg should already hold
// defaults and the JSON file; flags override it before the App is built.
func Execute(ctx context.Context, cfg *config.Config, version string, args []string, stdout, stderr io.Writer) error {
	s := &session{cfg: cfg}
	root := newRootCmd(s, version)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	return errors.Join(err, s.close())
}

func newRootCmd(s *session, version string) *cobra.Command {
	root := &cobra.Command{
		Use:     "userdb",
		Short:   "Per-user SQLite databases, managed locally or kept in external documents",
		Version: version,
		Long: `userdb runs SQL against a user's database wherever it lives.

Managed users keep their database under <data-dir>/managed. External users
keep it in a document they own (a synced file, an S3 object or an HTTP
resource); userdb works on a local cached copy and writes edits back.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.NewApp(cmd.Context(), s.cfg)
			if err != nil {
				return err
			}
			s.app = a
			return nil
		},
	}

	config.BindFlags(root.PersistentFlags(), s.cfg)

	root.AddCommand(statusCmd(s))
	root.AddCommand(queryCmd(s))
	root.AddCommand(execCmd(s))
	root.AddCommand(externalizeCmd(s))
	root.AddCommand(internalizeCmd(s))
	root.AddCommand(unlinkCmd(s))
	root.AddCommand(watchCmd(s))

	return root
}

func (s *session) close() error {
	if s.app == nil {
		return nil
	}
	err := s.app.Close()
	s.app = nil
	return err
}
