// Package app wires configuration, logging, the registry, providers and
// the sync engine into one object the command line drives.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/userdb/internal/config"
	"github.com/dmitrijs2005/userdb/internal/filex"
	"github.com/dmitrijs2005/userdb/internal/logging"
	"github.com/dmitrijs2005/userdb/internal/provider"
	"github.com/dmitrijs2005/userdb/internal/registry"
	"github.com/dmitrijs2005/userdb/internal/syncdb"
	"github.com/dmitrijs2005/userdb/internal/watch"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	registry registry.Store
	engine   *syncdb.Engine
	closers  []io.Closer
}

// NewApp opens the registry and builds the engine described by c. Close
// releases everything NewApp acquired.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	logger, logCloser := logging.New(logging.Options{Level: c.LogLevel, File: c.LogFile})
	app := &App{config: c, logger: logger, closers: []io.Closer{logCloser}}

	if err := app.init(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) error {
	c := app.config

	if err := os.MkdirAll(c.DataDir, 0o770); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	reg, err := openRegistry(ctx, c)
	if err != nil {
		return fmt.Errorf("registry init error: %w", err)
	}
	app.registry = reg
	app.closers = append(app.closers, reg)

	layout, err := syncdb.NewLayout(c.DataDir)
	if err != nil {
		return err
	}

	prov, err := newProvider(ctx, c, reg)
	if err != nil {
		return err
	}

	eng, err := syncdb.New(syncdb.Config{
		Layout:   layout,
		Registry: reg,
		Provider: prov,
		Retry: syncdb.RetryPolicy{
			MaxConflictRetries: c.MaxConflictRetries,
			BaseDelay:          c.RetryBaseDelay,
			MaxDelay:           c.RetryMaxDelay,
			JitterPercent:      50,
		},
		Logger: app.logger,
	})
	if err != nil {
		return err
	}
	app.engine = eng
	return nil
}

func openRegistry(ctx context.Context, c *config.Config) (registry.Store, error) {
	switch c.RegistryDriver {
	case config.DriverPostgres:
		return registry.OpenPostgres(ctx, c.RegistrySource())
	default:
		return registry.OpenSQLite(ctx, c.RegistrySource())
	}
}

// newProvider routes file, s3 and http(s) locators to their providers.
// Grants are kept in the registry.
func newProvider(ctx context.Context, c *config.Config, grants provider.GrantStore) (*provider.Mux, error) {
	spool, err := filex.EnsureSubdDir(c.DataDir, "spool")
	if err != nil {
		return nil, err
	}

	s3c, err := provider.NewS3Client(ctx, provider.S3Options{
		AccessKey:    c.S3AccessKey,
		SecretKey:    c.S3SecretKey,
		Region:       c.S3Region,
		BaseEndpoint: c.S3BaseEndpoint,
	})
	if err != nil {
		return nil, err
	}

	httpc := &http.Client{Timeout: c.HTTPTimeout}
	web := provider.NewHTTPProvider(httpc, grants, spool)

	return provider.NewMux().
		Handle("file", provider.NewFileProvider(grants)).
		Handle("s3", provider.NewS3Provider(s3c, grants, spool)).
		Handle("http", web).
		Handle("https", web), nil
}

func (app *App) Engine() *syncdb.Engine { return app.engine }

func (app *App) Logger() logging.Logger { return app.logger }

// Close releases the registry and flushes the log file.
func (app *App) Close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	app.closers = nil
	return errors.Join(errs...)
}

// SignalContext returns a context cancelled on SIGINT, SIGTERM or SIGQUIT.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
}

// Watch keeps the caches of the given external users warm until ctx is
// done. Only users whose document is a local file can be watched.
func (app *App) Watch(ctx context.Context, userIDs []string) error {
	w, err := watch.New(app.refresh, app.config.WatchDebounce, app.logger)
	if err != nil {
		return err
	}
	defer w.Close()

	watched := 0
	for _, id := range userIDs {
		st, err := app.engine.Status(ctx, id)
		if err != nil {
			return err
		}
		if st.Mode != syncdb.External || st.Location.Scheme() != "file" {
			app.logger.Warn(ctx, "not watching user without a file document", "user", id, "mode", st.Mode.String())
			continue
		}
		path, err := st.Location.FilePath()
		if err != nil {
			return err
		}
		if err := w.Add(id, path); err != nil {
			return err
		}
		watched++

		// Start from a warm cache.
		if err := app.refresh(ctx, id); err != nil {
			app.logger.Warn(ctx, "initial refresh failed", "user", id, "error", err)
		}
	}
	if watched == 0 {
		return errors.New("nothing to watch")
	}

	app.logger.Info(ctx, "watching documents", "users", watched)
	return w.Run(ctx)
}

func (app *App) refresh(ctx context.Context, userID string) error {
	return app.engine.Refresh(ctx, userID).Err()
}
