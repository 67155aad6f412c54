package config

import (
	"github.com/spf13/pflag"
)

// BindFlags registers a flag per setting on fs, with the current values of
// cfg as defaults, so parsing fs overrides only what the user typed. The
// -c/--config flag is registered too, although the file has already been
// read by LoadConfig.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringP("config", "c", "", "path to JSON config file")

	fs.StringVarP(&cfg.DataDir, "data-dir", "d", cfg.DataDir, "root directory for managed and cached databases")
	fs.StringVar(&cfg.RegistryDriver, "registry-driver", cfg.RegistryDriver, "registry driver: sqlite or pgx")
	fs.StringVar(&cfg.RegistryDSN, "registry-dsn", cfg.RegistryDSN, "registry DSN (default <data-dir>/registry.db for sqlite)")
	fs.IntVar(&cfg.MaxConflictRetries, "max-conflict-retries", cfg.MaxConflictRetries, "attempts before giving up on a changing document (0 = unbounded)")
	fs.DurationVar(&cfg.RetryBaseDelay, "retry-base-delay", cfg.RetryBaseDelay, "initial backoff after a conflict")
	fs.DurationVar(&cfg.RetryMaxDelay, "retry-max-delay", cfg.RetryMaxDelay, "maximum backoff after a conflict")
	fs.StringVar(&cfg.S3AccessKey, "s3-access-key", cfg.S3AccessKey, "S3 access key")
	fs.StringVar(&cfg.S3SecretKey, "s3-secret-key", cfg.S3SecretKey, "S3 secret key")
	fs.StringVar(&cfg.S3Region, "s3-region", cfg.S3Region, "S3 region")
	fs.StringVar(&cfg.S3BaseEndpoint, "s3-base-endpoint", cfg.S3BaseEndpoint, "S3-compatible endpoint URL")
	fs.DurationVar(&cfg.HTTPTimeout, "http-timeout", cfg.HTTPTimeout, "timeout for http(s) documents")
	fs.DurationVar(&cfg.WatchDebounce, "watch-debounce", cfg.WatchDebounce, "quiet period before refreshing after a change")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "write JSON logs to this rotating file")
}
