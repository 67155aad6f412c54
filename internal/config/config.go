package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// Registry drivers accepted by Config.RegistryDriver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// Config holds runtime settings for the userdb tool.
//
// Fields:
//   - DataDir: root of managed/, cached/ and the default registry file.
//   - RegistryDriver / RegistryDSN: where user records live. An empty DSN
//     with the sqlite driver means DataDir/registry.db.
//   - MaxConflictRetries, RetryBaseDelay, RetryMaxDelay: conflict retry policy.
//   - S3AccessKey / S3SecretKey / S3Region / S3BaseEndpoint: credentials and
//     endpoint for s3:// documents. Empty keys use the default AWS chain.
//   - HTTPTimeout: per-request timeout for http(s):// documents.
//   - WatchDebounce: quiet period before the watcher refreshes a cache.
//   - LogLevel / LogFile: logging setup; an empty LogFile logs to stderr.
type Config struct {
	DataDir            string
	RegistryDriver     string
	RegistryDSN        string
	MaxConflictRetries int
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
	S3AccessKey        string
	S3SecretKey        string
	S3Region           string
	S3BaseEndpoint     string
	HTTPTimeout        time.Duration
	WatchDebounce      time.Duration
	LogLevel           string
	LogFile            string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DataDir = "./userdb-data"
	c.RegistryDriver = DriverSQLite
	c.RegistryDSN = ""
	c.MaxConflictRetries = 5
	c.RetryBaseDelay = 100 * time.Millisecond
	c.RetryMaxDelay = 2 * time.Second
	c.S3Region = "us-east-1"
	c.HTTPTimeout = 30 * time.Second
	c.WatchDebounce = 500 * time.Millisecond
	c.LogLevel = "info"
}

// LoadConfig applies defaults and then the JSON file named by -c/--config
// in args, if any. Flags are applied later, when the command line is
// parsed against a FlagSet prepared by BindFlags.
func LoadConfig(args []string) *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg, args)
	return cfg
}

// RegistrySource returns the DSN to open for the configured driver.
func (c *Config) RegistrySource() string {
	if c.RegistryDSN == "" && c.RegistryDriver == DriverSQLite {
		return filepath.Join(c.DataDir, "registry.db")
	}
	return c.RegistryDSN
}

// Validate reports settings the application cannot start with.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data dir must not be empty")
	}
	switch c.RegistryDriver {
	case DriverSQLite:
	case DriverPostgres:
		if c.RegistryDSN == "" {
			return fmt.Errorf("registry dsn is required for driver %q", c.RegistryDriver)
		}
	default:
		return fmt.Errorf("unknown registry driver %q", c.RegistryDriver)
	}
	if c.RetryBaseDelay < 0 || c.RetryMaxDelay < 0 {
		return fmt.Errorf("retry delays must not be negative")
	}
	return nil
}
