package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/userdb/internal/flagx"
	"github.com/dmitrijs2005/userdb/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
type JsonConfig struct {
	DataDir            string         `json:"data_dir"`
	RegistryDriver     string         `json:"registry_driver"`
	RegistryDSN        string         `json:"registry_dsn"`
	MaxConflictRetries int            `json:"max_conflict_retries"`
	RetryBaseDelay     timex.Duration `json:"retry_base_delay"`
	RetryMaxDelay      timex.Duration `json:"retry_max_delay"`
	S3AccessKey        string         `json:"s3_access_key"`
	S3SecretKey        string         `json:"s3_secret_key"`
	S3Region           string         `json:"s3_region"`
	S3BaseEndpoint     string         `json:"s3_base_endpoint"`
	HTTPTimeout        timex.Duration `json:"http_timeout"`
	WatchDebounce      timex.Duration `json:"watch_debounce"`
	LogLevel           string         `json:"log_level"`
	LogFile            string         `json:"log_file"`
}

func toJson(c *Config) JsonConfig {
	return JsonConfig{
		DataDir:            c.DataDir,
		RegistryDriver:     c.RegistryDriver,
		RegistryDSN:        c.RegistryDSN,
		MaxConflictRetries: c.MaxConflictRetries,
		RetryBaseDelay:     timex.Duration{Duration: c.RetryBaseDelay},
		RetryMaxDelay:      timex.Duration{Duration: c.RetryMaxDelay},
		S3AccessKey:        c.S3AccessKey,
		S3SecretKey:        c.S3SecretKey,
		S3Region:           c.S3Region,
		S3BaseEndpoint:     c.S3BaseEndpoint,
		HTTPTimeout:        timex.Duration{Duration: c.HTTPTimeout},
		WatchDebounce:      timex.Duration{Duration: c.WatchDebounce},
		LogLevel:           c.LogLevel,
		LogFile:            c.LogFile,
	}
}

// parseJson overlays cfg with the JSON file named by -c/--config in args.
// The DTO starts from the current values so absent keys keep them.
// Panics on read or unmarshal errors.
func parseJson(cfg *Config, args []string) {
	path := flagx.ConfigPath(args)
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	jc := toJson(cfg)
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	cfg.DataDir = jc.DataDir
	cfg.RegistryDriver = jc.RegistryDriver
	cfg.RegistryDSN = jc.RegistryDSN
	cfg.MaxConflictRetries = jc.MaxConflictRetries
	cfg.RetryBaseDelay = jc.RetryBaseDelay.Duration
	cfg.RetryMaxDelay = jc.RetryMaxDelay.Duration
	cfg.S3AccessKey = jc.S3AccessKey
	cfg.S3SecretKey = jc.S3SecretKey
	cfg.S3Region = jc.S3Region
	cfg.S3BaseEndpoint = jc.S3BaseEndpoint
	cfg.HTTPTimeout = jc.HTTPTimeout.Duration
	cfg.WatchDebounce = jc.WatchDebounce.Duration
	cfg.LogLevel = jc.LogLevel
	cfg.LogFile = jc.LogFile
}
