// Package config loads runtime configuration for the userdb tool.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or --config.
//  3. Command-line flags registered by BindFlags, which override earlier
//     values.
//
// # JSON schema
//
// Durations use timex.Duration, so they may be strings like "100ms" or
// integer nanoseconds. Keys missing from the file keep their default.
//
//	{
//	  "data_dir": "./userdb-data",
//	  "registry_driver": "sqlite",
//	  "registry_dsn": "",
//	  "max_conflict_retries": 5,
//	  "retry_base_delay": "100ms",
//	  "retry_max_delay": "2s",
//	  "s3_access_key": "",
//	  "s3_secret_key": "",
//	  "s3_region": "us-east-1",
//	  "s3_base_endpoint": "",
//	  "http_timeout": "30s",
//	  "watch_debounce": "500ms",
//	  "log_level": "info",
//	  "log_file": ""
//	}
//
// Note: This package does not read environment variables directly; use the
// JSON file or flags to configure values.
package config
