// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - New returns a Config populated with defaults.
//   - Load layers defaults, an optional YAML file and environment variables.
//   - Validation failures wrap ErrInvalidConfig; I/O and parse failures wrap ErrLoadConfig.
package config

import (
	"context"
	"fmt"
	"strings"
)

// Storage drivers understood by the repository layer.
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverS3       = "s3"
	DriverMemory   = "memory"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// StorageDriver selects the persisted document backend.
	StorageDriver string `koanf:"storage_driver"`
	DataDir       string `koanf:"data_dir"`
	SQLitePath    string `koanf:"sqlite_path"`
	PostgresDSN   string `koanf:"postgres_dsn"`
	// PostgresDriver picks the database/sql driver: pgx or pq.
	PostgresDriver string `koanf:"postgres_driver"`
	S3Bucket       string `koanf:"s3_bucket"`
	S3Region       string `koanf:"s3_region"`
	S3Endpoint     string `koanf:"s3_endpoint"`
	S3PathStyle    bool   `koanf:"s3_path_style"`
	S3Prefix       string `koanf:"s3_prefix"`

	// LeaderboardRetention bounds how many entries a category keeps on disk.
	LeaderboardRetention int `koanf:"leaderboard_retention"`
	// LeaderboardDisplayLimit is the default size of the display view.
	LeaderboardDisplayLimit int `koanf:"leaderboard_display_limit"`
	// MaxLeaderboardLimit caps GET /leaderboard/{category}?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// DefaultCollection receives submissions that name no collection.
	DefaultCollection string `koanf:"default_collection"`

	// Review pipeline.
	ReviewWorkers      int `koanf:"review_workers"`
	ReviewQueueSize    int `koanf:"review_queue_size"`
	ReviewLatencyMinMS int `koanf:"review_latency_min_ms"`
	ReviewLatencyMaxMS int `koanf:"review_latency_max_ms"`

	// IdempotencyWindow bounds how many request ids are remembered.
	IdempotencyWindow int `koanf:"idempotency_window"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                "info",
		LogFormat:               "text",
		Addr:                    ":9080",
		StorageDriver:           DriverFile,
		DataDir:                 "data",
		SQLitePath:              "data/scorekeep.db",
		PostgresDSN:             "postgres://localhost/scorekeep?sslmode=disable",
		PostgresDriver:          "pgx",
		S3Region:                "us-east-1",
		S3Prefix:                "scorekeep/",
		LeaderboardRetention:    50,
		LeaderboardDisplayLimit: 5,
		MaxLeaderboardLimit:     50,
		DefaultCollection:       "general",
		ReviewWorkers:           2,
		ReviewQueueSize:         1024,
		ReviewLatencyMinMS:      80,
		ReviewLatencyMaxMS:      150,
		IdempotencyWindow:       10_000,
	}
}

// Validate reports the first inconsistency found in c.
func (c *Config) Validate(_ context.Context) error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.LeaderboardRetention < 1:
		return fmt.Errorf("%w: leaderboard_retention must be at least 1", ErrInvalidConfig)
	case c.LeaderboardDisplayLimit < 1 || c.LeaderboardDisplayLimit > c.LeaderboardRetention:
		return fmt.Errorf("%w: leaderboard_display_limit must be within [1, leaderboard_retention]", ErrInvalidConfig)
	case c.MaxLeaderboardLimit < 1:
		return fmt.Errorf("%w: max_leaderboard_limit must be at least 1", ErrInvalidConfig)
	case strings.TrimSpace(c.DefaultCollection) == "":
		return fmt.Errorf("%w: default_collection must not be empty", ErrInvalidConfig)
	}

	switch c.StorageDriver {
	case DriverFile:
		if c.DataDir == "" {
			return fmt.Errorf("%w: data_dir is required for the file driver", ErrInvalidConfig)
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite_path is required for the sqlite driver", ErrInvalidConfig)
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%w: postgres_dsn is required for the postgres driver", ErrInvalidConfig)
		}
		if c.PostgresDriver != "pgx" && c.PostgresDriver != "pq" {
			return fmt.Errorf("%w: postgres_driver must be pgx or pq", ErrInvalidConfig)
		}
	case DriverS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("%w: s3_bucket is required for the s3 driver", ErrInvalidConfig)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("%w: unknown storage_driver %q", ErrInvalidConfig, c.StorageDriver)
	}
	return nil
}
