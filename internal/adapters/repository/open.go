package repository

import (
	"context"
	"fmt"

	"github.com/okian/scorekeep/internal/config"
)

// Open selects and opens the backend named by cfg.StorageDriver. The
// returned store reports metrics under the driver name.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.StorageDriver {
	case config.DriverFile:
		s, err = NewFileStore(cfg.DataDir, opts...)
	case config.DriverSQLite:
		s, err = NewSQLiteStore(ctx, cfg.SQLitePath)
	case config.DriverPostgres:
		s, err = NewPostgresStore(ctx, cfg.PostgresDSN, append(opts, WithPostgresDriver(cfg.PostgresDriver))...)
	case config.DriverS3:
		s, err = NewS3Store(ctx, S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
			Prefix:    cfg.S3Prefix,
		}, opts...)
	case config.DriverMemory:
		s = NewMemoryStore()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.StorageDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StorageDriver, err)
	}
	return Instrument(cfg.StorageDriver, s), nil
}
