package config_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/scorekeep/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.StorageDriver, convey.ShouldEqual, config.DriverFile)
			convey.So(cfg.LeaderboardRetention, convey.ShouldEqual, 50)
			convey.So(cfg.LeaderboardDisplayLimit, convey.ShouldEqual, 5)
			convey.So(cfg.DefaultCollection, convey.ShouldEqual, "general")
			convey.So(cfg.Validate(context.Background()), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		ctx := context.Background()
		cfg := config.New()

		convey.Convey("When the display limit exceeds retention", func() {
			cfg.LeaderboardDisplayLimit = cfg.LeaderboardRetention + 1
			err := cfg.Validate(ctx)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When retention is zero", func() {
			cfg.LeaderboardRetention = 0
			convey.So(errors.Is(cfg.Validate(ctx), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the storage driver is unknown", func() {
			cfg.StorageDriver = "tape"
			err := cfg.Validate(ctx)
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "tape")
		})

		convey.Convey("When s3 is selected without a bucket", func() {
			cfg.StorageDriver = config.DriverS3
			convey.So(errors.Is(cfg.Validate(ctx), config.ErrInvalidConfig), convey.ShouldBeTrue)

			cfg.S3Bucket = "grades"
			convey.So(cfg.Validate(ctx), convey.ShouldBeNil)
		})

		convey.Convey("When postgres is selected", func() {
			cfg.StorageDriver = config.DriverPostgres
			convey.So(cfg.PostgresDriver, convey.ShouldEqual, "pgx")
			convey.So(cfg.Validate(ctx), convey.ShouldBeNil)

			cfg.PostgresDriver = "pq"
			convey.So(cfg.Validate(ctx), convey.ShouldBeNil)

			cfg.PostgresDriver = "odbc"
			convey.So(errors.Is(cfg.Validate(ctx), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the memory driver is selected", func() {
			cfg.StorageDriver = config.DriverMemory
			convey.So(cfg.Validate(ctx), convey.ShouldBeNil)
		})
	})
}
