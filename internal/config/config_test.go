package config_test

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/okian/redflag/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Store, convey.ShouldEqual, "memory")
			convey.So(cfg.EloK, convey.ShouldEqual, 32.0)
			convey.So(cfg.EloBase, convey.ShouldEqual, 1000.0)
			convey.So(cfg.SessionCapacity, convey.ShouldEqual, 500)
			convey.So(cfg.SeenMaxChars, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a config selecting postgres", t, func() {
		cfg := config.New(context.Background())
		cfg.Store = "postgres"

		convey.Convey("Then a database url is required", func() {
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)

			cfg.DatabaseURL = "postgres://localhost/redflag"
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a stats range cap", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it defaults to a year and may not undercut the default window", func() {
			convey.So(cfg.StatsMaxDays, convey.ShouldEqual, 366)

			cfg.StatsMaxDays = cfg.StatsDays - 1
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)

			cfg.StatsMaxDays = 3661
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}
