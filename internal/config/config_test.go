package config_test

import (
	"runtime"
	"testing"

	"github.com/clanhall/bingo/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.EventQueueSize, convey.ShouldEqual, 100_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*4)
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 500_000)
			convey.So(cfg.DBPath, convey.ShouldEqual, "bingo.db")
			convey.So(cfg.EffectSweepSeconds, convey.ShouldEqual, 60)
			convey.So(cfg.ProgressRetryLimit, convey.ShouldEqual, 5)
		})
	})
}
