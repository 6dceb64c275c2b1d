package config_test

import (
	"runtime"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/tutorlens/tutorlens/internal/config"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.RateLimit, convey.ShouldEqual, 100)
			convey.So(cfg.RateLimitWindowSeconds, convey.ShouldEqual, 60)
			convey.So(cfg.RateLimitFailOpen, convey.ShouldBeTrue)
			convey.So(cfg.QueueCapacity, convey.ShouldEqual, 10_000)
			convey.So(cfg.QueueMaxAttempts, convey.ShouldEqual, 3)
			convey.So(cfg.QueueBaseDelayMS, convey.ShouldEqual, 2000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*2)
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
			convey.So(cfg.WindowDays, convey.ShouldEqual, 30)
			convey.So(cfg.LatenessThresholdMinutes, convey.ShouldEqual, 5)
			convey.So(cfg.EarlyEndThresholdMinutes, convey.ShouldEqual, 10)
			convey.So(cfg.WeightAttendance, convey.ShouldEqual, 0.25)
			convey.So(cfg.WeightRatings, convey.ShouldEqual, 0.25)
			convey.So(cfg.WeightCompletion, convey.ShouldEqual, 0.25)
			convey.So(cfg.WeightReliability, convey.ShouldEqual, 0.25)
		})
	})
}
