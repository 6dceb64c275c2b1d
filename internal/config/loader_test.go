package config_test

import (
	"context"
	"os"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/tutorlens/tutorlens/internal/config"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.QueueCapacity, convey.ShouldEqual, 10_000)
				convey.So(cfg.WindowDays, convey.ShouldEqual, 30)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("TUTORLENS_ADDR", ":8080")
			_ = os.Setenv("TUTORLENS_WORKER_COUNT", "16")
			_ = os.Setenv("TUTORLENS_RATE_LIMIT", "10")
			_ = os.Setenv("TUTORLENS_WEBHOOK_SECRET", "shh")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)
				convey.So(cfg.RateLimit, convey.ShouldEqual, 10)
				convey.So(cfg.WebhookSecret, convey.ShouldEqual, "shh")
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
worker_count: 24
window_days: 14
rate_limit_fail_open: false
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("TUTORLENS_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file and keep defaults elsewhere", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 24)
				convey.So(cfg.WindowDays, convey.ShouldEqual, 14)
				convey.So(cfg.RateLimitFailOpen, convey.ShouldBeFalse)
				convey.So(cfg.QueueCapacity, convey.ShouldEqual, 10_000)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
worker_count: 24
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("TUTORLENS_CONFIG", tmpFile)
			_ = os.Setenv("TUTORLENS_ADDR", ":8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 24)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("TUTORLENS_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("TUTORLENS_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with a non-positive worker count", func() {
			_ = os.Setenv("TUTORLENS_WORKER_COUNT", "0")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "worker_count")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with zeroed scoring weights", func() {
			_ = os.Setenv("TUTORLENS_WEIGHT_ATTENDANCE", "0")
			_ = os.Setenv("TUTORLENS_WEIGHT_RATINGS", "0")
			_ = os.Setenv("TUTORLENS_WEIGHT_COMPLETION", "0")
			_ = os.Setenv("TUTORLENS_WEIGHT_RELIABILITY", "0")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "weights")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"TUTORLENS_CONFIG",
		"TUTORLENS_ADDR",
		"TUTORLENS_WORKER_COUNT",
		"TUTORLENS_RATE_LIMIT",
		"TUTORLENS_WEBHOOK_SECRET",
		"TUTORLENS_WEIGHT_ATTENDANCE",
		"TUTORLENS_WEIGHT_RATINGS",
		"TUTORLENS_WEIGHT_COMPLETION",
		"TUTORLENS_WEIGHT_RELIABILITY",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "tutorlens-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
