package config_test

import (
	"context"
	"os"
	"testing"

	"github.com/okian/duet/internal/config"
	"github.com/smartystreets/goconvey/convey"
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
				convey.So(cfg.RecomputeEvery, convey.ShouldEqual, 5)
				convey.So(cfg.AggregateCooldownSec, convey.ShouldEqual, 600)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("DUET_ADDR", ":8080")
			_ = os.Setenv("DUET_RECOMPUTE_EVERY", "10")
			_ = os.Setenv("DUET_AGGREGATE_COOLDOWN_SEC", "60")
			_ = os.Setenv("DUET_PROVIDER_BASE_URL", "https://catalog.example")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.RecomputeEvery, convey.ShouldEqual, 10)
				convey.So(cfg.AggregateCooldownSec, convey.ShouldEqual, 60)
				convey.So(cfg.ProviderBaseURL, convey.ShouldEqual, "https://catalog.example")
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			yamlContent := `
addr: ":9090"
recompute_every: 7
leaderboard_cache_ttl_sec: 30
dedupe_auto_merge_threshold: 95
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("DUET_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should merge file values over defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.RecomputeEvery, convey.ShouldEqual, 7)
				convey.So(cfg.LeaderboardCacheTTLSec, convey.ShouldEqual, 30)
				convey.So(cfg.DedupeAutoMergeThreshold, convey.ShouldEqual, 95)
				convey.So(cfg.AggregateCooldownSec, convey.ShouldEqual, 600) // default
			})
		})

		convey.Convey("When env vars and a file are both present", func() {
			yamlContent := `
addr: ":9090"
recompute_every: 7
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("DUET_CONFIG", tmpFile)
			_ = os.Setenv("DUET_ADDR", ":8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables win", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.RecomputeEvery, convey.ShouldEqual, 7)
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("DUET_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When validation fails", func() {
			convey.Convey("On an empty addr", func() {
				_ = os.Setenv("DUET_ADDR", "")
				defer clearConfigEnvVars()

				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})

			convey.Convey("On a non-positive recompute cadence", func() {
				_ = os.Setenv("DUET_RECOMPUTE_EVERY", "0")
				defer clearConfigEnvVars()

				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})

			convey.Convey("On inverted dedupe thresholds", func() {
				_ = os.Setenv("DUET_DEDUPE_SUGGESTION_THRESHOLD", "95")
				defer clearConfigEnvVars()

				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"DUET_CONFIG",
		"DUET_ADDR",
		"DUET_RECOMPUTE_EVERY",
		"DUET_AGGREGATE_COOLDOWN_SEC",
		"DUET_PROVIDER_BASE_URL",
		"DUET_DEDUPE_SUGGESTION_THRESHOLD",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "duet-config-*.yaml")
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
