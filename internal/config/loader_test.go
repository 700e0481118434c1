package config_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/missionctl/orbit/internal/config"
	"github.com/missionctl/orbit/internal/domain"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load the community defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Tier, convey.ShouldEqual, domain.TierCommunity)
				convey.So(cfg.Server.Port, convey.ShouldEqual, 8080)
				convey.So(cfg.Repository.Driver, convey.ShouldEqual, "sqlite")
				convey.So(cfg.Prediction.Threshold, convey.ShouldEqual, 80.0)
				convey.So(cfg.Prediction.PenaltyRate, convey.ShouldEqual, 0.4)
				convey.So(cfg.Prediction.ClampInputs, convey.ShouldBeTrue)
				convey.So(cfg.Preset.EasyFraction, convey.ShouldEqual, 0.25)
				convey.So(cfg.Preset.NormalFraction, convey.ShouldEqual, 0.65)
				convey.So(cfg.Mission.TimeUnit, convey.ShouldEqual, time.Second)
				convey.So(cfg.Mission.DefaultUser, convey.ShouldEqual, "test_user")
				convey.So(cfg.Mission.DefaultFunds, convey.ShouldEqual, 1000)
			})
		})

		convey.Convey("When ORBIT_TIER selects pro", func() {
			_ = os.Setenv("ORBIT_TIER", "pro")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then the pro backends are selected", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Tier, convey.ShouldEqual, domain.TierPro)
				convey.So(cfg.Repository.Driver, convey.ShouldEqual, "postgres")
				convey.So(cfg.Cache.Type, convey.ShouldEqual, "redis")
				convey.So(cfg.EventBus.Type, convey.ShouldEqual, "nats")
			})
		})

		convey.Convey("When loading nested keys from environment variables", func() {
			_ = os.Setenv("ORBIT_SERVER__PORT", "9090")
			_ = os.Setenv("ORBIT_PREDICTION__THRESHOLD", "75.5")
			_ = os.Setenv("ORBIT_PREDICTION__CLAMP_INPUTS", "false")
			_ = os.Setenv("ORBIT_MISSION__TIME_UNIT", "250ms")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Server.Port, convey.ShouldEqual, 9090)
				convey.So(cfg.Prediction.Threshold, convey.ShouldEqual, 75.5)
				convey.So(cfg.Prediction.ClampInputs, convey.ShouldBeFalse)
				convey.So(cfg.Mission.TimeUnit, convey.ShouldEqual, 250*time.Millisecond)
				convey.So(cfg.Prediction.PenaltyRate, convey.ShouldEqual, 0.4)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
server:
  port: 7070
prediction:
  penalty_rate: 0.5
preset:
  easy_fraction: 0.1
mission:
  default_user: pilot
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("ORBIT_CONFIG", tmpFile)
			_ = os.Setenv("ORBIT_SERVER__PORT", "6060")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then env overrides the file which overrides defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Server.Port, convey.ShouldEqual, 6060)
				convey.So(cfg.Prediction.PenaltyRate, convey.ShouldEqual, 0.5)
				convey.So(cfg.Preset.EasyFraction, convey.ShouldEqual, 0.1)
				convey.So(cfg.Preset.NormalFraction, convey.ShouldEqual, 0.65)
				convey.So(cfg.Mission.DefaultUser, convey.ShouldEqual, "pilot")
			})
		})

		convey.Convey("When ORBIT_DEBUG is true", func() {
			_ = os.Setenv("ORBIT_DEBUG", "true")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then the log level is forced to debug", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Logging.Level, convey.ShouldEqual, "debug")
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("ORBIT_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("ORBIT_CONFIG", "/non/existent/orbit.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When a value fails validation", func() {
			_ = os.Setenv("ORBIT_REPOSITORY__DRIVER", "mysql")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an invalid config error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "mysql")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When a numeric env var is not a number", func() {
			_ = os.Setenv("ORBIT_SERVER__PORT", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestValidate(t *testing.T) {
	convey.Convey("Given the default config", t, func() {
		cfg := domain.DefaultConfig()

		convey.Convey("It validates", func() {
			convey.So(config.Validate(cfg), convey.ShouldBeNil)
		})

		convey.Convey("A zero time unit is rejected", func() {
			cfg.Mission.TimeUnit = 0
			convey.So(errors.Is(config.Validate(cfg), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("A negative penalty rate is rejected", func() {
			cfg.Prediction.PenaltyRate = -1
			convey.So(errors.Is(config.Validate(cfg), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("A sample ratio above one is rejected", func() {
			cfg.Tracing.SampleRatio = 1.5
			convey.So(errors.Is(config.Validate(cfg), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"ORBIT_CONFIG",
		"ORBIT_TIER",
		"ORBIT_DEBUG",
		"ORBIT_SERVER__PORT",
		"ORBIT_REPOSITORY__DRIVER",
		"ORBIT_PREDICTION__THRESHOLD",
		"ORBIT_PREDICTION__CLAMP_INPUTS",
		"ORBIT_MISSION__TIME_UNIT",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "orbit-config-*.yaml")
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
