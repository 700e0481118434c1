// Package config layers Orbit configuration from defaults, an optional YAML
// file and ORBIT_ environment variables.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/missionctl/orbit/internal/domain"
)

// Environment variables read directly by the loader.
const (
	EnvPrefix = "ORBIT_"
	EnvConfig = "ORBIT_CONFIG"
	EnvTier   = "ORBIT_TIER"
	EnvDebug  = "ORBIT_DEBUG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. DefaultConfig, or ProConfig when ORBIT_TIER=pro
//  2. file (YAML) if ORBIT_CONFIG is set
//  3. env (prefix ORBIT_, "__" separates nested keys)
//
// ORBIT_PREDICTION__THRESHOLD=75 maps to prediction.threshold.
func Load(_ context.Context) (*domain.Config, error) {
	base := domain.DefaultConfig()
	if domain.Tier(os.Getenv(EnvTier)) == domain.TierPro {
		base = domain.ProConfig()
	}

	k := koanf.New(".")

	if path := os.Getenv(EnvConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", envKey)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if os.Getenv(EnvDebug) == "true" {
		cfg.Logging.Level = "debug"
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps ORBIT_MISSION__TIME_UNIT to mission.time_unit.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate rejects configurations the service cannot start with.
func Validate(cfg *domain.Config) error {
	switch {
	case cfg.Server.Port <= 0 || cfg.Server.Port > 65535:
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, cfg.Server.Port)
	case cfg.Repository.Driver != "sqlite" && cfg.Repository.Driver != "postgres":
		return fmt.Errorf("%w: unsupported repository driver %q", ErrInvalidConfig, cfg.Repository.Driver)
	case cfg.Cache.Type != "memory" && cfg.Cache.Type != "redis":
		return fmt.Errorf("%w: unsupported cache type %q", ErrInvalidConfig, cfg.Cache.Type)
	case cfg.EventBus.Type != "channel" && cfg.EventBus.Type != "nats":
		return fmt.Errorf("%w: unsupported event bus type %q", ErrInvalidConfig, cfg.EventBus.Type)
	case cfg.Prediction.PenaltyRate < 0:
		return fmt.Errorf("%w: prediction.penalty_rate must be >= 0", ErrInvalidConfig)
	case cfg.Prediction.CacheTTL < 0:
		return fmt.Errorf("%w: prediction.cache_ttl must be >= 0", ErrInvalidConfig)
	case cfg.Mission.TimeUnit <= 0:
		return fmt.Errorf("%w: mission.time_unit must be positive", ErrInvalidConfig)
	case cfg.Mission.DefaultFunds < 0:
		return fmt.Errorf("%w: mission.default_funds must be >= 0", ErrInvalidConfig)
	case cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1:
		return fmt.Errorf("%w: tracing.sample_ratio must be in [0,1]", ErrInvalidConfig)
	}
	return nil
}
