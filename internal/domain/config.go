package domain

import "time"

// Config holds the complete Orbit configuration.
type Config struct {
	// Server settings
	Server ServerConfig `koanf:"server"`

	// Tier determines which backing services are used
	Tier Tier `koanf:"tier"`

	// Component configurations
	Repository RepositoryConfig `koanf:"repository"`
	Cache      CacheConfig      `koanf:"cache"`
	EventBus   EventBusConfig   `koanf:"eventbus"`

	// Engine settings
	Model      ModelConfig      `koanf:"model"`
	Ranges     RangesConfig     `koanf:"ranges"`
	Prediction PredictionConfig `koanf:"prediction"`
	Preset     PresetConfig     `koanf:"preset"`
	Mission    MissionConfig    `koanf:"mission"`

	// Observability
	Logging LoggingConfig `koanf:"logging"`
	Tracing TracingConfig `koanf:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `koanf:"host"`
	Port         int    `koanf:"port"`
	ReadTimeout  int    `koanf:"read_timeout"`  // seconds
	WriteTimeout int    `koanf:"write_timeout"` // seconds
}

// ModelConfig locates the predictive model.
type ModelConfig struct {
	// Path is a CEL expression file scoring a feature row.
	Path string `koanf:"path"`
}

// RangesConfig locates the feature-range summary table.
type RangesConfig struct {
	// Path is a CSV file with columns feature,min,max.
	Path string `koanf:"path"`
}

// PredictionConfig holds the success prediction policy.
type PredictionConfig struct {
	// Threshold is the final score at or above which a prediction is a success.
	Threshold float64 `koanf:"threshold"`

	// PenaltyRate is subtracted from the raw score per tonne of payload.
	PenaltyRate float64 `koanf:"penalty_rate"`

	// ClampInputs clamps numeric inputs to their feature range before inference.
	ClampInputs bool `koanf:"clamp_inputs"`

	// CacheTTL is how long a prediction stays cached. Zero disables caching.
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

// PresetConfig holds the difficulty band fractions.
type PresetConfig struct {
	EasyFraction   float64 `koanf:"easy_fraction"`
	NormalFraction float64 `koanf:"normal_fraction"`
}

// MissionConfig holds lifecycle settings.
type MissionConfig struct {
	// TimeUnit is the wall-clock length of one mission duration unit.
	TimeUnit time.Duration `koanf:"time_unit"`

	// DefaultUser is created at startup with DefaultFunds if missing.
	DefaultUser  string `koanf:"default_user"`
	DefaultFunds int64  `koanf:"default_funds"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`

	// Endpoint is the OTLP/HTTP collector URL. Empty disables export.
	Endpoint string `koanf:"endpoint"`

	// SampleRatio in (0,1) samples that fraction of root spans. Anything
	// else samples every span.
	SampleRatio float64 `koanf:"sample_ratio"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs on SQLite, the in-memory cache and channels.
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL, Redis and NATS.
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./orbit.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Model: ModelConfig{
			Path: "./models/success.cel",
		},
		Ranges: RangesConfig{
			Path: "./models/feature_ranges.csv",
		},
		Prediction: PredictionConfig{
			Threshold:   80.0,
			PenaltyRate: 0.4,
			ClampInputs: true,
			CacheTTL:    10 * time.Minute,
		},
		Preset: PresetConfig{
			EasyFraction:   0.25,
			NormalFraction: 0.65,
		},
		Mission: MissionConfig{
			TimeUnit:     time.Second,
			DefaultUser:  "test_user",
			DefaultFunds: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "orbit",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "orbit",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       time.Minute,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
