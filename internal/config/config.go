// Package config loads the application configuration from file and
// environment and owns the global logger setup.
package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ebita-intel/metrics-cli/internal/metric"
)

// Config holds the full application configuration.
type Config struct {
	Log      LogConfig               `yaml:"log" mapstructure:"log"`
	Server   ServerConfig            `yaml:"server" mapstructure:"server"`
	Cache    CacheConfig             `yaml:"cache" mapstructure:"cache"`
	Fetch    FetchConfig             `yaml:"fetch" mapstructure:"fetch"`
	Breaker  BreakerConfig           `yaml:"breaker" mapstructure:"breaker"`
	Sources  map[string]SourceConfig `yaml:"sources" mapstructure:"sources"`
	Adapters []AdapterConfig         `yaml:"adapters" mapstructure:"adapters"`
	// ProfilesPath points at a YAML industry profile table; empty uses the
	// built-in profiles.
	ProfilesPath string `yaml:"profiles_path" mapstructure:"profiles_path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port" validate:"min=1,max=65535"`
}

// CacheConfig selects and tunes the cache backend.
type CacheConfig struct {
	// Backend is one of memory, sqlite, postgres, redis.
	Backend            string `yaml:"backend" mapstructure:"backend" validate:"oneof=memory sqlite postgres redis"`
	SQLitePath         string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	PostgresURL        string `yaml:"postgres_url" mapstructure:"postgres_url"`
	RedisAddr          string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword      string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB            int    `yaml:"redis_db" mapstructure:"redis_db"`
	LiveTTLMinutes     int    `yaml:"live_ttl_minutes" mapstructure:"live_ttl_minutes" validate:"min=1"`
	FundamentalTTLMins int    `yaml:"fundamental_ttl_minutes" mapstructure:"fundamental_ttl_minutes" validate:"min=1"`
	StructuralTTLMins  int    `yaml:"structural_ttl_minutes" mapstructure:"structural_ttl_minutes" validate:"min=1"`
}

// FetchConfig tunes the per-request fan-out.
type FetchConfig struct {
	TimeoutSecs     int    `yaml:"timeout_secs" mapstructure:"timeout_secs" validate:"min=1,max=120"`
	RetryAttempts   int    `yaml:"retry_attempts" mapstructure:"retry_attempts" validate:"min=1,max=5"`
	OutlierStrategy string `yaml:"outlier_strategy" mapstructure:"outlier_strategy" validate:"oneof=zscore iqr"`
}

// BreakerConfig tunes the per-source circuit breakers.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold" validate:"min=1"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs" validate:"min=1"`
}

// SourceConfig overrides one provider's authority and quota constants.
type SourceConfig struct {
	Weight        int      `yaml:"weight" mapstructure:"weight" validate:"min=1"`
	Reliability   int      `yaml:"reliability" mapstructure:"reliability" validate:"min=0,max=100"`
	HighAuthority bool     `yaml:"high_authority" mapstructure:"high_authority"`
	PerMinute     int      `yaml:"per_minute" mapstructure:"per_minute" validate:"min=0"`
	PerDay        int      `yaml:"per_day" mapstructure:"per_day" validate:"min=0"`
	Regions       []string `yaml:"regions" mapstructure:"regions"`
}

// AdapterConfig declares one REST provider: where to fetch and which
// JSONPath each metric lives at.
type AdapterConfig struct {
	Source            string            `yaml:"source" mapstructure:"source" validate:"required"`
	URLTemplate       string            `yaml:"url_template" mapstructure:"url_template" validate:"required,contains={id}"`
	Headers           map[string]string `yaml:"headers" mapstructure:"headers"`
	Fields            map[string]string `yaml:"fields" mapstructure:"fields" validate:"required,min=1"`
	TimeoutSecs       int               `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSecond float64           `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Regions           []string          `yaml:"regions" mapstructure:"regions"`
}

// Load reads configuration from config.yaml and METRICS_-prefixed
// environment variables, then validates it.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("METRICS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.sqlite_path", "metrics-cache.db")
	v.SetDefault("cache.live_ttl_minutes", 5)
	v.SetDefault("cache.fundamental_ttl_minutes", 60)
	v.SetDefault("cache.structural_ttl_minutes", 1440)
	v.SetDefault("fetch.timeout_secs", 12)
	v.SetDefault("fetch.retry_attempts", 2)
	v.SetDefault("fetch.outlier_strategy", "zscore")
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.reset_timeout_secs", 30)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the loaded configuration against its struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return eris.Wrap(err, "config: validate")
	}
	return nil
}

// SourceSpecs merges configured source overrides over the built-in
// provider table.
func (c *Config) SourceSpecs() map[metric.Source]metric.SourceSpec {
	specs := metric.DefaultSourceSpecs()
	for name, sc := range c.Sources {
		specs[metric.Source(name)] = metric.SourceSpec{
			Weight:        sc.Weight,
			Reliability:   sc.Reliability,
			HighAuthority: sc.HighAuthority,
			PerMinute:     sc.PerMinute,
			PerDay:        sc.PerDay,
		}
	}
	return specs
}

// TTLDurations converts the configured minute counts to durations.
func (c *Config) TTLDurations() (live, fundamental, structural time.Duration) {
	return time.Duration(c.Cache.LiveTTLMinutes) * time.Minute,
		time.Duration(c.Cache.FundamentalTTLMins) * time.Minute,
		time.Duration(c.Cache.StructuralTTLMins) * time.Minute
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
