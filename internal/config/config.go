// Package config loads application configuration from file, environment and
// defaults, and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/exportwise/advisor-cli/internal/profile"
	"github.com/exportwise/advisor-cli/internal/similarity"
	"github.com/exportwise/advisor-cli/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig       `yaml:"store" mapstructure:"store"`
	Similarity similarity.Config `yaml:"similarity" mapstructure:"similarity"`
	Learning   LearningConfig    `yaml:"learning" mapstructure:"learning"`
	Profile    ProfileConfig     `yaml:"profile" mapstructure:"profile"`
	Server     ServerConfig      `yaml:"server" mapstructure:"server"`
	Log        LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string            `yaml:"driver" mapstructure:"driver"` // postgres | sqlite | memory
	DatabaseURL string            `yaml:"database_url" mapstructure:"database_url"`
	Pool        *store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// LearningConfig tunes the learning engine's maintenance behavior.
type LearningConfig struct {
	ConsolidateIntervalMins int     `yaml:"consolidate_interval_mins" mapstructure:"consolidate_interval_mins"`
	MonitorWindowDays       int     `yaml:"monitor_window_days" mapstructure:"monitor_window_days"`
	MonitorRatePerMin       float64 `yaml:"monitor_rate_per_min" mapstructure:"monitor_rate_per_min"`
}

// ProfileConfig tunes the profile change tracker.
type ProfileConfig struct {
	Weights             profile.FieldWeights `yaml:"weights" mapstructure:"weights"`
	SignificanceTrigger float64              `yaml:"significance_trigger" mapstructure:"significance_trigger"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures the global zap logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json | console
}

// Load reads configuration from config.yaml, ADVISOR_* environment variables
// and defaults, in ascending precedence of env over file over defaults.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ADVISOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "advisor.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("learning.consolidate_interval_mins", 60)
	v.SetDefault("learning.monitor_window_days", 365)
	v.SetDefault("learning.monitor_rate_per_min", 6)
	v.SetDefault("profile.significance_trigger", 0.3)
	v.SetDefault("similarity.near_match_threshold", 0.8)
	v.SetDefault("similarity.near_match_credit", 0.7)
	v.SetDefault("similarity.default_range_width", 100)
	v.SetDefault("similarity.weights.products", 0.30)
	v.SetDefault("similarity.weights.markets", 0.25)
	v.SetDefault("similarity.weights.certifications", 0.15)
	v.SetDefault("similarity.weights.size", 0.15)
	v.SetDefault("similarity.weights.industry", 0.15)
	v.SetDefault("similarity.thresholds.business_profile", 0.7)
	v.SetDefault("similarity.thresholds.export_pattern", 0.6)
	v.SetDefault("similarity.thresholds.regulatory_pattern", 0.5)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; anything else is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Similarity.Validate(); err != nil {
		return nil, eris.Wrap(err, "config: similarity")
	}
	switch cfg.Store.Driver {
	case "postgres", "sqlite", "memory":
	default:
		return nil, eris.Errorf("config: unknown store driver %q", cfg.Store.Driver)
	}

	return &cfg, nil
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
