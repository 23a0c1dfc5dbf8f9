// Package config loads application configuration from file and environment
// and bootstraps the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Billing   BillingConfig   `yaml:"billing" mapstructure:"billing"`
	Nominatim NominatimConfig `yaml:"nominatim" mapstructure:"nominatim"`
	Google    GoogleConfig    `yaml:"google" mapstructure:"google"`
	Export    ExportConfig    `yaml:"export" mapstructure:"export"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// BillingConfig holds backend API credentials and tuning.
type BillingConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Token       string `yaml:"token" mapstructure:"token"`
	PageSize    int    `yaml:"page_size" mapstructure:"page_size"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Timeout returns the per-request timeout as a duration.
func (c BillingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// NominatimConfig configures the primary (free) geocoding provider.
type NominatimConfig struct {
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	CountryCodes  string `yaml:"country_codes" mapstructure:"country_codes"`
	MinIntervalMS int    `yaml:"min_interval_ms" mapstructure:"min_interval_ms"`
	UserAgent     string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// MinInterval returns the pacing interval as a duration.
func (c NominatimConfig) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalMS) * time.Millisecond
}

// Timeout returns the per-request timeout as a duration.
func (c NominatimConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// GoogleConfig configures the secondary (paid) geocoding provider. An empty
// key suppresses the provider for the whole run.
type GoogleConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Region      string `yaml:"region" mapstructure:"region"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Timeout returns the per-request timeout as a duration.
func (c GoogleConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// ExportConfig configures the CSV output.
type ExportConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from config.yaml and GEOSYNC_* environment
// variables.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GEOSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Credential keys default to empty so viper knows them and
	// the GEOSYNC_* environment overrides are picked up by Unmarshal.
	v.SetDefault("billing.base_url", "")
	v.SetDefault("billing.token", "")
	v.SetDefault("google.key", "")
	v.SetDefault("billing.page_size", 100)
	v.SetDefault("billing.timeout_secs", 15)
	v.SetDefault("nominatim.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("nominatim.country_codes", "nz")
	v.SetDefault("nominatim.min_interval_ms", 1000)
	v.SetDefault("nominatim.user_agent", "geosync/1.0")
	v.SetDefault("nominatim.timeout_secs", 15)
	v.SetDefault("google.region", "nz")
	v.SetDefault("google.timeout_secs", 15)
	v.SetDefault("export.path", "services.csv")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a run cannot start without.
func (c *Config) Validate() error {
	if c.Billing.BaseURL == "" {
		return eris.New("config: billing.base_url is required")
	}
	if c.Billing.Token == "" {
		return eris.New("config: billing.token is required")
	}
	return nil
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
