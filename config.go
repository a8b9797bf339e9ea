package fiberflow

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config carries the tunables of this package in a loadable, validatable
// form. Zero values are filled in by [LoadConfig]; hand-built configs can
// be checked with [Config.Validate].
type Config struct {
	// Prefetch is the upstream buffer capacity and demand unit of
	// transform pipelines.
	Prefetch int `mapstructure:"prefetch" validate:"gte=1"`

	// LogLevel enables pipeline logging to stderr at the given zerolog
	// level. The value "disabled" (the default) keeps pipelines silent.
	LogLevel string `mapstructure:"log_level" validate:"omitempty,oneof=trace debug info warn error disabled"`
}

// configKeys lists every key read by [LoadConfig].
var configKeys = []string{"prefetch", "log_level"}

// LoadConfig builds a [Config] from the environment. Variables are read
// under the FIBERFLOW_ prefix (FIBERFLOW_PREFETCH, FIBERFLOW_LOG_LEVEL),
// after loading a .env file from the working directory if one exists.
func LoadConfig() (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}

	v := viper.New()
	v.SetEnvPrefix("FIBERFLOW")
	v.AutomaticEnv()
	for _, key := range configKeys {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("fiberflow: binding %s: %w", key, err)
		}
	}
	v.SetDefault("prefetch", DefaultPrefetch)
	v.SetDefault("log_level", "disabled")

	cfg := Config{
		Prefetch: v.GetInt("prefetch"),
		LogLevel: v.GetString("log_level"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports whether c is usable.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("fiberflow: invalid config: %w", err)
	}
	return nil
}

// Options expands c into pipeline options.
func (c Config) Options() []Option {
	opts := []Option{WithPrefetch(c.Prefetch)}
	if c.LogLevel != "" && c.LogLevel != "disabled" {
		level, err := zerolog.ParseLevel(c.LogLevel)
		if err != nil {
			level = zerolog.InfoLevel
		}
		logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
		opts = append(opts, WithLogger(logger))
	}
	return opts
}
