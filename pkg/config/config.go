// Package config loads pvcgraph settings from a config file, PVC_* environment
// variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/dd0wney/pvcgraph/pkg/islands"
	"github.com/dd0wney/pvcgraph/pkg/logging"
	"github.com/dd0wney/pvcgraph/pkg/metrics"
	"github.com/dd0wney/pvcgraph/pkg/validation"
)

var levelNames = []string{"DEBUG", "INFO", "WARN", "WARNING", "ERROR"}

// EnvPrefix is prepended to every environment override, e.g. PVC_TOLERANCE
const EnvPrefix = "PVC"

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Path    string `mapstructure:"path"`
}

// Config holds runtime configuration for a pvcgraph session.
type Config struct {
	Tolerance       float64       `mapstructure:"tolerance"`
	LogLevel        string        `mapstructure:"log_level"`
	CheckInvariants bool          `mapstructure:"check_invariants"`
	Metrics         MetricsConfig `mapstructure:"metrics"`
}

// SetDefaults installs built-in defaults on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("tolerance", islands.DefaultTolerance)
	v.SetDefault("log_level", "info")
	v.SetDefault("check_invariants", false)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", "127.0.0.1:9464")
	v.SetDefault("metrics.path", "/metrics")
}

// New returns a viper instance with defaults and environment binding in place.
// If file is empty, .pvcgraph.yaml is looked up in the working directory; a
// missing default file is not an error.
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(".pvcgraph")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

// Load decodes and validates the configuration held by v
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration
func (c Config) Validate() error {
	return validation.NewConfigValidator("Config").
		PositiveFloat("Tolerance", c.Tolerance).
		OneOf("LogLevel", strings.ToUpper(c.LogLevel), levelNames).
		When(c.Metrics.Enabled, func(cv *validation.ConfigValidator) {
			cv.Required("Metrics.Path", c.Metrics.Path).
				Custom("Metrics.Addr", func() error {
					_, _, err := net.SplitHostPort(c.Metrics.Addr)
					return err
				})
		}).
		Validate()
}

// Level returns the parsed log level
func (c Config) Level() logging.Level {
	return logging.ParseLevel(c.LogLevel)
}

// GraphConfig builds the islands configuration for this session
func (c Config) GraphConfig(logger logging.Logger, reg *metrics.Registry, events islands.EventSink) islands.Config {
	return islands.Config{
		Tolerance:       c.Tolerance,
		Logger:          logger,
		Metrics:         reg,
		Events:          events,
		CheckInvariants: c.CheckInvariants,
	}
}

// Watch reloads the config file whenever it changes and hands each valid
// result to fn. Invalid edits are logged and skipped.
func Watch(v *viper.Viper, logger logging.Logger, fn func(Config)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := Load(v)
		if err != nil {
			logger.Warn("ignoring config change",
				logging.String("file", e.Name),
				logging.Error(err))
			return
		}
		logger.Info("config reloaded", logging.String("file", e.Name))
		fn(cfg)
	})
	v.WatchConfig()
}
