// Package config provides configuration loading from YAML files.
package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	API      APIConfig      `yaml:"api"`
	Playback PlaybackConfig `yaml:"playback"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig represents the local control API configuration.
type ServerConfig struct {
	Addr string `yaml:"addr" default:"127.0.0.1:8844"`
}

// APIConfig represents the remote folder source API configuration.
type APIConfig struct {
	BaseURL           string  `yaml:"base_url" validate:"required,url"`
	TimeoutSec        int     `yaml:"timeout_sec" default:"15" validate:"gte=1,lte=120"`
	RequestsPerSecond float64 `yaml:"requests_per_second" default:"5" validate:"gt=0"`
	Burst             int     `yaml:"burst" default:"10" validate:"gte=1"`
}

// PlaybackConfig represents playback tuning.
type PlaybackConfig struct {
	PreloadThreshold float64 `yaml:"preload_threshold" default:"0.5" validate:"gt=0,lte=1"`
	TickMs           int     `yaml:"tick_ms" default:"250" validate:"gte=50,lte=2000"`
	HistoryLimit     int     `yaml:"history_limit" default:"100" validate:"gte=1,lte=10000"`
}

// StorageConfig represents local persistence configuration.
type StorageConfig struct {
	Path            string `yaml:"path" default:"nagara.db"`
	FlushIntervalMs int    `yaml:"flush_interval_ms" default:"5000" validate:"gte=500,lte=600000"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Output string `yaml:"output" default:"stdout"`
	Level  string `yaml:"level" default:"info"`
	File   string `yaml:"file"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for the
// remote endpoint.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("NAGARA_API_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("NAGARA_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("NAGARA_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}
