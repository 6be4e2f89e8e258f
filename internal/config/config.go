// Package config loads the facefx configuration from YAML with FACEFX_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-facefx/pkg/pipeline"
	"github.com/teslashibe/go-facefx/pkg/web"
)

// Config is the complete facefx configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`

	// AutoOpen acquires the camera at startup instead of waiting for the
	// first client.
	AutoOpen bool `yaml:"auto_open"`

	Pipeline pipeline.Config `yaml:"pipeline"`
	Web      web.Config      `yaml:"web"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		AutoOpen: true,
		Pipeline: pipeline.DefaultConfig(),
		Web:      web.DefaultConfig(),
	}
}

// Load reads path on top of the defaults, applies the environment and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Pipeline.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("pipeline: %w", err))
	}
	if err := c.Web.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("web: %w", err))
	}
	return errors.Join(errs...)
}

// Marshal renders the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
