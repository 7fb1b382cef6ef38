// Package config provides application configuration management.
//
// Process settings load from environment variables via envconfig; the
// admission policy (tiers, global ceiling, IP rules) loads from an
// optional JSON file, falling back to built-in defaults.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all process configuration.
type Config struct {
	Host        string `envconfig:"GATEKEEP_HOST" default:"0.0.0.0"`
	Port        int    `envconfig:"GATEKEEP_PORT" default:"8080"`
	ServiceName string `envconfig:"GATEKEEP_SERVICE" default:"gatekeep"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"` // json or console

	// PolicyPath points at the JSON admission policy; empty means the
	// built-in defaults.
	PolicyPath string `envconfig:"GATEKEEP_POLICY_FILE" default:""`

	// DevicesPath is the TOTP device registry persistence file.
	DevicesPath string `envconfig:"GATEKEEP_DEVICES_FILE" default:"data/devices.json"`

	// RequestLogDir enables JSONL request-log files when non-empty.
	RequestLogDir string `envconfig:"GATEKEEP_REQUEST_LOG_DIR" default:""`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("config: log format %q (want json or console)", c.LogFormat)
	}
	if c.DevicesPath == "" {
		return fmt.Errorf("config: devices file path is required")
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
