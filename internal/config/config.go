// Package config loads the adapter's yaml configuration file, mirroring
// the shape and defaulting conventions the teacher binary uses for its own
// config.yaml.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level adapter configuration.
type Config struct {
	MQTT struct {
		Host            string `yaml:"host"`
		Port            int    `yaml:"port"`
		Username        string `yaml:"username"`
		Password        string `yaml:"password"`
		BaseTopic       string `yaml:"base_topic"`
		ClientID        string `yaml:"client_id"`
		RetryIntervalMs int    `yaml:"retry_interval_ms"`
	} `yaml:"mqtt"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
	Introspect struct {
		Listen         string   `yaml:"listen"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"introspect"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func (c *Config) validate() error {
	if c.MQTT.Host == "" {
		return fmt.Errorf("mqtt.host is required")
	}
	if c.MQTT.Port <= 0 {
		return fmt.Errorf("mqtt.port must be positive, got %d", c.MQTT.Port)
	}
	if c.MQTT.RetryIntervalMs < 1000 {
		return fmt.Errorf("mqtt.retry_interval_ms must be >= 1000, got %d", c.MQTT.RetryIntervalMs)
	}
	return nil
}

// Load reads and validates the config file at path, applying defaults for
// every field the reference implementation treats as optional.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.MQTT.Port == 0 {
		cfg.MQTT.Port = 1883
	}
	if cfg.MQTT.BaseTopic == "" {
		cfg.MQTT.BaseTopic = "zigbee2mqtt"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "z2m-adapter"
	}
	if cfg.MQTT.RetryIntervalMs == 0 {
		cfg.MQTT.RetryIntervalMs = 10000
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "z2m-adapter.db"
	}
	if cfg.Introspect.Listen == "" {
		cfg.Introspect.Listen = "127.0.0.1:8090"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// LogLevel returns Log.Level in lower case. It does not check the value;
// an empty or unrecognised name is passed through as is.
func (c *Config) LogLevel() string {
	return strings.ToLower(c.Log.Level)
}
