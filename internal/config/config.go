package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file is absent or a field is unset.
const (
	DefaultServerURL        = "http://localhost:8000"
	DefaultPresenceInterval = 30 * time.Second
	DefaultMessageInterval  = 3 * time.Second
	DefaultLogLevel         = "info"
)

// Config holds the dashboard client configuration
type Config struct {
	Server struct {
		URL string `yaml:"url"`
	} `yaml:"server"`
	Polling struct {
		PresenceInterval time.Duration `yaml:"presence_interval"`
		MessageInterval  time.Duration `yaml:"message_interval"`
	} `yaml:"polling"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// GetConfigDir returns the configuration directory, honoring the
// MDPS_DASH_CONFIG_DIR override used in tests.
func GetConfigDir() string {
	if dir := os.Getenv("MDPS_DASH_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".mdps-dashboard")
	}
	return filepath.Join(home, ".config", "mdps-dashboard")
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// Load reads the config file, applies defaults for unset fields and
// environment variable overrides on top.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.Server.URL = DefaultServerURL
	cfg.Polling.PresenceInterval = DefaultPresenceInterval
	cfg.Polling.MessageInterval = DefaultMessageInterval
	cfg.Logging.Level = DefaultLogLevel

	data, err := os.ReadFile(GetConfigPath())
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if v := os.Getenv("MDPS_DASH_SERVER_URL"); v != "" {
		cfg.Server.URL = v
	}
	if v := os.Getenv("MDPS_DASH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if cfg.Polling.PresenceInterval <= 0 {
		cfg.Polling.PresenceInterval = DefaultPresenceInterval
	}
	if cfg.Polling.MessageInterval <= 0 {
		cfg.Polling.MessageInterval = DefaultMessageInterval
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the config file, creating the config directory if needed
func (c *Config) Save() error {
	if err := os.MkdirAll(GetConfigDir(), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(GetConfigPath(), data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return errors.New("server URL cannot be empty")
	}
	u, err := url.Parse(c.Server.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid server URL: %s", c.Server.URL)
	}
	if c.Polling.PresenceInterval <= 0 {
		return errors.New("presence poll interval must be positive")
	}
	if c.Polling.MessageInterval <= 0 {
		return errors.New("message poll interval must be positive")
	}
	return nil
}
