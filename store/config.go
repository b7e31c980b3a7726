package store

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds configuration for the Store.
type Config struct {
	// Type is the backend type used as the scheme of the connection URI (e.g., "mongodb").
	Type string `yaml:"type"`

	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`

	// ConnURI overrides the URI synthesized from the fields above.
	ConnURI string `yaml:"connURI"`

	// MaxDepth bounds nested resource hydration.
	// Default: 16
	// Max: 64
	MaxDepth int `yaml:"maxDepth"`

	// Logger receives store and model logs. Default: slog.Default()
	Logger *slog.Logger `yaml:"-"`

	// Now stamps soft deletes. Default: time.Now
	Now func() time.Time `yaml:"-"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxDepth: 16,
		Logger:   slog.Default(),
		Now:      time.Now,
	}
}

// LoadConfig reads a YAML store configuration file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read store config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse store config: %w", err)
	}

	cfg.validate()
	return cfg, nil
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.MaxDepth < 1 {
		c.MaxDepth = 16
	}
	if c.MaxDepth > 64 {
		c.MaxDepth = 64
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}
