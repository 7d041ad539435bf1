// Package config provides configuration for the streamflow service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	// Playlist
	Sources []string `yaml:"sources"`
	Name    string   `yaml:"name"`

	// Server
	BindAddr string `yaml:"bind"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	// Loading
	RefreshInterval time.Duration `yaml:"refresh"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	Workers         int           `yaml:"workers"`
	MaxUploadSize   int64         `yaml:"max_upload_size"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:            "Featured Channels",
		BindAddr:        "0.0.0.0",
		Port:            8080,
		LogLevel:        "info",
		RefreshInterval: 30 * time.Minute,
		FetchTimeout:    2 * time.Minute,
		Workers:         4,
		MaxUploadSize:   50 * 1024 * 1024,
	}
}

// LoadFile reads a YAML config file over c. Keys missing from the file keep
// their current values.
func LoadFile(path string, c *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	for i, source := range c.PlaylistSources() {
		if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
			continue
		}

		if _, err := url.Parse(source); err != nil {
			return fmt.Errorf("invalid source URL at position %d: %w", i+1, err)
		}
	}

	if c.Name == "" {
		return errors.New("playlist name must not be empty")
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.Workers < 1 {
		return errors.New("workers must be at least 1")
	}

	if c.RefreshInterval < 0 {
		return errors.New("refresh interval must not be negative")
	}

	if c.CacheTTL < 0 {
		return errors.New("cache TTL must not be negative")
	}

	if c.MaxUploadSize < 1 {
		return errors.New("max upload size must be at least 1 byte")
	}

	return nil
}

// ListenAddr returns the full listen address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.BindAddr, c.Port)
}

// PlaylistSources returns the configured sources with blank entries removed.
// Entries are taken verbatim so URLs may contain commas.
func (c *Config) PlaylistSources() []string {
	result := make([]string, 0, len(c.Sources))

	for _, source := range c.Sources {
		source = strings.TrimSpace(source)
		if source != "" {
			result = append(result, source)
		}
	}

	return result
}
