// Loads server configuration from a YAML or TOML file.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the server configuration.
type Config struct {
	// Location is the directory holding the tables.
	Location string `yaml:"location" toml:"location"`

	// PermitEditing enables create_table, insert_record and update_record.
	PermitEditing bool `yaml:"permit_editing" toml:"permit_editing"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log_level" toml:"log_level"`

	// SearchLimit caps the records returned by search_table.
	SearchLimit int `yaml:"search_limit" toml:"search_limit"`

	// DefaultReadLimit is the read_table_data limit when none is given.
	DefaultReadLimit int `yaml:"default_read_limit" toml:"default_read_limit"`

	// RateLimitPerSec throttles tools/call. 0 means unlimited.
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec" toml:"rate_limit_per_sec"`

	// History records table changes in a git repository in Location.
	History History `yaml:"history" toml:"history"`
}

// History configures git history of table files.
type History struct {
	Enabled     bool   `yaml:"enabled" toml:"enabled"`
	AuthorName  string `yaml:"author_name" toml:"author_name"`
	AuthorEmail string `yaml:"author_email" toml:"author_email"`
}

// Default returns the default configuration. Location is left empty.
func Default() Config {
	return Config{
		LogLevel:         "info",
		SearchLimit:      1000,
		DefaultReadLimit: 100,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Location == "" {
		return errors.New("location is required")
	}
	if c.SearchLimit < 0 {
		return errors.New("search_limit must be non-negative")
	}
	if c.DefaultReadLimit < 0 {
		return errors.New("default_read_limit must be non-negative")
	}
	if c.RateLimitPerSec < 0 {
		return errors.New("rate_limit_per_sec must be non-negative")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Load reads path over the defaults. Files ending in .toml are TOML,
// everything else is YAML. Keys absent from the file keep their default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is given by the operator
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return cfg, nil
	}
	d := yaml.NewDecoder(bytes.NewReader(data))
	d.KnownFields(true)
	if err := d.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log_level %q", s)
	}
}
