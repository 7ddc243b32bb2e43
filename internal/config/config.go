// Package config holds runtime configuration for mneme.
//
// Configuration is resolved once at process startup: defaults first,
// then an optional YAML overlay from the data directory. The logger is
// built here too, so every component receives an explicit
// zerolog.Logger instead of touching a process-wide diagnostic channel.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ConfigFile is the optional overlay file name inside DataDir.
const ConfigFile = "config.yaml"

// Config holds all tunables for the knowledge keeper.
type Config struct {
	// DataDir is where the SQLite database and config overlay live.
	DataDir string `yaml:"data_dir"`

	// KnowledgeDir is the root of the document store (sessions,
	// decisions, patterns, rules, links, index files).
	KnowledgeDir string `yaml:"knowledge_dir"`

	// GraceDays is the default retention window for uncommitted
	// sessions finalized with the "grace" policy.
	GraceDays int `yaml:"grace_days"`

	// RecentMonths bounds the "recent" index aggregate.
	RecentMonths int `yaml:"recent_months"`

	// MaxSearchResults caps the result count for a single search call.
	MaxSearchResults int `yaml:"max_search_results"`

	// SearchTimeout bounds corpus enumeration during search.
	SearchTimeout time.Duration `yaml:"search_timeout"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	root := filepath.Join(home, ".mneme")
	return Config{
		DataDir:          root,
		KnowledgeDir:     filepath.Join(root, "knowledge"),
		GraceDays:        7,
		RecentMonths:     3,
		MaxSearchResults: 50,
		SearchTimeout:    2 * time.Second,
		LogLevel:         "info",
	}
}

// Load returns the default configuration with the YAML overlay from
// dir applied, if one exists. A missing overlay is not an error; a
// malformed one is. Unknown keys in the overlay are ignored.
func Load(dir string) (Config, error) {
	cfg := DefaultConfig()
	if dir != "" {
		cfg.DataDir = dir
		cfg.KnowledgeDir = filepath.Join(dir, "knowledge")
	}

	data, err := os.ReadFile(filepath.Join(cfg.DataDir, ConfigFile))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read overlay: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse overlay: %w", err)
	}
	return cfg, nil
}

// NewLogger builds the process logger at the configured level, writing
// to w. Production uses stderr, since stdout carries the MCP stdio
// transport.
func NewLogger(cfg Config, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
