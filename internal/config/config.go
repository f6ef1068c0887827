// Package config loads the arbiter server configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAddr          = "127.0.0.1:7431"
	DefaultDBPath        = "arbiter.db"
	DefaultSuggestionTTL = 30 * time.Second
	DefaultAuditCap      = 500
	DefaultSweepInterval = time.Minute
	DefaultFetchTimeout  = 2 * time.Second
)

// Signals configures the external collaborator endpoints the engine
// aggregates from. Empty base URLs disable the respective source.
type Signals struct {
	PriorityBaseURL string        `yaml:"priority_base_url"`
	HistoryBaseURL  string        `yaml:"history_base_url"`
	APIKey          string        `yaml:"api_key"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`
}

// Resolution tunes the engine's cache, audit trail and auto-resolution gate.
type Resolution struct {
	SuggestionTTL       time.Duration  `yaml:"suggestion_ttl"`
	AuditCap            int            `yaml:"audit_cap"`
	MinConfidence       *float64       `yaml:"min_confidence"`
	MaxWaitTime         *time.Duration `yaml:"max_wait_time"`
	DisabledForCritical *bool          `yaml:"disabled_for_critical"`
}

// Config is the full server configuration.
type Config struct {
	Addr          string        `yaml:"addr"`
	SocketPath    string        `yaml:"socket_path"`
	DBPath        string        `yaml:"db_path"`
	KeysFile      string        `yaml:"keys_file"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	Signals       Signals       `yaml:"signals"`
	Resolution    Resolution    `yaml:"resolution"`
}

// Default returns a configuration suitable for local development.
func Default() Config {
	cfg := Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML config file. A missing file yields the defaults; the
// ARBITER_CONFIG environment variable overrides an empty path.
func Load(path string) (Config, error) {
	if path == "" {
		path = strings.TrimSpace(os.Getenv("ARBITER_CONFIG"))
	}
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.Signals.FetchTimeout <= 0 {
		c.Signals.FetchTimeout = DefaultFetchTimeout
	}
	if c.Resolution.SuggestionTTL <= 0 {
		c.Resolution.SuggestionTTL = DefaultSuggestionTTL
	}
	if c.Resolution.AuditCap <= 0 {
		c.Resolution.AuditCap = DefaultAuditCap
	}
}

func (c *Config) validate() error {
	if c.Resolution.MinConfidence != nil {
		if v := *c.Resolution.MinConfidence; v < 0 || v > 100 {
			return fmt.Errorf("min_confidence %v outside [0,100]", v)
		}
	}
	if c.Resolution.MaxWaitTime != nil && *c.Resolution.MaxWaitTime < 0 {
		return fmt.Errorf("max_wait_time must not be negative")
	}
	return nil
}
