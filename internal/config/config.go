// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and persists doclens configuration.
//
// Resolution order: built-in defaults, then ~/.doclens/config.toml, then
// environment variable overrides (DOCLENS_*).
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/doclens-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete doclens configuration.
type Config struct {
	Backend BackendConfig `toml:"backend"`
	Filter  FilterConfig  `toml:"filter"`
	Watch   WatchConfig   `toml:"watch"`
	History HistoryConfig `toml:"history"`
	Debug   bool          `toml:"debug"`
}

// BackendConfig locates the document-intelligence backend.
type BackendConfig struct {
	// URL is the backend base URL.
	URL string `toml:"url"`

	// TopK is the retrieval depth sent with each turn.
	TopK int `toml:"top_k"`
}

// FilterConfig declares the filterable document categories.
type FilterConfig struct {
	// DocTypes is the full category list offered by the filter toggle.
	DocTypes []string `toml:"doc_types"`
}

// WatchConfig controls the drop-folder auto-uploader.
type WatchConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// HistoryConfig controls the local transcript store.
type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// =============================================================================
// DEFAULTS & PATHS
// =============================================================================

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:  "http://localhost:8000",
			TopK: 5,
		},
		Filter: FilterConfig{
			DocTypes: []string{"manual", "spec_sheet", "report", "datasheet"},
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(Dir(), "history.db"),
		},
	}
}

// Dir returns the doclens configuration directory (~/.doclens).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".doclens"
	}
	return filepath.Join(home, ".doclens")
}

// Path returns the configuration file path.
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// LogPath returns the debug log file path.
func LogPath() string {
	return filepath.Join(Dir(), "doclens.log")
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration file at path (or Path() when empty),
// falling back to defaults when the file is absent, then applies
// environment overrides and validates.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}

	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv applies DOCLENS_* environment overrides.
func (c *Config) applyEnv() {
	if v := os.Getenv("DOCLENS_BACKEND_URL"); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv("DOCLENS_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Backend.TopK = n
		}
	}
	if v := os.Getenv("DOCLENS_DEBUG"); v != "" {
		c.Debug = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("DOCLENS_WATCH_DIR"); v != "" {
		c.Watch.Enabled = true
		c.Watch.Dir = v
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.url %q is not a valid http(s) URL", c.Backend.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend.url scheme %q is not supported", u.Scheme)
	}
	if c.Backend.TopK <= 0 {
		return fmt.Errorf("backend.top_k must be positive, got %d", c.Backend.TopK)
	}
	if c.Watch.Enabled && c.Watch.Dir == "" {
		return fmt.Errorf("watch.enabled is set but watch.dir is empty")
	}
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history.enabled is set but history.path is empty")
	}
	return nil
}

// =============================================================================
// SAVING
// =============================================================================

// Save writes the configuration to path (or Path() when empty)
// atomically.
func (c *Config) Save(path string) error {
	if path == "" {
		path = Path()
	}

	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(buf.String()), 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
