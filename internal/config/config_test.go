// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.Backend.URL)
	assert.Equal(t, 5, cfg.Backend.TopK)
	assert.NotEmpty(t, cfg.Filter.DocTypes)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
debug = true

[backend]
url = "https://docs.example.com"
top_k = 8

[filter]
doc_types = ["manual"]
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://docs.example.com", cfg.Backend.URL)
	assert.Equal(t, 8, cfg.Backend.TopK)
	assert.Equal(t, []string{"manual"}, cfg.Filter.DocTypes)
	assert.True(t, cfg.Debug)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DOCLENS_BACKEND_URL", "http://10.0.0.2:9000")
	t.Setenv("DOCLENS_DEBUG", "true")
	t.Setenv("DOCLENS_TOP_K", "3")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.2:9000", cfg.Backend.URL)
	assert.Equal(t, 3, cfg.Backend.TopK)
	assert.True(t, cfg.Debug)
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad url", func(c *Config) { c.Backend.URL = "not a url" }},
		{"bad scheme", func(c *Config) { c.Backend.URL = "ftp://host" }},
		{"zero top_k", func(c *Config) { c.Backend.TopK = 0 }},
		{"watch without dir", func(c *Config) { c.Watch.Enabled = true; c.Watch.Dir = "" }},
		{"history without path", func(c *Config) { c.History.Enabled = true; c.History.Path = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := DefaultConfig()
	cfg.Backend.URL = "http://host:1234"
	cfg.Watch = WatchConfig{Enabled: true, Dir: "/drop"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Backend, loaded.Backend)
	assert.Equal(t, cfg.Watch, loaded.Watch)
}
