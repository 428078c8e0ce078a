package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "1209", cfg.Portal.Query)
	assert.Len(t, cfg.Filters.Toggles, 3)
	assert.Equal(t, Toggle{Label: "Total", Selected: false}, cfg.Filters.Toggles[0])
	assert.Equal(t, 10, cfg.Filters.MaxAttempts)
	assert.Equal(t, 60*time.Second, cfg.Download.Timeout)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sidra.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
browser:
  headless: true
  element_timeout: 10s
filters:
  toggles:
    - label: "80 anos ou mais"
      selected: true
  territory:
    allow_fallback: false
download:
  timeout: 2m
`), 0o644))

	cfg, err := Load(path, envMap(nil))
	require.NoError(t, err)

	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 10*time.Second, cfg.Browser.ElementTimeout)
	assert.Equal(t, 15*time.Minute, cfg.Browser.Timeout, "unset keys keep defaults")
	assert.Equal(t, []Toggle{{Label: "80 anos ou mais", Selected: true}}, cfg.Filters.Toggles)
	assert.False(t, cfg.Filters.Territory.AllowFallback)
	assert.Equal(t, "Em Grande Região", cfg.Filters.Territory.FinerLabel)
	assert.Equal(t, 2*time.Minute, cfg.Download.Timeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sidra.yaml")
	require.NoError(t, os.WriteFile(path, []byte("download:\n  dir: from-file\n"), 0o644))

	cfg, err := Load(path, envMap(map[string]string{
		EnvDownloadDir: "/tmp/sidra",
		EnvDriverPath:  "ws://127.0.0.1:9222/devtools/browser/x",
		EnvHeadless:    "true",
	}))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/sidra", cfg.Download.Dir)
	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/x", cfg.Browser.DriverPath)
	assert.True(t, cfg.Browser.Headless)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), envMap(nil))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("download: [\n"), 0o644))
	_, err = Load(bad, envMap(nil))
	assert.Error(t, err)

	_, err = Load("", envMap(map[string]string{EnvHeadless: "sometimes"}))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty query", func(c *Config) { c.Portal.Query = " " }},
		{"home references table", func(c *Config) { c.Portal.HomeURL = "https://sidra.ibge.gov.br/tabela/1209" }},
		{"zero element timeout", func(c *Config) { c.Browser.ElementTimeout = 0 }},
		{"no attempts", func(c *Config) { c.Filters.MaxAttempts = 0 }},
		{"blank toggle", func(c *Config) { c.Filters.Toggles = append(c.Filters.Toggles, Toggle{}) }},
		{"zero poll", func(c *Config) { c.Download.PollInterval = 0 }},
		{"no prefix", func(c *Config) { c.Download.Prefix = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandHome("~/Downloads/sidra")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "Downloads", "sidra"), got)

	got, err = ExpandHome("/abs/path")
	require.NoError(t, err)
	assert.Equal(t, "/abs/path", got)
}
