package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cantalupo555/sidra-exporter/internal/config"
)

func TestApplyFlags_OnlyChangedFlagsOverride(t *testing.T) {
	cmd := newRootCommand()
	require.NoError(t, cmd.Flags().Parse([]string{"--headless", "--timeout", "2m"}))

	cfg := config.Default()
	cfg.Download.Dir = "/from/env"
	cfg.Browser.ExecPath = "/opt/brave/brave"

	applyFlags(cmd, cfg, flags{headless: true, timeout: 2 * time.Minute})

	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 2*time.Minute, cfg.Browser.Timeout)
	assert.Equal(t, "/from/env", cfg.Download.Dir)
	assert.Equal(t, "/opt/brave/brave", cfg.Browser.ExecPath)
	assert.True(t, cfg.KeepOpen)
}

func TestApplyFlags_NoWait(t *testing.T) {
	cmd := newRootCommand()
	require.NoError(t, cmd.Flags().Parse([]string{"--no-wait", "--download", "out"}))

	cfg := config.Default()
	applyFlags(cmd, cfg, flags{noWait: true, downloadDir: "out"})

	assert.False(t, cfg.KeepOpen)
	assert.Equal(t, "out", cfg.Download.Dir)
}

func TestResolveDownloadDir_CreatesAbsolute(t *testing.T) {
	target := filepath.Join(t.TempDir(), "dados", "sub")

	dir, err := resolveDownloadDir(target)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestBrowserConfig_DevToolsURLSkipsDetection(t *testing.T) {
	cfg := config.Default()
	cfg.Browser.DriverPath = "ws://127.0.0.1:9222/devtools/browser/abc"

	bcfg, err := browserConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/abc", bcfg.DevToolsURL)
	assert.Empty(t, bcfg.ExecPath)
	assert.Contains(t, describeBrowser(bcfg), "ws://")
}

func TestBrowserConfig_DriverFileIgnored(t *testing.T) {
	cfg := config.Default()
	cfg.Browser.DriverPath = "/usr/bin/chromedriver"
	cfg.Browser.ExecPath = "/usr/bin/chromium"
	cfg.Browser.Headless = true

	bcfg, err := browserConfig(cfg)
	require.NoError(t, err)
	assert.Empty(t, bcfg.DevToolsURL)
	assert.Equal(t, "/usr/bin/chromium", bcfg.ExecPath)
	assert.Equal(t, "/usr/bin/chromium (headless)", describeBrowser(bcfg))
}

func TestToggles(t *testing.T) {
	got := toggles(config.Default().Filters.Toggles)
	require.Len(t, got, 3)
	assert.Equal(t, "Total", got[0].Label)
	assert.False(t, got[0].Selected)
	assert.True(t, got[2].Selected)
}
