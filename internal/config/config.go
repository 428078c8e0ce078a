// Package config loads exporter settings from defaults, an optional YAML
// file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvDriverPath  = "CHROMEDRIVER_PATH"
	EnvDownloadDir = "SIDRA_DOWNLOAD_DIR"
	EnvHeadless    = "SIDRA_HEADLESS"
)

// Config holds all exporter configuration.
type Config struct {
	Browser  BrowserConfig  `yaml:"browser"`
	Portal   PortalConfig   `yaml:"portal"`
	Filters  FiltersConfig  `yaml:"filters"`
	Download DownloadConfig `yaml:"download"`

	// KeepOpen asks for confirmation on the terminal before the browser closes.
	KeepOpen bool `yaml:"keep_open"`
}

// BrowserConfig controls the browser session.
type BrowserConfig struct {
	// ExecPath overrides executable detection.
	ExecPath string `yaml:"exec_path"`

	// DriverPath is a DevTools endpoint (ws:// or http://) to attach to.
	// A plain file path is accepted and ignored.
	DriverPath string `yaml:"driver_path"`

	Headless  bool   `yaml:"headless"`
	UserAgent string `yaml:"user_agent"`

	// Timeout bounds the whole session.
	Timeout time.Duration `yaml:"timeout"`

	// ElementTimeout bounds each wait for a required element.
	ElementTimeout time.Duration `yaml:"element_timeout"`
}

// PortalConfig describes where and what to search.
type PortalConfig struct {
	HomeURL string `yaml:"home_url"`
	TableID string `yaml:"table_id"`
	Query   string `yaml:"query"`

	// TypeDelay separates keystrokes in the search field.
	TypeDelay time.Duration `yaml:"type_delay"`

	// SettleDelay is the pause after page transitions.
	SettleDelay time.Duration `yaml:"settle_delay"`
}

// Toggle is one named selection control and its required state.
type Toggle struct {
	Label    string `yaml:"label"`
	Selected bool   `yaml:"selected"`
}

// FiltersConfig drives the filter applier.
type FiltersConfig struct {
	Toggles []Toggle `yaml:"toggles"`

	// MaxAttempts is the per-toggle retry budget on the virtualized list.
	MaxAttempts int `yaml:"max_attempts"`

	// ScrollStep is how far the list container scrolls between attempts.
	ScrollStep int `yaml:"scroll_step"`

	RetryDelay time.Duration `yaml:"retry_delay"`
	ClickDelay time.Duration `yaml:"click_delay"`

	Territory TerritoryConfig `yaml:"territory"`
}

// TerritoryConfig drives the territorial unit tree selection.
type TerritoryConfig struct {
	RootID     string `yaml:"root_id"`
	RootLabel  string `yaml:"root_label"`
	FinerID    string `yaml:"finer_id"`
	FinerLabel string `yaml:"finer_label"`

	// Wait bounds the wait for the finer option after expanding the tree.
	Wait time.Duration `yaml:"wait"`

	// AllowFallback selects the root node when the finer option is missing.
	AllowFallback bool `yaml:"allow_fallback"`
}

// DownloadConfig drives the exporter.
type DownloadConfig struct {
	Dir          string        `yaml:"dir"`
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Format       string        `yaml:"format"`
	Prefix       string        `yaml:"prefix"`
	Suffix       string        `yaml:"suffix"`
}

// Default returns the configuration that reproduces the table 1209 export.
func Default() *Config {
	return &Config{
		Browser: BrowserConfig{
			Timeout:        15 * time.Minute,
			ElementTimeout: 30 * time.Second,
		},
		Portal: PortalConfig{
			HomeURL:     "https://sidra.ibge.gov.br/",
			TableID:     "1209",
			Query:       "1209",
			TypeDelay:   150 * time.Millisecond,
			SettleDelay: 2 * time.Second,
		},
		Filters: FiltersConfig{
			Toggles: []Toggle{
				{Label: "Total", Selected: false},
				{Label: "60 a 69 anos", Selected: true},
				{Label: "70 anos ou mais", Selected: true},
			},
			MaxAttempts: 10,
			ScrollStep:  100,
			RetryDelay:  500 * time.Millisecond,
			ClickDelay:  700 * time.Millisecond,
			Territory: TerritoryConfig{
				RootID:        "arvore-435e-1",
				RootLabel:     "Unidade da Federação",
				FinerID:       "arvore-715e-1",
				FinerLabel:    "Em Grande Região",
				Wait:          30 * time.Second,
				AllowFallback: true,
			},
		},
		Download: DownloadConfig{
			Dir:          "dados",
			Timeout:      60 * time.Second,
			PollInterval: time.Second,
			Format:       "br.csv",
			Prefix:       "populacao_60mais",
			Suffix:       "_1209_",
		},
		KeepOpen: true,
	}
}

// Load builds the configuration. path may be empty; getenv may be nil, in
// which case os.Getenv is used.
func Load(path string, getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := getenv(EnvDriverPath); v != "" {
		cfg.Browser.DriverPath = v
	}
	if v := getenv(EnvDownloadDir); v != "" {
		cfg.Download.Dir = v
	}
	if v := getenv(EnvHeadless); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvHeadless, err)
		}
		cfg.Browser.Headless = b
	}

	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Portal.HomeURL) == "" {
		errs = append(errs, errors.New("portal.home_url is empty"))
	}
	if strings.TrimSpace(c.Portal.Query) == "" {
		errs = append(errs, errors.New("portal.query is empty"))
	}
	if strings.TrimSpace(c.Portal.TableID) == "" {
		errs = append(errs, errors.New("portal.table_id is empty"))
	}
	if c.Portal.TableID != "" && strings.Contains(c.Portal.HomeURL, c.Portal.TableID) {
		errs = append(errs, fmt.Errorf("portal.home_url must not reference table %s", c.Portal.TableID))
	}
	if c.Browser.Timeout <= 0 || c.Browser.ElementTimeout <= 0 {
		errs = append(errs, errors.New("browser timeouts must be positive"))
	}
	if c.Filters.MaxAttempts <= 0 {
		errs = append(errs, errors.New("filters.max_attempts must be positive"))
	}
	for i, t := range c.Filters.Toggles {
		if strings.TrimSpace(t.Label) == "" {
			errs = append(errs, fmt.Errorf("filters.toggles[%d] has an empty label", i))
		}
	}
	if c.Download.Timeout <= 0 || c.Download.PollInterval <= 0 {
		errs = append(errs, errors.New("download timeout and poll_interval must be positive"))
	}
	if c.Download.Dir == "" {
		errs = append(errs, errors.New("download.dir is empty"))
	}
	if c.Download.Prefix == "" {
		errs = append(errs, errors.New("download.prefix is empty"))
	}
	return errors.Join(errs...)
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home directory: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}
