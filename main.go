package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cantalupo555/sidra-exporter/internal/browser"
	"github.com/cantalupo555/sidra-exporter/internal/config"
	"github.com/cantalupo555/sidra-exporter/internal/download"
	"github.com/cantalupo555/sidra-exporter/internal/navigation"
	"github.com/cantalupo555/sidra-exporter/internal/pipeline"
	"github.com/cantalupo555/sidra-exporter/internal/report"
	"github.com/cantalupo555/sidra-exporter/internal/selection"
)

// appVersion is set at build time via -ldflags="-X main.appVersion=x.x.x"
var appVersion = "dev"

type flags struct {
	configPath  string
	downloadDir string
	execPath    string
	headless    bool
	noWait      bool
	timeout     time.Duration
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "sidra-exporter",
		Short: "Export SIDRA table 1209 (population by age group) through the portal UI",
		Long: `sidra-exporter opens the IBGE SIDRA portal in a browser, finds table 1209
through the search box, selects the 60+ age groups and the territorial unit,
and downloads the table as CSV into the download directory.

Environment:
  CHROME_BINARY, BRAVE_BINARY   browser executable
  CHROMEDRIVER_PATH             DevTools endpoint of a running browser
  SIDRA_DOWNLOAD_DIR            download directory (default ./dados)
  SIDRA_HEADLESS                run without a window`,
		Version:       appVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, f)
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	cmd.Flags().StringVar(&f.downloadDir, "download", "", "Directory to save downloads (overrides SIDRA_DOWNLOAD_DIR)")
	cmd.Flags().StringVar(&f.execPath, "exec", "", "Browser executable (auto-detect if empty)")
	cmd.Flags().BoolVar(&f.headless, "headless", false, "Run the browser without a window")
	cmd.Flags().BoolVar(&f.noWait, "no-wait", false, "Close the browser without asking")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Overall session timeout")
	return cmd
}

func run(cmd *cobra.Command, f flags) error {
	cfg, err := config.Load(f.configPath, nil)
	if err != nil {
		log.Printf("Error: %v", err)
		return err
	}
	applyFlags(cmd, cfg, f)
	if err := cfg.Validate(); err != nil {
		log.Printf("Error: invalid configuration: %v", err)
		return err
	}

	downloadDir, err := resolveDownloadDir(cfg.Download.Dir)
	if err != nil {
		log.Printf("Error: %v", err)
		return err
	}
	cfg.Download.Dir = downloadDir

	bcfg, err := browserConfig(cfg)
	if err != nil {
		log.Printf("Error: %v", err)
		return err
	}

	log.Println("=== SIDRA Table Exporter ===")
	log.Printf("Browser: %s", describeBrowser(bcfg))
	log.Printf("Table: %s (search %q)", cfg.Portal.TableID, cfg.Portal.Query)
	log.Printf("Download: %s", downloadDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flow := &pipeline.Flow{
		Open: func(context.Context) (pipeline.Session, error) {
			return browser.New(bcfg)
		},
		Navigator: navigation.New(navigation.Options{
			HomeURL:        cfg.Portal.HomeURL,
			TableID:        cfg.Portal.TableID,
			Query:          cfg.Portal.Query,
			ElementTimeout: cfg.Browser.ElementTimeout,
			TypeDelay:      cfg.Portal.TypeDelay,
			SettleDelay:    cfg.Portal.SettleDelay,
		}),
		Applier: selection.New(selection.Options{
			MaxAttempts:    cfg.Filters.MaxAttempts,
			ScrollStep:     cfg.Filters.ScrollStep,
			RetryDelay:     cfg.Filters.RetryDelay,
			ClickDelay:     cfg.Filters.ClickDelay,
			SettleDelay:    cfg.Portal.SettleDelay,
			ElementTimeout: cfg.Browser.ElementTimeout,
			Territory: selection.TerritoryOptions{
				RootID:        cfg.Filters.Territory.RootID,
				RootLabel:     cfg.Filters.Territory.RootLabel,
				FinerID:       cfg.Filters.Territory.FinerID,
				FinerLabel:    cfg.Filters.Territory.FinerLabel,
				Wait:          cfg.Filters.Territory.Wait,
				AllowFallback: cfg.Filters.Territory.AllowFallback,
			},
		}),
		Exporter: download.New(download.Options{
			Dir:            downloadDir,
			Format:         cfg.Download.Format,
			Prefix:         cfg.Download.Prefix,
			Suffix:         cfg.Download.Suffix,
			Timeout:        cfg.Download.Timeout,
			PollInterval:   cfg.Download.PollInterval,
			ElementTimeout: cfg.Browser.ElementTimeout,
			SettleDelay:    cfg.Filters.ClickDelay,
		}),
		Toggles: toggles(cfg.Filters.Toggles),
		Stats:   report.New(),
	}
	if cfg.KeepOpen {
		flow.BeforeClose = func() {
			// Default signal handling leaves the prompt; ctx stays live for Describe.
			signal.Reset(os.Interrupt, syscall.SIGTERM)
			pipeline.WaitForEnter(cmd.InOrStdin(), cmd.OutOrStdout(), "\nPress Enter to close the browser...")
		}
	}

	path, err := flow.Run(ctx)
	flow.Stats.Print(cmd.OutOrStdout())
	if err != nil {
		log.Printf("❌ ERROR: %s", pipeline.Describe(ctx, err))
		log.Printf("%+v", err)
		return err
	}

	log.Println("==================================================")
	log.Printf("✓ COMPLETED! %s", path)
	log.Printf("Summary: %s", flow.Stats.Summary())
	log.Println("==================================================")
	return nil
}

// applyFlags lets explicit command-line flags win over file and environment.
func applyFlags(cmd *cobra.Command, cfg *config.Config, f flags) {
	if cmd.Flags().Changed("download") {
		cfg.Download.Dir = f.downloadDir
	}
	if cmd.Flags().Changed("exec") {
		cfg.Browser.ExecPath = f.execPath
	}
	if cmd.Flags().Changed("headless") {
		cfg.Browser.Headless = f.headless
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Browser.Timeout = f.timeout
	}
	if f.noWait {
		cfg.KeepOpen = false
	}
}

func resolveDownloadDir(dir string) (string, error) {
	dir, err := config.ExpandHome(dir)
	if err != nil {
		return "", err
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve download directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download directory: %w", err)
	}
	return dir, nil
}

func browserConfig(cfg *config.Config) (browser.Config, error) {
	bcfg := browser.DefaultConfig()
	bcfg.DownloadDir = cfg.Download.Dir
	bcfg.Headless = cfg.Browser.Headless
	bcfg.Timeout = cfg.Browser.Timeout
	if cfg.Browser.UserAgent != "" {
		bcfg.UserAgent = cfg.Browser.UserAgent
	}

	if drv := cfg.Browser.DriverPath; drv != "" {
		if browser.IsDevToolsURL(drv) {
			bcfg.DevToolsURL = drv
			return bcfg, nil
		}
		log.Printf("⚠️ %s=%s ignored: the DevTools protocol needs no driver binary", config.EnvDriverPath, drv)
	}

	if cfg.Browser.ExecPath != "" {
		bcfg.ExecPath = cfg.Browser.ExecPath
		return bcfg, nil
	}
	path, err := browser.NewDetector().Detect()
	if err != nil {
		return bcfg, err
	}
	log.Printf("✓ Auto-detected browser: %s", path)
	bcfg.ExecPath = path
	return bcfg, nil
}

func describeBrowser(c browser.Config) string {
	if c.DevToolsURL != "" {
		return c.DevToolsURL
	}
	mode := "windowed"
	if c.Headless {
		mode = "headless"
	}
	return fmt.Sprintf("%s (%s)", c.ExecPath, mode)
}

func toggles(in []config.Toggle) []selection.Toggle {
	out := make([]selection.Toggle, 0, len(in))
	for _, t := range in {
		out = append(out, selection.Toggle{Label: t.Label, Selected: t.Selected})
	}
	return out
}
