package browser

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/go-rod/stealth"
)

// DefaultUserAgent is presented instead of the automation user agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// webdriverShim hides the automation markers the portal may look at.
const webdriverShim = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
window.chrome = window.chrome || { runtime: {} };
`

// Config holds browser configuration options.
type Config struct {
	ExecPath     string
	DevToolsURL  string
	DownloadDir  string
	Headless     bool
	UserAgent    string
	WindowWidth  int
	WindowHeight int
	Timeout      time.Duration
}

// DefaultConfig returns default browser configuration.
func DefaultConfig() Config {
	return Config{
		UserAgent:    DefaultUserAgent,
		WindowWidth:  1920,
		WindowHeight: 1080,
		Timeout:      15 * time.Minute,
	}
}

// Session owns one browser tab. Close is safe to call more than once.
type Session struct {
	cancels   []context.CancelFunc
	page      *CDPPage
	closeOnce sync.Once
}

// New launches (or attaches to) a browser, configures downloads and injects
// the stealth bootstrap before any portal page loads.
func New(cfg Config) (*Session, error) {
	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if cfg.DevToolsURL != "" {
		log.Printf("Attaching to running browser at %s", cfg.DevToolsURL)
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.DevToolsURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg)...)
	}

	ctx, ctxCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(log.Printf))
	ctx, timeoutCancel := context.WithTimeout(ctx, cfg.Timeout)

	s := &Session{
		cancels: []context.CancelFunc{timeoutCancel, ctxCancel, allocCancel},
		page:    NewCDPPage(ctx),
	}

	// First Run starts the browser.
	if err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealth.JS + webdriverShim).Do(ctx)
		return err
	})); err != nil {
		s.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	if cfg.DownloadDir != "" {
		if err := ConfigureDownloads(ctx, cfg.DownloadDir); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("start-maximized", true),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	return opts
}

// Page returns the page actions bound to the session tab.
func (s *Session) Page() Page { return s.page }

// Close closes the tab and the browser process.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		for _, cancel := range s.cancels {
			if cancel != nil {
				cancel()
			}
		}
	})
}

// ConfigureDownloads sets up the download directory for the browser.
func ConfigureDownloads(ctx context.Context, downloadDir string) error {
	if err := chromedp.Run(ctx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(downloadDir).
			WithEventsEnabled(true),
	); err != nil {
		return fmt.Errorf("configure downloads: %w", err)
	}
	log.Printf("✓ Downloads will be saved to: %s", downloadDir)
	return nil
}

// IsDevToolsURL reports whether s points at a DevTools endpoint rather than
// a driver binary.
func IsDevToolsURL(s string) bool {
	for _, scheme := range []string{"ws://", "wss://", "http://", "https://"} {
		if strings.HasPrefix(s, scheme) {
			return true
		}
	}
	return false
}
