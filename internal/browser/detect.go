package browser

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// Environment variables checked before probing well-known install paths.
const (
	EnvChromeBinary = "CHROME_BINARY"
	EnvBraveBinary  = "BRAVE_BINARY"
)

// Detector finds a Chromium-family executable. Its hooks default to the
// real environment and filesystem.
type Detector struct {
	GOOS     string
	Getenv   func(string) string
	Exists   func(string) bool
	LookPath func(string) (string, error)
}

// NewDetector returns a Detector for the running system.
func NewDetector() *Detector {
	return &Detector{
		GOOS:   runtime.GOOS,
		Getenv: os.Getenv,
		Exists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
		LookPath: exec.LookPath,
	}
}

// Detect returns the first usable executable. Overrides from the
// environment win over install paths, install paths over PATH lookups.
// An override naming a missing file is skipped.
func (d *Detector) Detect() (string, error) {
	for _, env := range []string{EnvChromeBinary, EnvBraveBinary} {
		if path := d.Getenv(env); path != "" {
			if d.Exists(path) {
				return path, nil
			}
			log.Printf("⚠️ %s points to a missing file, ignoring: %s", env, path)
		}
	}

	for _, path := range d.candidates() {
		if path != "" && d.Exists(path) {
			return path, nil
		}
	}

	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "brave-browser", "chrome"} {
		if path, err := d.LookPath(name); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no Chrome/Chromium/Brave executable found on %s; set %s", d.GOOS, EnvChromeBinary)
}

func (d *Detector) candidates() []string {
	switch d.GOOS {
	case "windows":
		programFiles := d.Getenv("ProgramFiles")
		programFilesX86 := d.Getenv("ProgramFiles(x86)")
		localAppData := d.Getenv("LOCALAPPDATA")
		return []string{
			filepath.Join(programFiles, "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(programFilesX86, "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(programFiles, "BraveSoftware", "Brave-Browser", "Application", "brave.exe"),
			filepath.Join(localAppData, "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(localAppData, "BraveSoftware", "Brave-Browser", "Application", "brave.exe"),
		}
	case "darwin":
		home := d.Getenv("HOME")
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Brave Browser.app/Contents/MacOS/Brave Browser",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			filepath.Join(home, "Applications", "Google Chrome.app", "Contents", "MacOS", "Google Chrome"),
		}
	default:
		return []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/usr/bin/brave-browser",
			"/usr/bin/brave",
			"/snap/bin/chromium",
			"/usr/local/bin/chrome",
		}
	}
}
