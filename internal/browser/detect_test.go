package browser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeDetector(goos string, env map[string]string, files ...string) *Detector {
	existing := make(map[string]bool, len(files))
	for _, f := range files {
		existing[f] = true
	}
	return &Detector{
		GOOS:     goos,
		Getenv:   func(k string) string { return env[k] },
		Exists:   func(p string) bool { return existing[p] },
		LookPath: func(string) (string, error) { return "", errors.New("not in PATH") },
	}
}

func TestDetect_EnvOverrideWins(t *testing.T) {
	d := fakeDetector("linux",
		map[string]string{EnvChromeBinary: "/opt/chrome/chrome"},
		"/opt/chrome/chrome", "/usr/bin/chromium",
	)
	path, err := d.Detect()
	require.NoError(t, err)
	assert.Equal(t, "/opt/chrome/chrome", path)
}

func TestDetect_BraveOverrideWhenChromeUnset(t *testing.T) {
	d := fakeDetector("linux",
		map[string]string{EnvBraveBinary: "/opt/brave/brave"},
		"/opt/brave/brave",
	)
	path, err := d.Detect()
	require.NoError(t, err)
	assert.Equal(t, "/opt/brave/brave", path)
}

func TestDetect_MissingChromeOverrideFallsToBrave(t *testing.T) {
	d := fakeDetector("linux",
		map[string]string{EnvChromeBinary: "/missing/chrome", EnvBraveBinary: "/opt/brave/brave"},
		"/opt/brave/brave", "/usr/bin/chromium",
	)
	path, err := d.Detect()
	require.NoError(t, err)
	assert.Equal(t, "/opt/brave/brave", path)
}

func TestDetect_MissingOverrideFallsToCandidates(t *testing.T) {
	d := fakeDetector("linux", map[string]string{EnvChromeBinary: "/nope"}, "/usr/bin/chromium")
	path, err := d.Detect()
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/chromium", path)
}

func TestDetect_CandidateOrder(t *testing.T) {
	d := fakeDetector("linux", nil, "/usr/bin/chromium", "/usr/bin/google-chrome-stable")
	path, err := d.Detect()
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/google-chrome-stable", path)
}

func TestDetect_FallsBackToPath(t *testing.T) {
	d := fakeDetector("linux", nil)
	d.LookPath = func(name string) (string, error) {
		if name == "chromium-browser" {
			return "/home/me/bin/chromium-browser", nil
		}
		return "", errors.New("not found")
	}
	path, err := d.Detect()
	require.NoError(t, err)
	assert.Equal(t, "/home/me/bin/chromium-browser", path)
}

func TestDetect_NothingFound(t *testing.T) {
	_, err := fakeDetector("darwin", nil).Detect()
	assert.Error(t, err)
}

func TestIsDevToolsURL(t *testing.T) {
	assert.True(t, IsDevToolsURL("ws://127.0.0.1:9222/devtools/browser/abc"))
	assert.True(t, IsDevToolsURL("http://localhost:9222"))
	assert.False(t, IsDevToolsURL("/usr/local/bin/chromedriver"))
	assert.False(t, IsDevToolsURL(""))
}
