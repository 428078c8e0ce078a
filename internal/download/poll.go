package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Candidate is a file in the download directory that may be the export.
type Candidate struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// FindNewest returns the most recently modified non-empty file in dir
// matching pattern. Names for which skip returns true are ignored. ok is
// false when no candidate qualifies.
func FindNewest(dir, pattern string, skip func(name string) bool) (Candidate, bool, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return Candidate{}, false, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}

	var best Candidate
	found := false
	for _, path := range matches {
		name := filepath.Base(path)
		if skip != nil && skip(name) {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
			// Vanished mid-scan, a directory, or still being written.
			continue
		}
		if !found || info.ModTime().After(best.ModTime) {
			best = Candidate{Path: path, Size: info.Size(), ModTime: info.ModTime()}
			found = true
		}
	}
	return best, found, nil
}

// Poller waits for a file to land in Dir.
type Poller struct {
	Dir      string
	Pattern  string
	Interval time.Duration
	Timeout  time.Duration
	Skip     func(name string) bool
}

// Wait checks Dir every Interval until a candidate appears or Timeout
// elapses. The directory is scanned once more at the deadline before
// ErrDownloadTimeout is returned.
func (p *Poller) Wait(ctx context.Context) (Candidate, error) {
	deadline := time.NewTimer(p.Timeout)
	defer deadline.Stop()
	tick := time.NewTicker(p.Interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return Candidate{}, ctx.Err()
		case <-deadline.C:
			// A tick due at the same instant may have lost the race.
			if c, ok, err := FindNewest(p.Dir, p.Pattern, p.Skip); err == nil && ok {
				return c, nil
			}
			return Candidate{}, fmt.Errorf("%w: no non-empty %s in %s after %v", ErrDownloadTimeout, p.Pattern, p.Dir, p.Timeout)
		case <-tick.C:
			c, ok, err := FindNewest(p.Dir, p.Pattern, p.Skip)
			if err != nil {
				return Candidate{}, err
			}
			if ok {
				return c, nil
			}
		}
	}
}

// Snapshot returns the base names in dir matching pattern.
func Snapshot(dir, pattern string) map[string]bool {
	matches, _ := filepath.Glob(filepath.Join(dir, pattern))
	names := make(map[string]bool, len(matches))
	for _, path := range matches {
		names[filepath.Base(path)] = true
	}
	return names
}

// HasPrefix returns a skip function matching names that start with prefix.
func HasPrefix(prefix string) func(string) bool {
	return func(name string) bool { return strings.HasPrefix(name, prefix) }
}
