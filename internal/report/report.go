// Package report provides final execution report functionality.
package report

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// ErrorEntry represents a single error that occurred during execution.
type ErrorEntry struct {
	Timestamp time.Time
	Stage     string
	Message   string
	Fatal     bool
}

// ToggleEntry records the outcome of one filter toggle.
type ToggleEntry struct {
	Label   string
	Want    bool
	Changed bool
	Failed  bool
}

// Stats holds everything collected during one export run.
type Stats struct {
	StartTime time.Time
	EndTime   time.Time

	Toggles           []ToggleEntry
	Territory         string
	TerritoryFallback bool

	OutputPath string
	OutputSize int64
	Rows       int

	Errors []ErrorEntry
}

// New creates a new Stats instance with StartTime set to now.
func New() *Stats {
	return &Stats{
		StartTime: time.Now(),
		Errors:    make([]ErrorEntry, 0),
	}
}

// AddError records a recoverable problem.
func (s *Stats) AddError(stage, message string) {
	s.Errors = append(s.Errors, ErrorEntry{Timestamp: time.Now(), Stage: stage, Message: message})
}

// AddFatal records the error that stopped the run.
func (s *Stats) AddFatal(stage string, err error) {
	s.Errors = append(s.Errors, ErrorEntry{Timestamp: time.Now(), Stage: stage, Message: err.Error(), Fatal: true})
}

// AddToggle records a toggle outcome.
func (s *Stats) AddToggle(label string, want, changed, failed bool) {
	s.Toggles = append(s.Toggles, ToggleEntry{Label: label, Want: want, Changed: changed, Failed: failed})
}

// SetOutput records the renamed export.
func (s *Stats) SetOutput(path string, size int64, rows int) {
	s.OutputPath = path
	s.OutputSize = size
	s.Rows = rows
}

// Succeeded reports whether an output file was produced without a fatal error.
func (s *Stats) Succeeded() bool {
	if s.OutputPath == "" {
		return false
	}
	for _, e := range s.Errors {
		if e.Fatal {
			return false
		}
	}
	return true
}

// Finish marks the end time of the execution.
func (s *Stats) Finish() {
	if s.EndTime.IsZero() {
		s.EndTime = time.Now()
	}
}

// Duration returns the total execution duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// formatBytes formats bytes into human-readable format.
func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	sec := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, sec)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, sec)
	}
	return fmt.Sprintf("%ds", sec)
}

func toggleOutcome(t ToggleEntry) string {
	switch {
	case t.Failed:
		return text.FgRed.Sprint("not found")
	case t.Changed:
		return text.FgGreen.Sprint("clicked")
	default:
		return "unchanged"
	}
}

func wantWord(selected bool) string {
	if selected {
		return "on"
	}
	return "off"
}

// Print renders the final report to w.
func (s *Stats) Print(w io.Writer) {
	s.Finish()

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("📊 FINAL REPORT")
	t.AppendHeader(table.Row{"Item", "Value", "Result"})

	t.AppendRow(table.Row{"Duration", formatDuration(s.Duration()), ""})
	t.AppendSeparator()

	for _, tg := range s.Toggles {
		t.AppendRow(table.Row{tg.Label, wantWord(tg.Want), toggleOutcome(tg)})
	}
	if s.Territory != "" {
		result := "primary"
		if s.TerritoryFallback {
			result = text.FgYellow.Sprint("fallback")
		}
		t.AppendRow(table.Row{"Territorial unit", s.Territory, result})
	}
	t.AppendSeparator()

	if s.OutputPath != "" {
		t.AppendRow(table.Row{"Output", filepath.Base(s.OutputPath), formatBytes(s.OutputSize)})
		t.AppendRow(table.Row{"Rows", s.Rows, ""})
	} else {
		t.AppendRow(table.Row{"Output", text.FgRed.Sprint("none"), ""})
	}

	if len(s.Errors) > 0 {
		t.AppendSeparator()
		const maxErrors = 5
		for i, e := range s.Errors {
			if i >= maxErrors {
				t.AppendRow(table.Row{"...", fmt.Sprintf("and %d more errors", len(s.Errors)-maxErrors), ""})
				break
			}
			kind := "warning"
			if e.Fatal {
				kind = text.FgRed.Sprint("fatal")
			}
			t.AppendRow(table.Row{e.Stage, e.Message, kind})
		}
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}

// Summary returns a brief one-line summary of the stats.
func (s *Stats) Summary() string {
	failed := 0
	for _, tg := range s.Toggles {
		if tg.Failed {
			failed++
		}
	}
	out := s.OutputPath
	if out == "" {
		out = "no output"
	} else {
		out = filepath.Base(out)
	}
	return fmt.Sprintf("%d toggles (%d not found), %s, %d errors in %s",
		len(s.Toggles), failed, out, len(s.Errors), formatDuration(s.Duration()))
}
