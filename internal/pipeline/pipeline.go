// Package pipeline runs the export end to end: open the browser, reach the
// table, apply the filters, download the CSV, release the browser.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cantalupo555/sidra-exporter/internal/browser"
	"github.com/cantalupo555/sidra-exporter/internal/download"
	"github.com/cantalupo555/sidra-exporter/internal/report"
	"github.com/cantalupo555/sidra-exporter/internal/selection"
)

// Session is a live browser the flow owns until Close.
type Session interface {
	Page() browser.Page
	Close()
}

// Opener starts a session.
type Opener func(ctx context.Context) (Session, error)

// Navigator reaches the table page.
type Navigator interface {
	OpenTable(ctx context.Context, page browser.Page) error
}

// Applier sets the table filters.
type Applier interface {
	Apply(ctx context.Context, page browser.Page, toggles []selection.Toggle) (*selection.Result, error)
}

// Exporter downloads the table and returns the final file path.
type Exporter interface {
	Export(ctx context.Context, page browser.Page) (string, error)
}

// StageError tags a fatal error with the stage that raised it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// Format keeps the stack trace of the wrapped error available via %+v.
func (e *StageError) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "%s: %+v", e.Stage, e.Err)
		return
	}
	fmt.Fprint(s, e.Error())
}

// Flow wires the stages together.
type Flow struct {
	Open      Opener
	Navigator Navigator
	Applier   Applier
	Exporter  Exporter
	Toggles   []selection.Toggle

	// BeforeClose runs right before the session is released, on every
	// path. It is where the interactive confirmation happens.
	BeforeClose func()

	Stats *report.Stats
}

// Run executes the stages in order. The session is released exactly once
// whatever the outcome.
func (f *Flow) Run(ctx context.Context) (path string, err error) {
	if f.Stats == nil {
		f.Stats = report.New()
	}
	stats := f.Stats

	defer func() {
		if err != nil {
			var se *StageError
			stage := "run"
			if errors.As(err, &se) {
				stage = se.Stage
			}
			stats.AddFatal(stage, err)
		}
		stats.Finish()
	}()

	log.Println("Starting browser...")
	sess, err := f.Open(ctx)
	if err != nil {
		return "", &StageError{Stage: "browser", Err: err}
	}
	defer func() {
		if f.BeforeClose != nil {
			f.BeforeClose()
		}
		sess.Close()
		log.Println("Browser closed")
	}()
	page := sess.Page()

	log.Println("\n--- NAVIGATION ---")
	if err := f.Navigator.OpenTable(ctx, page); err != nil {
		return "", &StageError{Stage: "navigation", Err: err}
	}

	log.Println("\n--- FILTERS ---")
	res, err := f.Applier.Apply(ctx, page, f.Toggles)
	if res != nil {
		for _, t := range res.Toggles {
			stats.AddToggle(t.Label, t.Selected, t.Changed, t.Err != nil)
			if t.Err != nil {
				stats.AddError("filters", t.Err.Error())
			}
		}
		stats.Territory = res.Territory.Label
		stats.TerritoryFallback = res.Territory.Fallback
		if res.Territory.Fallback {
			stats.AddError("filters", fmt.Sprintf("territorial unit fell back to '%s'", res.Territory.Label))
		}
	}
	if err != nil {
		return "", &StageError{Stage: "filters", Err: err}
	}

	log.Println("\n--- DOWNLOAD ---")
	path, err = f.Exporter.Export(ctx, page)
	if err != nil {
		return "", &StageError{Stage: "download", Err: err}
	}

	if summary, err := download.Inspect(path); err != nil {
		log.Printf("⚠️ Warning: could not read %s: %v", path, err)
		stats.SetOutput(path, 0, 0)
	} else {
		stats.SetOutput(path, summary.Size, summary.Rows)
	}
	return path, nil
}

// Describe turns a fatal error into the message shown to the user. ctx is
// the context the flow ran with, so an interrupt is not mistaken for the
// window being closed.
func Describe(ctx context.Context, err error) string {
	if ctx.Err() != nil {
		return fmt.Sprintf("interrupted before the export finished: %v", err)
	}
	if browser.IsBrowserClosed(err) {
		return fmt.Sprintf("browser closed before the export finished: %v", err)
	}
	return err.Error()
}
