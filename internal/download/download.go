// Package download exports the filtered SIDRA table as CSV and collects the
// file from the download directory.
package download

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/cantalupo555/sidra-exporter/internal/browser"
)

// ErrDownloadTimeout means no usable file appeared before the deadline.
var ErrDownloadTimeout = errors.New("download timed out")

// ErrModalNotFound means the download dialog could not be opened or driven.
var ErrModalNotFound = errors.New("download modal not available")

// Download modal markup.
var (
	downloadButton = browser.ID("botao-downloads")
	modal          = browser.ID("modal-downloads")
	formatSelect   = browser.CSS("#modal-downloads select.select-formato-arquivo")
	confirmButton  = browser.CSS("#modal-downloads a.btn-green-sucess")
)

// State is a step of the export.
type State int

const (
	Idle State = iota
	ModalOpen
	FormatSelected
	Downloading
	Found
	TimedOut
)

var stateNames = [...]string{"Idle", "ModalOpen", "FormatSelected", "Downloading", "Found", "TimedOut"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == Found || s == TimedOut }

// Options configures an Exporter.
type Options struct {
	Dir            string
	Format         string
	Prefix         string
	Suffix         string
	Timeout        time.Duration
	PollInterval   time.Duration
	ElementTimeout time.Duration
	SettleDelay    time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// Exporter drives the download modal and renames the resulting file.
type Exporter struct {
	opts  Options
	state State

	// existing holds the names present before the download was triggered.
	existing map[string]bool
}

// New returns an Exporter in the Idle state.
func New(opts Options) *Exporter {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Format == "" {
		opts.Format = "br.csv"
	}
	return &Exporter{opts: opts}
}

// State returns the current step.
func (e *Exporter) State() State { return e.state }

func (e *Exporter) advance(to State) {
	log.Printf("Export: %s -> %s", e.state, to)
	e.state = to
}

// Export opens the modal, forces CSV, starts the download and waits for the
// file. It returns the path after renaming.
func (e *Exporter) Export(ctx context.Context, page browser.Page) (string, error) {
	if e.state != Idle {
		return "", fmt.Errorf("export already ran (state %s)", e.state)
	}
	if err := e.openModal(ctx, page); err != nil {
		return "", err
	}
	if err := e.selectFormat(ctx, page); err != nil {
		return "", err
	}
	if err := e.trigger(ctx, page); err != nil {
		return "", err
	}
	return e.Collect(ctx)
}

func (e *Exporter) openModal(ctx context.Context, page browser.Page) error {
	log.Println("Opening the download dialog...")
	if err := page.WaitVisible(ctx, downloadButton, e.opts.ElementTimeout); err != nil {
		return pkgerrors.WithStack(fmt.Errorf("%w: %w", ErrModalNotFound, err))
	}
	if err := page.ScrollIntoView(ctx, downloadButton); err != nil {
		log.Printf("Warning: could not scroll to download button: %v", err)
	}
	if err := page.Click(ctx, downloadButton); err != nil {
		return pkgerrors.WithStack(fmt.Errorf("%w: %w", ErrModalNotFound, err))
	}
	if err := page.WaitVisible(ctx, modal, e.opts.ElementTimeout); err != nil {
		return pkgerrors.WithStack(fmt.Errorf("%w: %w", ErrModalNotFound, err))
	}
	e.advance(ModalOpen)
	return browser.Pause(ctx, e.opts.SettleDelay)
}

func (e *Exporter) selectFormat(ctx context.Context, page browser.Page) error {
	if err := page.SetValue(ctx, formatSelect, e.opts.Format); err != nil {
		return pkgerrors.WithStack(fmt.Errorf("%w: select format %s: %w", ErrModalNotFound, e.opts.Format, err))
	}
	log.Printf("✓ Format set to %s", e.opts.Format)
	e.advance(FormatSelected)
	return nil
}

func (e *Exporter) trigger(ctx context.Context, page browser.Page) error {
	if err := page.WaitVisible(ctx, confirmButton, e.opts.ElementTimeout); err != nil {
		return pkgerrors.WithStack(fmt.Errorf("%w: %w", ErrModalNotFound, err))
	}
	if err := page.ScrollIntoView(ctx, confirmButton); err != nil {
		log.Printf("Warning: could not scroll to confirm button: %v", err)
	}
	e.existing = Snapshot(e.opts.Dir, "*.csv")
	if err := page.Click(ctx, confirmButton); err != nil {
		return pkgerrors.WithStack(fmt.Errorf("%w: %w", ErrModalNotFound, err))
	}
	log.Println("✓ Download started")
	e.advance(Downloading)
	return nil
}

func (e *Exporter) skip(name string) bool {
	return e.existing[name] || HasPrefix(e.opts.Prefix)(name)
}

// Collect waits for the export in the download directory and renames it.
// The Exporter must be Downloading, or Idle when called on its own.
func (e *Exporter) Collect(ctx context.Context) (string, error) {
	if e.state != Downloading && e.state != Idle {
		return "", fmt.Errorf("cannot collect in state %s", e.state)
	}
	e.state = Downloading

	log.Printf("Waiting for the CSV in %s (up to %v)...", e.opts.Dir, e.opts.Timeout)
	poller := &Poller{
		Dir:      e.opts.Dir,
		Pattern:  "*.csv",
		Interval: e.opts.PollInterval,
		Timeout:  e.opts.Timeout,
		Skip:     e.skip,
	}
	c, err := poller.Wait(ctx)
	if err != nil {
		if errors.Is(err, ErrDownloadTimeout) {
			e.advance(TimedOut)
			return "", pkgerrors.WithStack(err)
		}
		return "", err
	}
	log.Printf("✓ CSV downloaded: %s", filepath.Base(c.Path))

	dst := filepath.Join(e.opts.Dir, OutputName(e.opts.Prefix, e.opts.Suffix, e.opts.Now()))
	if err := RenameOver(c.Path, dst); err != nil {
		return "", err
	}
	e.advance(Found)
	log.Printf("✓ Renamed to: %s", filepath.Base(dst))
	return dst, nil
}
