// Package selection sets the SIDRA filter toggles and the territorial unit.
package selection

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cantalupo555/sidra-exporter/internal/browser"
	"github.com/cantalupo555/sidra-exporter/internal/markup"
)

// ErrToggleNotFound is recoverable: the control never rendered within the
// attempt budget and the remaining filters are still applied.
var ErrToggleNotFound = errors.New("toggle not found")

// listContainer is the virtualized list that holds the toggles.
var listContainer = browser.CSS("div.lv-container")

// Toggle is a named control and the state it must end in.
type Toggle struct {
	Label    string
	Selected bool
}

// ToggleResult records what happened to one toggle.
type ToggleResult struct {
	Toggle
	Changed  bool
	Attempts int
	Err      error
}

// Result is the outcome of Apply.
type Result struct {
	Toggles   []ToggleResult
	Territory TerritoryResult
}

// Failed returns the toggles that could not be set.
func (r *Result) Failed() []ToggleResult {
	var out []ToggleResult
	for _, t := range r.Toggles {
		if t.Err != nil {
			out = append(out, t)
		}
	}
	return out
}

// Options configures an Applier.
type Options struct {
	MaxAttempts    int
	ScrollStep     int
	RetryDelay     time.Duration
	ClickDelay     time.Duration
	SettleDelay    time.Duration
	ElementTimeout time.Duration
	Territory      TerritoryOptions
}

// Applier drives the filter panel of the table page.
type Applier struct {
	opts Options
}

// New returns an Applier.
func New(opts Options) *Applier {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	return &Applier{opts: opts}
}

// ItemSelector matches the list or tree item whose name contains label.
func ItemSelector(label string) browser.Selector {
	return browser.XPath(fmt.Sprintf(
		"//div[contains(@class, 'item-lista') or contains(@class, 'item-arvore')]"+
			"[.//span[@class='nome' or contains(@class, 'nome linhaAfastado')][contains(text(), %s)]]",
		xpathLiteral(label)))
}

// ButtonSelector matches the sidra-toggle button of the item named label.
func ButtonSelector(label string) browser.Selector {
	return browser.XPath(ItemSelector(label).Query + "//button[contains(@class, 'sidra-toggle')]")
}

// Apply sets every toggle, then the territorial unit. A toggle that cannot
// be found is logged and skipped; browser failures and a missing
// territorial tree abort.
func (a *Applier) Apply(ctx context.Context, page browser.Page, toggles []Toggle) (*Result, error) {
	res := &Result{}
	for _, t := range toggles {
		tr := ToggleResult{Toggle: t}
		tr.Changed, tr.Attempts, tr.Err = a.setToggle(ctx, page, t.Label, t.Selected)
		if tr.Err != nil {
			if !errors.Is(tr.Err, ErrToggleNotFound) {
				return res, tr.Err
			}
			log.Printf("⚠️ Warning: %v", tr.Err)
		}
		res.Toggles = append(res.Toggles, tr)
		if err := browser.Pause(ctx, a.opts.SettleDelay); err != nil {
			return res, err
		}
	}

	territory, err := a.SelectTerritorialUnit(ctx, page)
	res.Territory = territory
	if err != nil {
		return res, err
	}
	return res, nil
}

// SetToggle puts the control named label into the selected state. It
// reports whether a click was needed. A control already in that state is
// left alone.
func (a *Applier) SetToggle(ctx context.Context, page browser.Page, label string, selected bool) (bool, error) {
	changed, _, err := a.setToggle(ctx, page, label, selected)
	return changed, err
}

func (a *Applier) setToggle(ctx context.Context, page browser.Page, label string, selected bool) (bool, int, error) {
	verb := "Selecting"
	if !selected {
		verb = "Deselecting"
	}
	log.Printf("%s '%s'...", verb, label)

	item := ItemSelector(label)
	for attempt := 1; attempt <= a.opts.MaxAttempts; attempt++ {
		found, err := page.Exists(ctx, item)
		if err != nil {
			return false, attempt, err
		}
		if found {
			changed, err := a.ensure(ctx, page, item, ButtonSelector(label), selected, label)
			return changed, attempt, err
		}

		// Not rendered yet: nudge the virtualized list and look again.
		if err := page.ScrollBy(ctx, listContainer, a.opts.ScrollStep); err != nil && !errors.Is(err, browser.ErrNotFound) {
			return false, attempt, err
		}
		if err := browser.Pause(ctx, a.opts.RetryDelay); err != nil {
			return false, attempt, err
		}
	}
	return false, a.opts.MaxAttempts, fmt.Errorf("%w: '%s' after %d attempts", ErrToggleNotFound, label, a.opts.MaxAttempts)
}

// ensure reads the toggle state from the markup of stateSel and clicks
// button only when it differs from want.
func (a *Applier) ensure(ctx context.Context, page browser.Page, stateSel, button browser.Selector, want bool, name string) (bool, error) {
	if err := page.ScrollIntoView(ctx, stateSel); err != nil {
		log.Printf("Warning: could not scroll to '%s': %v", name, err)
	}
	if err := browser.Pause(ctx, a.opts.RetryDelay); err != nil {
		return false, err
	}

	html, err := page.OuterHTML(ctx, stateSel)
	if err != nil {
		return false, fmt.Errorf("read state of '%s': %w", name, err)
	}
	current, err := markup.ToggleSelected(html)
	if err != nil {
		return false, fmt.Errorf("read state of '%s': %w", name, err)
	}

	if current == want {
		log.Printf("'%s' already %s", name, stateWord(want))
		return false, nil
	}
	if err := page.Click(ctx, button); err != nil {
		return false, fmt.Errorf("click '%s': %w", name, err)
	}
	log.Printf("✓ '%s' %s", name, stateWord(want))
	return true, browser.Pause(ctx, a.opts.ClickDelay)
}

func stateWord(selected bool) string {
	if selected {
		return "selected"
	}
	return "deselected"
}

// xpathLiteral quotes s for use inside an XPath expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	return "concat('" + strings.Join(parts, `', "'", '`) + "')"
}
