package selection

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/cantalupo555/sidra-exporter/internal/browser"
	"github.com/cantalupo555/sidra-exporter/internal/markup"
)

var (
	// ErrTerritoryNotFound means the territorial tree root never appeared.
	ErrTerritoryNotFound = errors.New("territorial unit tree not found")
	// ErrFinerOptionNotFound means the finer grouping was missing and the
	// fallback is disabled.
	ErrFinerOptionNotFound = errors.New("finer territorial option not found")
)

// TerritoryOptions locates the territorial tree nodes.
type TerritoryOptions struct {
	RootID        string
	RootLabel     string
	FinerID       string
	FinerLabel    string
	Wait          time.Duration
	AllowFallback bool
}

// TerritoryResult records which node ended up selected.
type TerritoryResult struct {
	Label    string
	Fallback bool
	Changed  bool
}

// RootSelector matches the tree node holding the coarser grouping.
func (o TerritoryOptions) RootSelector() browser.Selector {
	return browser.XPath(fmt.Sprintf("//li[@id=%s]", xpathLiteral(o.RootID)))
}

// ExpandSelector matches the expand icon of the root node.
func (o TerritoryOptions) ExpandSelector() browser.Selector {
	return browser.XPath(o.RootSelector().Query + "//i[contains(@class, 'expande')]")
}

// FinerSelector matches the tree item of the finer grouping.
func (o TerritoryOptions) FinerSelector() browser.Selector {
	return browser.XPath(fmt.Sprintf(
		"//li[@id=%s]//div[contains(@class, 'item-arvore')][.//span[@class='nome' and contains(text(), %s)]]",
		xpathLiteral(o.FinerID), xpathLiteral(o.FinerLabel)))
}

// RootButton matches the first toggle under the root node, its own.
func (o TerritoryOptions) RootButton() browser.Selector {
	return browser.XPath(o.RootSelector().Query + "//button[contains(@class, 'sidra-toggle')]")
}

// SelectTerritorialUnit expands the territorial tree and selects the finer
// grouping, or the root node when the finer one does not show up in time
// and the fallback is allowed.
func (a *Applier) SelectTerritorialUnit(ctx context.Context, page browser.Page) (TerritoryResult, error) {
	o := a.opts.Territory
	log.Println("Configuring territorial unit...")

	root := o.RootSelector()
	if err := page.WaitPresent(ctx, root, a.opts.ElementTimeout); err != nil {
		return TerritoryResult{}, pkgerrors.WithStack(fmt.Errorf("%w ('%s'): %w", ErrTerritoryNotFound, o.RootLabel, err))
	}
	if err := page.ScrollIntoView(ctx, root); err != nil {
		log.Printf("Warning: could not scroll to '%s': %v", o.RootLabel, err)
	}
	if err := browser.Pause(ctx, a.opts.RetryDelay); err != nil {
		return TerritoryResult{}, err
	}

	if err := a.expand(ctx, page); err != nil {
		return TerritoryResult{}, err
	}

	finer := o.FinerSelector()
	if err := page.WaitPresent(ctx, finer, o.Wait); err == nil {
		changed, err := a.ensure(ctx, page, finer, browser.XPath(finer.Query+"//button[contains(@class, 'sidra-toggle')]"), true, o.FinerLabel)
		return TerritoryResult{Label: o.FinerLabel, Changed: changed}, err
	} else if !errors.Is(err, browser.ErrTimeout) {
		return TerritoryResult{}, err
	}

	if !o.AllowFallback {
		return TerritoryResult{}, pkgerrors.WithStack(fmt.Errorf("%w: '%s' did not appear within %v", ErrFinerOptionNotFound, o.FinerLabel, o.Wait))
	}

	log.Printf("⚠️ '%s' not found within %v, selecting '%s' instead; the export will be grouped differently",
		o.FinerLabel, o.Wait, o.RootLabel)
	changed, err := a.ensure(ctx, page, root, o.RootButton(), true, o.RootLabel)
	return TerritoryResult{Label: o.RootLabel, Fallback: true, Changed: changed}, err
}

func (a *Applier) expand(ctx context.Context, page browser.Page) error {
	o := a.opts.Territory
	html, err := page.OuterHTML(ctx, o.RootSelector())
	if err != nil {
		return fmt.Errorf("read '%s': %w", o.RootLabel, err)
	}
	collapsed, err := markup.TreeCollapsed(html)
	if err != nil {
		return fmt.Errorf("read '%s': %w", o.RootLabel, err)
	}
	if !collapsed {
		if has, _ := markup.HasExpandIcon(html); has {
			log.Printf("'%s' already expanded", o.RootLabel)
		} else {
			log.Printf("⚠️ '%s' has no expand icon, looking for '%s' as rendered", o.RootLabel, o.FinerLabel)
		}
		return nil
	}

	log.Printf("Expanding '%s'...", o.RootLabel)
	if err := page.Click(ctx, o.ExpandSelector()); err != nil {
		return fmt.Errorf("expand '%s': %w", o.RootLabel, err)
	}
	log.Println("✓ Tree expanded")
	return browser.Pause(ctx, a.opts.ClickDelay)
}
