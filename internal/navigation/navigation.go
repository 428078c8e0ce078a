// Package navigation reaches the SIDRA table page through the portal's
// search UI. The table URL is never built or visited directly.
package navigation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/cantalupo555/sidra-exporter/internal/browser"
	"github.com/cantalupo555/sidra-exporter/internal/markup"
)

var (
	// ErrSearchEntryNotFound means the search icon never appeared.
	ErrSearchEntryNotFound = errors.New("search entry control not found")
	// ErrSearchFieldNotFound means the search box never became visible.
	ErrSearchFieldNotFound = errors.New("search field not found")
	// ErrTableLinkNotFound means the search results held no link to the table.
	ErrTableLinkNotFound = errors.New("table link not found in search results")
)

// Portal markup.
var (
	searchIcon      = browser.CSS("li.lupa-li a")
	searchContainer = browser.ID("sidra-pesquisa-lg")
	searchField     = browser.CSS("#sidra-pesquisa-lg input[type='text']")
	searchButton    = browser.CSS("#sidra-pesquisa-lg button")
	resultsArea     = browser.CSS("body")
	tablePanel      = browser.ID("panel-C58")
)

// Options configures a Navigator.
type Options struct {
	HomeURL        string
	TableID        string
	Query          string
	ElementTimeout time.Duration
	TypeDelay      time.Duration
	SettleDelay    time.Duration
}

// Navigator drives the portal search to the table page.
type Navigator struct {
	opts Options
}

// New returns a Navigator.
func New(opts Options) *Navigator {
	return &Navigator{opts: opts}
}

// TableLink is the XPath of a search result pointing at the table.
func TableLink(tableID string) browser.Selector {
	return browser.XPath(fmt.Sprintf(
		"//a[contains(@href, 'tabela/%[1]s') or contains(@href, 'Tabela=%[1]s') or contains(., '%[1]s')]",
		tableID))
}

// OpenTable opens the portal home, searches for the table and follows the
// result to the table page. Missing search controls or result link are fatal.
func (n *Navigator) OpenTable(ctx context.Context, page browser.Page) error {
	log.Println("Opening SIDRA home page...")
	if err := page.Navigate(ctx, n.opts.HomeURL); err != nil {
		return pkgerrors.Wrap(err, "open portal home")
	}
	if err := browser.Pause(ctx, n.opts.SettleDelay); err != nil {
		return err
	}
	n.dismissPopups(ctx, page)

	if err := n.submitSearch(ctx, page); err != nil {
		return err
	}

	redirected, err := n.onTablePage(ctx, page)
	if err != nil {
		return pkgerrors.Wrap(err, "check redirect")
	}
	if redirected {
		log.Printf("✓ Redirected straight to table %s", n.opts.TableID)
	} else if err := n.followResultLink(ctx, page); err != nil {
		return err
	}

	n.waitTableLoaded(ctx, page)
	n.dismissPopups(ctx, page)
	log.Println("✓ Table page reached through the portal UI")
	return nil
}

func (n *Navigator) submitSearch(ctx context.Context, page browser.Page) error {
	log.Println("Looking for the search icon...")
	if err := page.WaitPresent(ctx, searchIcon, n.opts.ElementTimeout); err != nil {
		return pkgerrors.WithStack(fmt.Errorf("%w (%s): navigating by URL is not allowed: %w", ErrSearchEntryNotFound, searchIcon, err))
	}
	if err := page.Click(ctx, searchIcon); err != nil {
		return pkgerrors.WithStack(fmt.Errorf("%w: click: %w", ErrSearchEntryNotFound, err))
	}
	log.Println("✓ Search icon clicked")

	if err := page.WaitVisible(ctx, searchContainer, n.opts.ElementTimeout); err != nil {
		return pkgerrors.WithStack(fmt.Errorf("%w (%s): %w", ErrSearchFieldNotFound, searchContainer, err))
	}
	log.Printf("Typing %q into the search field...", n.opts.Query)
	if err := page.Type(ctx, searchField, n.opts.Query, n.opts.TypeDelay); err != nil {
		return pkgerrors.WithStack(fmt.Errorf("%w (%s): %w", ErrSearchFieldNotFound, searchField, err))
	}

	if err := page.Click(ctx, searchButton); err != nil {
		log.Printf("Search button unavailable (%v), pressing Enter", err)
		if err := page.Type(ctx, searchField, browser.KeyEnter, 0); err != nil {
			return pkgerrors.Wrap(err, "submit search")
		}
	}
	log.Println("✓ Search submitted")
	return browser.Pause(ctx, n.opts.SettleDelay)
}

// onTablePage reports whether the search already landed on the table.
func (n *Navigator) onTablePage(ctx context.Context, page browser.Page) (bool, error) {
	url, err := page.Location(ctx)
	if err != nil {
		return false, err
	}
	if strings.Contains(strings.ToLower(url), "tabela/"+n.opts.TableID) {
		return true, nil
	}
	title, err := page.Title(ctx)
	if err != nil {
		return false, err
	}
	return strings.Contains(title, n.opts.TableID), nil
}

func (n *Navigator) followResultLink(ctx context.Context, page browser.Page) error {
	link := TableLink(n.opts.TableID)
	log.Printf("Looking for table %s in the search results...", n.opts.TableID)
	if err := page.WaitVisible(ctx, link, n.opts.ElementTimeout); err != nil {
		return pkgerrors.WithStack(fmt.Errorf("%w: %w%s", ErrTableLinkNotFound, err, n.describeResults(ctx, page)))
	}
	if err := page.ScrollIntoView(ctx, link); err != nil {
		log.Printf("⚠️ Warning: could not scroll to result link: %v", err)
	}
	if err := page.Click(ctx, link); err != nil {
		return pkgerrors.WithStack(fmt.Errorf("%w: click: %w", ErrTableLinkNotFound, err))
	}
	log.Println("✓ Result link clicked")
	return browser.Pause(ctx, n.opts.SettleDelay)
}

// describeResults lists the links currently on the page that mention the
// table, for the fatal error message.
func (n *Navigator) describeResults(ctx context.Context, page browser.Page) string {
	html, err := page.OuterHTML(ctx, resultsArea)
	if err != nil {
		return ""
	}
	links, err := markup.Links(html)
	if err != nil || len(links) == 0 {
		return " (page has no links)"
	}
	candidates, _ := markup.TableLinks(html, n.opts.TableID)
	if len(candidates) == 0 {
		return fmt.Sprintf(" (%d links on page, none mention %s)", len(links), n.opts.TableID)
	}
	parts := make([]string, 0, len(candidates))
	for _, l := range candidates {
		parts = append(parts, fmt.Sprintf("%q -> %s", l.Text, l.Href))
	}
	return " (candidates not clickable: " + strings.Join(parts, "; ") + ")"
}

func (n *Navigator) waitTableLoaded(ctx context.Context, page browser.Page) {
	log.Println("Waiting for the table to load...")
	if err := page.WaitPresent(ctx, tablePanel, n.opts.ElementTimeout); err != nil {
		log.Printf("⚠️ Table panel not detected (%v), continuing", err)
		return
	}
	log.Println("✓ Table loaded")
	_ = browser.Pause(ctx, n.opts.SettleDelay)
}

func (n *Navigator) dismissPopups(ctx context.Context, page browser.Page) {
	if err := page.PressKey(ctx, browser.KeyEscape); err != nil {
		log.Printf("Warning: could not dismiss popups: %v", err)
	}
}
