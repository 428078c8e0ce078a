// Package markup reads widget state out of SIDRA HTML fragments.
package markup

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link is an anchor found in a search result list.
type Link struct {
	Text string
	Href string
}

func parse(fragment string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// ToggleSelected reports the aria-selected state of the sidra-toggle button
// inside an item fragment.
func ToggleSelected(fragment string) (bool, error) {
	doc, err := parse(fragment)
	if err != nil {
		return false, err
	}
	btn := doc.Find("button.sidra-toggle").First()
	if btn.Length() == 0 {
		return false, fmt.Errorf("no sidra-toggle button in fragment")
	}
	return strings.EqualFold(strings.TrimSpace(btn.AttrOr("aria-selected", "")), "true"), nil
}

// TreeCollapsed reports whether a tree node fragment has a collapsed
// expand icon. A node without an icon is treated as expanded.
func TreeCollapsed(fragment string) (bool, error) {
	doc, err := parse(fragment)
	if err != nil {
		return false, err
	}
	icon := doc.Find("i.expande").First()
	if icon.Length() == 0 {
		return false, nil
	}
	return icon.HasClass("collapsed"), nil
}

// HasExpandIcon reports whether a tree node fragment carries an expand icon.
func HasExpandIcon(fragment string) (bool, error) {
	doc, err := parse(fragment)
	if err != nil {
		return false, err
	}
	return doc.Find("i.expande").Length() > 0, nil
}

// Links returns every anchor in fragment with its trimmed text and href.
func Links(fragment string) ([]Link, error) {
	doc, err := parse(fragment)
	if err != nil {
		return nil, err
	}
	var links []Link
	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		links = append(links, Link{
			Text: strings.Join(strings.Fields(a.Text()), " "),
			Href: a.AttrOr("href", ""),
		})
	})
	return links, nil
}

// TableLinks filters Links down to those pointing at or naming tableID.
func TableLinks(fragment, tableID string) ([]Link, error) {
	all, err := Links(fragment)
	if err != nil {
		return nil, err
	}
	var out []Link
	for _, l := range all {
		if strings.Contains(l.Href, "tabela/"+tableID) ||
			strings.Contains(l.Href, "Tabela="+tableID) ||
			strings.Contains(l.Text, tableID) {
			out = append(out, l)
		}
	}
	return out, nil
}
