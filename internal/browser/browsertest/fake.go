// Package browsertest provides an in-memory browser.Page for tests.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cantalupo555/sidra-exporter/internal/browser"
)

// Element is a fake DOM element addressed by its selector.
type Element struct {
	HTML    string
	Hidden  bool
	Value   string
	OnClick func(p *FakePage)
}

// Action is one recorded page interaction.
type Action struct {
	Kind   string
	Target string
	Arg    string
}

func (a Action) String() string {
	if a.Arg == "" {
		return a.Kind + " " + a.Target
	}
	return fmt.Sprintf("%s %s %q", a.Kind, a.Target, a.Arg)
}

// FakePage implements browser.Page over a map of selectors. Waits never
// sleep: an element missing at wait time yields browser.ErrTimeout.
type FakePage struct {
	mu       sync.Mutex
	url      string
	title    string
	elements map[string]*Element
	actions  []Action
	clicks   map[string]int

	// OnNavigate runs after the URL changes.
	OnNavigate func(p *FakePage, url string)
	// OnScroll runs after ScrollBy on any container.
	OnScroll func(p *FakePage, sel browser.Selector, dy int)
	// OnWait runs before each wait so tests can make elements appear late.
	OnWait func(p *FakePage, sel browser.Selector)
	// Fail makes every action on a selector return the given error.
	Fail map[string]error
}

var _ browser.Page = (*FakePage)(nil)

// New returns an empty page at about:blank.
func New() *FakePage {
	return &FakePage{
		url:      "about:blank",
		elements: make(map[string]*Element),
		clicks:   make(map[string]int),
		Fail:     make(map[string]error),
	}
}

// Set adds or replaces the element behind sel.
func (p *FakePage) Set(sel browser.Selector, el *Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[sel.String()] = el
}

// Remove deletes the element behind sel.
func (p *FakePage) Remove(sel browser.Selector) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, sel.String())
}

// Get returns the element behind sel, or nil.
func (p *FakePage) Get(sel browser.Selector) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.elements[sel.String()]
}

// SetLocation changes the current URL and title without recording a navigation.
func (p *FakePage) SetLocation(url, title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
	p.title = title
}

// Clicks returns how many times sel was clicked.
func (p *FakePage) Clicks(sel browser.Selector) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clicks[sel.String()]
}

// Actions returns a copy of the recorded interactions.
func (p *FakePage) Actions() []Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Action(nil), p.actions...)
}

// ActionsOf returns the recorded interactions of the given kind.
func (p *FakePage) ActionsOf(kind string) []Action {
	var out []Action
	for _, a := range p.Actions() {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

func (p *FakePage) record(kind, target, arg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actions = append(p.actions, Action{Kind: kind, Target: target, Arg: arg})
}

func (p *FakePage) lookup(sel browser.Selector) (*Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.Fail[sel.String()]; err != nil {
		return nil, err
	}
	el, ok := p.elements[sel.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", browser.ErrNotFound, sel)
	}
	return el, nil
}

func (p *FakePage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.record("navigate", url, "")
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
	if p.OnNavigate != nil {
		p.OnNavigate(p, url)
	}
	return nil
}

func (p *FakePage) Location(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, ctx.Err()
}

func (p *FakePage) Title(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.title, ctx.Err()
}

func (p *FakePage) PressKey(ctx context.Context, key string) error {
	p.record("key", keyName(key), "")
	return ctx.Err()
}

func (p *FakePage) WaitPresent(ctx context.Context, sel browser.Selector, timeout time.Duration) error {
	return p.wait(ctx, "wait-present", sel, timeout, false)
}

func (p *FakePage) WaitVisible(ctx context.Context, sel browser.Selector, timeout time.Duration) error {
	return p.wait(ctx, "wait-visible", sel, timeout, true)
}

func (p *FakePage) wait(ctx context.Context, kind string, sel browser.Selector, timeout time.Duration, visible bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.record(kind, sel.String(), "")
	if p.OnWait != nil {
		p.OnWait(p, sel)
	}
	el, err := p.lookup(sel)
	if err != nil || (visible && el.Hidden) {
		return fmt.Errorf("%w after %v: %s", browser.ErrTimeout, timeout, sel)
	}
	return nil
}

func (p *FakePage) Exists(ctx context.Context, sel browser.Selector) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := p.lookup(sel)
	if errors.Is(err, browser.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (p *FakePage) Click(ctx context.Context, sel browser.Selector) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	el, err := p.lookup(sel)
	if err != nil {
		return err
	}
	p.record("click", sel.String(), "")
	p.mu.Lock()
	p.clicks[sel.String()]++
	p.mu.Unlock()
	if el.OnClick != nil {
		el.OnClick(p)
	}
	return nil
}

func (p *FakePage) ScrollIntoView(ctx context.Context, sel browser.Selector) error {
	if _, err := p.lookup(sel); err != nil {
		return err
	}
	p.record("scroll-into-view", sel.String(), "")
	return ctx.Err()
}

func (p *FakePage) ScrollBy(ctx context.Context, sel browser.Selector, dy int) error {
	if _, err := p.lookup(sel); err != nil {
		return err
	}
	p.record("scroll", sel.String(), fmt.Sprint(dy))
	if p.OnScroll != nil {
		p.OnScroll(p, sel, dy)
	}
	return ctx.Err()
}

func (p *FakePage) Type(ctx context.Context, sel browser.Selector, text string, _ time.Duration) error {
	el, err := p.lookup(sel)
	if err != nil {
		return err
	}
	if text == browser.KeyEnter || text == browser.KeyEscape {
		p.record("key", keyName(text), sel.String())
		return ctx.Err()
	}
	p.mu.Lock()
	el.Value = text
	p.mu.Unlock()
	p.record("type", sel.String(), text)
	return ctx.Err()
}

func (p *FakePage) SetValue(ctx context.Context, sel browser.Selector, value string) error {
	el, err := p.lookup(sel)
	if err != nil {
		return err
	}
	p.mu.Lock()
	el.Value = value
	p.mu.Unlock()
	p.record("set-value", sel.String(), value)
	return ctx.Err()
}

func (p *FakePage) OuterHTML(ctx context.Context, sel browser.Selector) (string, error) {
	el, err := p.lookup(sel)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return el.HTML, ctx.Err()
}

func keyName(key string) string {
	switch key {
	case browser.KeyEscape:
		return "Escape"
	case browser.KeyEnter:
		return "Enter"
	default:
		return strings.TrimSpace(key)
	}
}
