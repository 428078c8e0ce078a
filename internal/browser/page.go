// Package browser provides Chrome/Chromedp initialization and the page
// actions used by the export pipeline.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// Keys accepted by PressKey and Type.
const (
	KeyEscape = kb.Escape
	KeyEnter  = kb.Enter
)

// By is the strategy used to resolve a Selector.
type By int

const (
	ByQuery By = iota
	ByID
	ByXPath
)

// Selector identifies an element on the page.
type Selector struct {
	Query string
	By    By
}

// CSS returns a CSS selector.
func CSS(q string) Selector { return Selector{Query: q, By: ByQuery} }

// ID returns an element id selector.
func ID(id string) Selector { return Selector{Query: id, By: ByID} }

// XPath returns an XPath selector.
func XPath(q string) Selector { return Selector{Query: q, By: ByXPath} }

func (s Selector) String() string {
	switch s.By {
	case ByID:
		return "#" + s.Query
	case ByXPath:
		return "xpath:" + s.Query
	default:
		return s.Query
	}
}

func (s Selector) queryOption() chromedp.QueryOption {
	switch s.By {
	case ByID:
		return chromedp.ByID
	case ByXPath:
		return chromedp.BySearch
	default:
		return chromedp.ByQuery
	}
}

// Page is the set of UI interactions the pipeline needs. Clicks are issued
// as script clicks so overlays on the portal cannot intercept them.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	PressKey(ctx context.Context, key string) error
	WaitPresent(ctx context.Context, sel Selector, timeout time.Duration) error
	WaitVisible(ctx context.Context, sel Selector, timeout time.Duration) error
	Exists(ctx context.Context, sel Selector) (bool, error)
	Click(ctx context.Context, sel Selector) error
	ScrollIntoView(ctx context.Context, sel Selector) error
	ScrollBy(ctx context.Context, sel Selector, dy int) error
	Type(ctx context.Context, sel Selector, text string, delay time.Duration) error
	SetValue(ctx context.Context, sel Selector, value string) error
	OuterHTML(ctx context.Context, sel Selector) (string, error)
}

// CDPPage implements Page over a chromedp context.
type CDPPage struct {
	ctx context.Context
}

// NewCDPPage wraps a chromedp context. Every call runs against the chromedp
// target of base while honoring cancellation of the ctx passed to it.
func NewCDPPage(base context.Context) *CDPPage {
	return &CDPPage{ctx: base}
}

// bind returns a context carrying the chromedp target that is cancelled
// when either ctx or the session ends.
func (p *CDPPage) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	if chromedp.FromContext(ctx) != nil {
		return context.WithCancel(ctx)
	}
	bound, cancel := context.WithCancel(p.ctx)
	stop := context.AfterFunc(ctx, cancel)
	return bound, func() {
		stop()
		cancel()
	}
}

func (p *CDPPage) run(ctx context.Context, actions ...chromedp.Action) error {
	bound, cancel := p.bind(ctx)
	defer cancel()
	return chromedp.Run(bound, actions...)
}

func (p *CDPPage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *CDPPage) Location(ctx context.Context) (string, error) {
	var url string
	if err := p.run(ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

func (p *CDPPage) Title(ctx context.Context) (string, error) {
	var title string
	if err := p.run(ctx, chromedp.Title(&title)); err != nil {
		return "", err
	}
	return title, nil
}

func (p *CDPPage) PressKey(ctx context.Context, key string) error {
	return p.run(ctx, chromedp.KeyEvent(key))
}

func (p *CDPPage) WaitPresent(ctx context.Context, sel Selector, timeout time.Duration) error {
	return p.wait(ctx, sel, timeout, chromedp.WaitReady(sel.Query, sel.queryOption()))
}

func (p *CDPPage) WaitVisible(ctx context.Context, sel Selector, timeout time.Duration) error {
	return p.wait(ctx, sel, timeout, chromedp.WaitVisible(sel.Query, sel.queryOption()))
}

func (p *CDPPage) wait(ctx context.Context, sel Selector, timeout time.Duration, action chromedp.Action) error {
	bound, cancel := p.bind(ctx)
	defer cancel()

	tctx, tcancel := context.WithTimeout(bound, timeout)
	defer tcancel()

	err := chromedp.Run(tctx, action)
	if err != nil && errors.Is(tctx.Err(), context.DeadlineExceeded) && bound.Err() == nil {
		return fmt.Errorf("%w after %v: %s", ErrTimeout, timeout, sel)
	}
	return err
}

func (p *CDPPage) Exists(ctx context.Context, sel Selector) (bool, error) {
	var nodes []*cdp.Node
	if err := p.run(ctx, chromedp.Nodes(sel.Query, &nodes, sel.queryOption(), chromedp.AtLeast(0))); err != nil {
		return false, err
	}
	return len(nodes) > 0, nil
}

func (p *CDPPage) Click(ctx context.Context, sel Selector) error {
	return p.callOn(ctx, sel, `function() { this.click(); }`)
}

func (p *CDPPage) ScrollIntoView(ctx context.Context, sel Selector) error {
	return p.callOn(ctx, sel, `function() { this.scrollIntoView({block: 'center'}); }`)
}

func (p *CDPPage) ScrollBy(ctx context.Context, sel Selector, dy int) error {
	return p.callOn(ctx, sel, `function(dy) { this.scrollTop += dy; }`, dy)
}

func (p *CDPPage) SetValue(ctx context.Context, sel Selector, value string) error {
	return p.callOn(ctx, sel, `function(v) {
		this.value = v;
		this.dispatchEvent(new Event('change', {bubbles: true}));
	}`, value)
}

func (p *CDPPage) Type(ctx context.Context, sel Selector, text string, delay time.Duration) error {
	if text == KeyEnter || text == KeyEscape {
		return p.run(ctx, chromedp.SendKeys(sel.Query, text, sel.queryOption()))
	}
	if err := p.run(ctx, chromedp.Clear(sel.Query, sel.queryOption())); err != nil {
		return fmt.Errorf("clear %s: %w", sel, err)
	}
	for _, r := range text {
		if err := p.run(ctx, chromedp.SendKeys(sel.Query, string(r), sel.queryOption())); err != nil {
			return fmt.Errorf("type into %s: %w", sel, err)
		}
		if delay > 0 {
			if err := sleep(ctx, delay); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *CDPPage) OuterHTML(ctx context.Context, sel Selector) (string, error) {
	var html string
	err := p.withNode(ctx, sel, func(ctx context.Context, n *cdp.Node) error {
		var err error
		html, err = dom.GetOuterHTML().WithNodeID(n.NodeID).Do(ctx)
		return err
	})
	return html, err
}

func (p *CDPPage) callOn(ctx context.Context, sel Selector, fn string, args ...interface{}) error {
	return p.withNode(ctx, sel, func(ctx context.Context, n *cdp.Node) error {
		obj, err := dom.ResolveNode().WithNodeID(n.NodeID).Do(ctx)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", sel, err)
		}
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()
		return chromedp.CallFunctionOn(fn, nil, func(params *runtime.CallFunctionOnParams) *runtime.CallFunctionOnParams {
			return params.WithObjectID(obj.ObjectID)
		}, args...).Do(ctx)
	})
}

// withNode resolves the first match of sel without waiting and runs fn on it.
func (p *CDPPage) withNode(ctx context.Context, sel Selector, fn func(context.Context, *cdp.Node) error) error {
	var nodes []*cdp.Node
	if err := p.run(ctx, chromedp.Nodes(sel.Query, &nodes, sel.queryOption(), chromedp.AtLeast(0))); err != nil {
		return err
	}
	if len(nodes) == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, sel)
	}
	node := nodes[0]
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return fn(ctx, node)
	}))
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Pause is a cancellable settle delay for UI transitions.
func Pause(ctx context.Context, d time.Duration) error {
	return sleep(ctx, d)
}
