// Package browsertest provides an in-memory browser.Page for tests.
//
// FakePage serves HTML documents from a route table and evaluates hints
// with goquery, so code written against browser.Page can be exercised
// without Chrome. Clicking an element follows its href or data-href;
// pressing Enter inside a form follows the form action.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/arrestscan/internal/browser"
	"github.com/nao1215/arrestscan/internal/config"
)

// ErrNoRoute is returned when navigating to a URL without a document.
var ErrNoRoute = errors.New("no route")

// FakePage is a goquery-backed browser.Page.
type FakePage struct {
	// Routes maps absolute URLs (without fragment) to HTML documents.
	Routes map[string]string

	// Responses are returned by JSONResponses.
	Responses []browser.Response

	// NavigateErrs are returned, one per call, by the first Navigate calls.
	NavigateErrs []error

	mu       sync.Mutex
	current  string
	doc      *goquery.Document
	visited  []string
	clicks   []string
	slept    time.Duration
	closed   bool
	navCalls int
}

var _ browser.Page = (*FakePage)(nil)

// NewFakePage returns a FakePage serving routes.
func NewFakePage(routes map[string]string) *FakePage {
	return &FakePage{Routes: routes}
}

func (p *FakePage) load(target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return err
	}
	u.Fragment = ""
	key := u.String()
	html, ok := p.Routes[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoRoute, key)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return err
	}
	p.current = key
	p.doc = doc
	p.visited = append(p.visited, key)
	return nil
}

func (p *FakePage) resolve(ref string) string {
	base, err := url.Parse(p.current)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(r).String()
}

func (p *FakePage) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.closed {
		return browser.ErrClosed
	}
	return nil
}

// find returns the selection matching h in the current document.
func (p *FakePage) find(h config.Hint) *goquery.Selection {
	if p.doc == nil {
		return &goquery.Selection{}
	}
	sel := p.doc.Find(h.CSS)
	if h.Text == "" {
		return sel
	}
	needle := strings.ToLower(h.Text)
	return sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			text, _ = s.Attr("value")
		}
		return strings.Contains(strings.ToLower(text), needle)
	})
}

func enabled(s *goquery.Selection) bool {
	if s.Length() == 0 {
		return false
	}
	if _, disabled := s.Attr("disabled"); disabled {
		return false
	}
	if v, _ := s.Attr("aria-disabled"); v == "true" {
		return false
	}
	if s.HasClass("disabled") || s.Closest("li").HasClass("disabled") {
		return false
	}
	return true
}

// Navigate loads a route.
func (p *FakePage) Navigate(ctx context.Context, target string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return err
	}
	p.navCalls++
	if p.navCalls <= len(p.NavigateErrs) {
		if err := p.NavigateErrs[p.navCalls-1]; err != nil {
			return err
		}
	}
	return p.load(target)
}

// WaitReady succeeds once a document is loaded.
func (p *FakePage) WaitReady(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return err
	}
	if p.doc == nil {
		return fmt.Errorf("wait ready: %w", browser.ErrTimeout)
	}
	return nil
}

// Sleep records the requested duration without waiting.
func (p *FakePage) Sleep(ctx context.Context, d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.slept += d
	return ctx.Err()
}

// Count returns the number of elements matching h.
func (p *FakePage) Count(ctx context.Context, h config.Hint) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return 0, err
	}
	return p.find(h).Length(), nil
}

// SetValue stores value in the element's value attribute.
func (p *FakePage) SetValue(ctx context.Context, h config.Hint, index int, value string, onlyIfEmpty bool) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return false, err
	}
	el := p.find(h).Eq(index)
	if el.Length() == 0 {
		return false, nil
	}
	if cur, _ := el.Attr("value"); onlyIfEmpty && cur != "" {
		return false, nil
	}
	el.SetAttr("value", value)
	return true, nil
}

// Value returns the element's value attribute.
func (p *FakePage) Value(ctx context.Context, h config.Hint, index int) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return "", err
	}
	v, _ := p.find(h).Eq(index).Attr("value")
	return v, nil
}

// Click follows href or data-href of the first enabled match. A link to
// an unknown route leaves the page unchanged.
func (p *FakePage) Click(ctx context.Context, h config.Hint) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return false, err
	}
	var target *goquery.Selection
	p.find(h).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if enabled(s) {
			target = s
			return false
		}
		return true
	})
	if target == nil {
		return false, nil
	}
	p.clicks = append(p.clicks, h.String())

	ref, ok := target.Attr("href")
	if !ok {
		ref, ok = target.Attr("data-href")
	}
	if !ok {
		if form := target.Closest("form"); form.Length() > 0 {
			ref, ok = p.formTarget(form)
		}
	}
	if ok && ref != "" && !strings.HasPrefix(ref, "#") {
		_ = p.load(p.resolve(ref))
	}
	return true, nil
}

// PressEnter submits the enclosing form of the first match.
func (p *FakePage) PressEnter(ctx context.Context, h config.Hint) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return false, err
	}
	el := p.find(h).First()
	if el.Length() == 0 {
		return false, nil
	}
	p.clicks = append(p.clicks, "enter:"+h.String())
	if form := el.Closest("form"); form.Length() > 0 {
		if ref, ok := p.formTarget(form); ok {
			_ = p.load(p.resolve(ref))
		}
	}
	return true, nil
}

// formTarget builds a GET URL from the form action and its input values.
func (p *FakePage) formTarget(form *goquery.Selection) (string, bool) {
	action, ok := form.Attr("action")
	if !ok {
		return "", false
	}
	q := url.Values{}
	form.Find("input[name]").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		v, _ := s.Attr("value")
		q.Set(name, v)
	})
	if len(q) == 0 {
		return action, true
	}
	return action + "?" + q.Encode(), true
}

// Enabled reports whether the first match is enabled.
func (p *FakePage) Enabled(ctx context.Context, h config.Hint) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return false, err
	}
	return enabled(p.find(h).First()), nil
}

// Attr returns an attribute of the first match.
func (p *FakePage) Attr(ctx context.Context, h config.Hint, name string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return "", false, err
	}
	v, ok := p.find(h).First().Attr(name)
	return v, ok, nil
}

// HTML serializes the current document.
func (p *FakePage) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx); err != nil {
		return "", err
	}
	if p.doc == nil {
		return "", nil
	}
	return p.doc.Html()
}

// URL returns the current route.
func (p *FakePage) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.check(ctx)
}

// JSONResponses returns Responses.
func (p *FakePage) JSONResponses() []browser.Response {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]browser.Response(nil), p.Responses...)
}

// Close marks the page closed.
func (p *FakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Visited returns every loaded route in order.
func (p *FakePage) Visited() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.visited...)
}

// Clicks returns the hints that were clicked or received Enter.
func (p *FakePage) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

// Slept returns the total duration passed to Sleep.
func (p *FakePage) Slept() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slept
}

// Closed reports whether Close was called.
func (p *FakePage) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Opener hands out pages built by New and remembers them.
type Opener struct {
	// New builds the page for the n-th call, starting at 0.
	New func(n int) *FakePage
	// Err, when set, is returned instead of a page.
	Err error

	mu    sync.Mutex
	pages []*FakePage
}

var _ browser.Opener = (*Opener)(nil)

// NewPage returns the next fake page.
func (o *Opener) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if o.Err != nil {
		return nil, o.Err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	p := o.New(len(o.pages))
	o.pages = append(o.pages, p)
	return p, nil
}

// Pages returns the pages handed out so far.
func (o *Opener) Pages() []*FakePage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*FakePage(nil), o.pages...)
}
