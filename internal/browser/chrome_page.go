package browser

import (
	"context"
	"log/slog"
	"mime"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/nao1215/arrestscan/internal/config"
)

// chromePage is a Page backed by a chromedp tab.
type chromePage struct {
	ctx         context.Context
	cancel      context.CancelFunc
	timeout     time.Duration
	jsonPattern *regexp.Regexp
	logger      *slog.Logger

	mu        sync.Mutex
	pending   map[network.RequestID]string
	responses []Response
	closed    bool
}

var _ Page = (*chromePage)(nil)

// run executes actions with the page timeout. The deadline is derived from
// the tab context, so hitting it ends the Run but keeps the tab open.
func (p *chromePage) run(ctx context.Context, op string, actions ...chromedp.Action) error {
	if p.isClosed() {
		return ErrClosed
	}
	runCtx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return wrapErr(ctx, op, chromedp.Run(runCtx, actions...))
}

func (p *chromePage) eval(ctx context.Context, op, script string, res any) error {
	return p.run(ctx, op, chromedp.Evaluate(script, res))
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	p.logger.Debug("navigate", "url", url)
	return p.run(ctx, "navigate", chromedp.Navigate(url))
}

func (p *chromePage) WaitReady(ctx context.Context) error {
	var ready bool
	return p.run(ctx, "wait ready",
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Poll(readyScript, &ready, chromedp.WithPollingInterval(100*time.Millisecond)),
	)
}

func (p *chromePage) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *chromePage) Count(ctx context.Context, h config.Hint) (int, error) {
	var n int
	err := p.eval(ctx, "count "+h.String(), countScript(h), &n)
	return n, err
}

func (p *chromePage) SetValue(ctx context.Context, h config.Hint, index int, value string, onlyIfEmpty bool) (bool, error) {
	var ok bool
	err := p.eval(ctx, "set value "+h.String(), setValueScript(h, index, value, onlyIfEmpty), &ok)
	return ok, err
}

func (p *chromePage) Value(ctx context.Context, h config.Hint, index int) (string, error) {
	var v string
	err := p.eval(ctx, "value "+h.String(), valueScript(h, index), &v)
	return v, err
}

func (p *chromePage) Click(ctx context.Context, h config.Hint) (bool, error) {
	var ok bool
	err := p.eval(ctx, "click "+h.String(), clickScript(h), &ok)
	return ok, err
}

func (p *chromePage) PressEnter(ctx context.Context, h config.Hint) (bool, error) {
	var focused bool
	if err := p.eval(ctx, "focus "+h.String(), focusScript(h), &focused); err != nil || !focused {
		return false, err
	}
	if err := p.run(ctx, "press enter", chromedp.KeyEvent(kb.Enter)); err != nil {
		return false, err
	}
	return true, nil
}

func (p *chromePage) Enabled(ctx context.Context, h config.Hint) (bool, error) {
	var ok bool
	err := p.eval(ctx, "enabled "+h.String(), enabledScript(h), &ok)
	return ok, err
}

func (p *chromePage) Attr(ctx context.Context, h config.Hint, name string) (string, bool, error) {
	var res attrResult
	err := p.eval(ctx, "attr "+h.String(), attrScript(h, name), &res)
	return res.Value, res.Found, err
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.eval(ctx, "html", htmlScript, &html)
	return html, err
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	var loc string
	err := p.run(ctx, "location", chromedp.Location(&loc))
	return loc, err
}

// JSONResponses returns the captured payloads. Bodies still being fetched
// when it is called are not included.
func (p *chromePage) JSONResponses() []Response {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Response(nil), p.responses...)
}

func (p *chromePage) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()
	return nil
}

func (p *chromePage) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// listen records JSON responses whose URL matches the capture pattern.
// The body is only available once loading finished, so the request ID is
// remembered between the two events. The listener must not block, so the
// body is fetched in its own goroutine.
func (p *chromePage) listen() {
	p.pending = make(map[network.RequestID]string)

	chromedp.ListenTarget(p.ctx, func(ev any) {
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			if e.Response == nil || !isJSON(e.Response.MimeType) || !p.jsonPattern.MatchString(e.Response.URL) {
				return
			}
			p.mu.Lock()
			p.pending[e.RequestID] = e.Response.URL
			p.mu.Unlock()

		case *network.EventLoadingFinished:
			p.mu.Lock()
			url, ok := p.pending[e.RequestID]
			delete(p.pending, e.RequestID)
			p.mu.Unlock()
			if ok {
				go p.fetchBody(e.RequestID, url)
			}
		}
	})
}

func (p *chromePage) fetchBody(id network.RequestID, url string) {
	c := chromedp.FromContext(p.ctx)
	if c == nil || c.Target == nil {
		return
	}
	ctx, cancel := context.WithTimeout(cdp.WithExecutor(p.ctx, c.Target), p.timeout)
	defer cancel()

	body, err := network.GetResponseBody(id).Do(ctx)
	if err != nil {
		p.logger.Debug("failed to read JSON response body", "url", url, "error", err)
		return
	}

	p.mu.Lock()
	p.responses = append(p.responses, Response{URL: url, Body: body})
	p.mu.Unlock()
	p.logger.Debug("captured JSON response", "url", url, "bytes", len(body))
}

func isJSON(mimeType string) bool {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mt = mimeType
	}
	mt = strings.ToLower(mt)
	return mt == "application/json" || strings.HasSuffix(mt, "+json") || mt == "text/json"
}
