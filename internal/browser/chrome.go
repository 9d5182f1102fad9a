package browser

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Default browser settings.
const (
	DefaultTimeout      = 60 * time.Second
	DefaultWindowWidth  = 1920
	DefaultWindowHeight = 1080
)

// options holds the settings applied by Option functions.
type options struct {
	headless    bool
	noSandbox   bool
	execPath    string
	userAgent   string
	timeout     time.Duration
	width       int
	height      int
	jsonPattern *regexp.Regexp
	logger      *slog.Logger
}

// Option configures a Browser.
type Option func(*options)

// WithHeadless runs Chrome without a window. It is on by default.
func WithHeadless(headless bool) Option {
	return func(o *options) { o.headless = headless }
}

// WithNoSandbox disables the Chrome sandbox, which most containers require.
func WithNoSandbox(noSandbox bool) Option {
	return func(o *options) { o.noSandbox = noSandbox }
}

// WithExecPath uses a specific Chrome or Chromium binary.
func WithExecPath(path string) Option {
	return func(o *options) { o.execPath = path }
}

// WithUserAgent overrides the user agent, hiding "HeadlessChrome".
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// WithTimeout sets the budget of each navigation or wait.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithWindowSize sets the viewport.
func WithWindowSize(width, height int) Option {
	return func(o *options) {
		if width > 0 && height > 0 {
			o.width, o.height = width, height
		}
	}
}

// WithJSONCapture keeps JSON responses whose URL matches pattern.
func WithJSONCapture(pattern *regexp.Regexp) Option {
	return func(o *options) { o.jsonPattern = pattern }
}

// WithLogger sets the logger for browser diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Browser is a running Chrome process.
type Browser struct {
	opts          options
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// New starts Chrome. The returned Browser must be closed. ctx bounds the
// launch only; the process lives until Close.
func New(ctx context.Context, opts ...Option) (*Browser, error) {
	o := options{
		headless: true,
		timeout:  DefaultTimeout,
		width:    DefaultWindowWidth,
		height:   DefaultWindowHeight,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(o)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			o.logger.Debug(fmt.Sprintf(format, args...), "component", "chromedp")
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			o.logger.Debug(fmt.Sprintf(format, args...), "component", "chromedp")
		}),
	)

	b := &Browser{
		opts:          o,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}

	// Running with no actions starts the process and opens the first tab.
	if err := runDetached(ctx, browserCtx, o.timeout); err != nil {
		b.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrLaunch, wrapErr(ctx, "launch", err))
	}

	o.logger.Debug("browser started", "headless", o.headless, "exec_path", o.execPath)
	return b, nil
}

// allocatorOptions builds the Chrome command line.
func allocatorOptions(o options) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", o.headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("lang", "en-US"),
		chromedp.WindowSize(o.width, o.height),
	)
	if o.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(o.userAgent))
	}
	if o.noSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if o.execPath != "" {
		opts = append(opts, chromedp.ExecPath(o.execPath))
	}
	return opts
}

// NewPage opens a new tab.
func (b *Browser) NewPage(ctx context.Context) (Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)
	p := &chromePage{
		ctx:         tabCtx,
		cancel:      tabCancel,
		timeout:     b.opts.timeout,
		jsonPattern: b.opts.jsonPattern,
		logger:      b.opts.logger,
	}

	var actions []chromedp.Action
	if p.jsonPattern != nil {
		p.listen()
		actions = append(actions, network.Enable())
	}
	if err := runDetached(ctx, tabCtx, b.opts.timeout, actions...); err != nil {
		tabCancel()
		return nil, wrapErr(ctx, "open tab", err)
	}
	return p, nil
}

// runDetached runs actions on a chromedp context whose first Run allocates
// a browser or a tab. Such a context must not carry a deadline of its own,
// so the wait is bounded from outside and cdpCtx is left to its owner to
// cancel on failure.
func runDetached(ctx, cdpCtx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	errc := make(chan error, 1)
	go func() { errc <- chromedp.Run(cdpCtx, actions...) }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return context.DeadlineExceeded
	}
}

// Version returns the product string of the running browser.
func (b *Browser) Version(ctx context.Context) (string, error) {
	var product string
	runCtx, cancel := context.WithTimeout(b.browserCtx, b.opts.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, chromedp.Evaluate(`navigator.userAgent`, &product))
	return product, wrapErr(ctx, "version", err)
}

// Close terminates Chrome and every open tab.
func (b *Browser) Close() {
	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
}
