package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/nao1215/clickcrawl/internal/crawler"
)

// isVisibleJS scrolls the element into view and reports whether it then has
// a box that intersects the viewport and is not hidden by style.
const isVisibleJS = `function() {
	if (!this.isConnected) { return false; }
	if (this.scrollIntoViewIfNeeded) { this.scrollIntoViewIfNeeded(true); } else { this.scrollIntoView({block: "center"}); }
	const style = window.getComputedStyle(this);
	if (style.display === "none" || style.visibility === "hidden" || style.visibility === "collapse") { return false; }
	const r = this.getBoundingClientRect();
	if (r.width <= 0 || r.height <= 0) { return false; }
	return r.bottom > 0 && r.right > 0 && r.top < window.innerHeight && r.left < window.innerWidth;
}`

// clickJS dispatches a click from script, used when a mouse click fails.
const clickJS = `function() { this.click(); return true; }`

// ChromeBrowser renders pages in a headless (or headed) Chrome controlled
// through the DevTools protocol with chromedp.
type ChromeBrowser struct {
	// browserCtx is the chromedp context of the browser process.
	browserCtx context.Context

	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc

	// headers are sent with every request of every page.
	headers network.Headers

	logger *slog.Logger
}

// chromeConfig collects ChromeOption values before the browser starts.
type chromeConfig struct {
	headless   bool
	execPath   string
	proxyURL   string
	userAgent  string
	noSandbox  bool
	width      int
	height     int
	headers    map[string]string
	cookie     string
	logger     *slog.Logger
	extraFlags map[string]any
}

// ChromeOption configures a ChromeBrowser.
type ChromeOption func(*chromeConfig)

// WithHeadless toggles headless mode. Headless is the default.
func WithHeadless(headless bool) ChromeOption {
	return func(c *chromeConfig) {
		c.headless = headless
	}
}

// WithExecPath sets the Chrome or Chromium executable. Empty means look it up
// on PATH.
func WithExecPath(path string) ChromeOption {
	return func(c *chromeConfig) {
		c.execPath = path
	}
}

// WithProxyURL routes the browser through a proxy such as socks5://host:port.
func WithProxyURL(proxyURL string) ChromeOption {
	return func(c *chromeConfig) {
		c.proxyURL = proxyURL
	}
}

// WithChromeUserAgent overrides the browser User-Agent.
func WithChromeUserAgent(ua string) ChromeOption {
	return func(c *chromeConfig) {
		c.userAgent = ua
	}
}

// WithNoSandbox disables the Chrome sandbox, needed when running as root in
// containers.
func WithNoSandbox(noSandbox bool) ChromeOption {
	return func(c *chromeConfig) {
		c.noSandbox = noSandbox
	}
}

// WithWindowSize sets the viewport size used for visibility checks.
func WithWindowSize(width, height int) ChromeOption {
	return func(c *chromeConfig) {
		if width > 0 && height > 0 {
			c.width, c.height = width, height
		}
	}
}

// WithChromeHeaders sets extra HTTP headers and a raw Cookie header value
// sent with every request.
func WithChromeHeaders(headers map[string]string, cookie string) ChromeOption {
	return func(c *chromeConfig) {
		c.headers = headers
		c.cookie = cookie
	}
}

// WithChromeFlag passes an extra command line switch to Chrome.
func WithChromeFlag(name string, value any) ChromeOption {
	return func(c *chromeConfig) {
		c.extraFlags[name] = value
	}
}

// WithChromeLogger sets the logger. chromedp's own messages are logged at
// debug level.
func WithChromeLogger(logger *slog.Logger) ChromeOption {
	return func(c *chromeConfig) {
		c.logger = logger
	}
}

// NewChrome starts a browser process and waits until it accepts commands.
// The process lives until Close is called; ctx only bounds the startup.
func NewChrome(ctx context.Context, opts ...ChromeOption) (*ChromeBrowser, error) {
	cfg := &chromeConfig{
		headless:   true,
		width:      1366,
		height:     900,
		logger:     slog.Default(),
		extraFlags: make(map[string]any),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.headless),
		chromedp.DisableGPU,
		chromedp.WindowSize(cfg.width, cfg.height),
	)
	if cfg.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(cfg.execPath))
	}
	if cfg.proxyURL != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(cfg.proxyURL))
	}
	if cfg.userAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(cfg.userAgent))
	}
	if cfg.noSandbox {
		allocOpts = append(allocOpts, chromedp.NoSandbox)
	}
	for name, value := range cfg.extraFlags {
		allocOpts = append(allocOpts, chromedp.Flag(name, value))
	}

	logger := cfg.logger
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...), "source", "chromedp")
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...), "source", "chromedp")
		}),
	)

	b := &ChromeBrowser{
		browserCtx:    browserCtx,
		allocCancel:   allocCancel,
		browserCancel: browserCancel,
		headers:       buildHeaders(cfg.headers, cfg.cookie),
		logger:        logger,
	}

	// The first Run on a fresh context launches the process.
	startCtx, cancel := context.WithCancel(browserCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(startCtx); err != nil {
		_ = b.Close() //nolint:errcheck // startup already failed
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: start chrome: %v", crawler.ErrSessionFatal, err)
	}

	logger.Debug("chrome started", "headless", cfg.headless, "proxy", cfg.proxyURL != "")
	return b, nil
}

// buildHeaders merges headers and cookie into DevTools header form.
func buildHeaders(headers map[string]string, cookie string) network.Headers {
	if len(headers) == 0 && cookie == "" {
		return nil
	}
	h := make(network.Headers, len(headers)+1)
	for k, v := range headers {
		h[k] = v
	}
	if cookie != "" {
		h["Cookie"] = cookie
	}
	return h
}

// NewPage opens a new tab.
func (b *ChromeBrowser) NewPage(ctx context.Context) (crawler.Page, error) {
	if err := b.browserCtx.Err(); err != nil {
		return nil, fmt.Errorf("%w: browser closed", crawler.ErrSessionFatal)
	}

	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)
	p := &chromePage{ctx: tabCtx, cancel: tabCancel, logger: b.logger}

	actions := []chromedp.Action{network.Enable()}
	if b.headers != nil {
		actions = append(actions, network.SetExtraHTTPHeaders(b.headers))
	}
	if err := p.run(ctx, actions...); err != nil {
		tabCancel()
		return nil, fmt.Errorf("%w: open tab: %v", crawler.ErrSessionFatal, err)
	}
	return p, nil
}

// Close terminates the browser process.
func (b *ChromeBrowser) Close() error {
	b.browserCancel()
	b.allocCancel()
	return nil
}

// chromePage is one browser tab.
type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

// run executes actions on the tab. The actions stop when ctx is done. A dead
// tab is reported as ErrSessionFatal.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	if p.ctx.Err() != nil {
		return fmt.Errorf("%w: %v", crawler.ErrSessionFatal, err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *chromePage) Goto(ctx context.Context, rawURL string, timeout time.Duration) error {
	navCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err := p.run(navCtx, chromedp.Navigate(rawURL))
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, crawler.ErrSessionFatal), ctx.Err() != nil:
		return err
	case errors.Is(navCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %s after %s", crawler.ErrNavigationTimeout, rawURL, timeout)
	default:
		return fmt.Errorf("navigate to %s: %w", rawURL, err)
	}
}

func (p *chromePage) QueryAll(ctx context.Context, selector string) ([]crawler.Element, error) {
	var nodes []*cdp.Node
	if err := p.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, err
	}

	elements := make([]crawler.Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, &chromeElement{page: p, node: n})
	}
	return elements, nil
}

func (p *chromePage) CurrentURL(ctx context.Context) (string, error) {
	var u string
	if err := p.run(ctx, chromedp.Location(&u)); err != nil {
		return "", err
	}
	return u, nil
}

// GoBack triggers history.back() without waiting for a load event, since
// client-side route changes never fire one. Callers settle afterwards.
func (p *chromePage) GoBack(ctx context.Context) error {
	return p.run(ctx, chromedp.Evaluate(`history.back()`, nil))
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}

// chromeElement is a DOM node returned by a query. Attributes are those
// captured at query time.
type chromeElement struct {
	page *chromePage
	node *cdp.Node
}

func (e *chromeElement) Attribute(_ context.Context, name string) (string, bool, error) {
	value, ok := e.node.Attribute(name)
	return value, ok, nil
}

func (e *chromeElement) IsVisible(ctx context.Context) (bool, error) {
	var visible bool
	if err := e.callOn(ctx, isVisibleJS, &visible); err != nil {
		return false, err
	}
	return visible, nil
}

func (e *chromeElement) Click(ctx context.Context) error {
	err := e.page.run(ctx, chromedp.MouseClickNode(e.node))
	if err == nil {
		return nil
	}
	if errors.Is(err, crawler.ErrSessionFatal) || ctx.Err() != nil {
		return err
	}

	e.page.logger.Debug("mouse click failed, dispatching script click", "error", err)
	var ok bool
	return e.callOn(ctx, clickJS, &ok)
}

// callOn runs fn with the element bound to this and stores its result in res.
func (e *chromeElement) callOn(ctx context.Context, fn string, res any) error {
	err := e.page.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(e.node.NodeID).Do(ctx)
		if err != nil {
			return err
		}
		defer func() {
			_ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) //nolint:errcheck // best effort
		}()

		return chromedp.CallFunctionOn(fn, res, func(p *runtime.CallFunctionOnParams) *runtime.CallFunctionOnParams {
			return p.WithObjectID(obj.ObjectID)
		}).Do(ctx)
	}))
	if err == nil {
		return nil
	}
	if errors.Is(err, crawler.ErrSessionFatal) || ctx.Err() != nil {
		return err
	}
	return fmt.Errorf("%w: %v", crawler.ErrElementInteraction, err)
}
