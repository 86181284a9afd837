package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/nao1215/clickcrawl/internal/model"
)

// Engine drives the breadth-first crawl of one origin.
// It pops URLs from the frontier, loads them through the render
// collaborator, and lets the Driver discover new URLs on each page.
type Engine struct {
	// browser is the render collaborator for this run.
	browser Browser

	// driver performs link extraction and click discovery.
	driver *Driver

	// navTimeout bounds each page load.
	navTimeout time.Duration

	// settleDelay is waited after each page load.
	settleDelay time.Duration

	// maxPages stops the run after this many visits; 0 means unlimited.
	maxPages int

	// limiter spaces page loads; nil disables rate limiting.
	limiter *rate.Limiter

	// filter restricts which URLs enter the frontier.
	filter *PathFilter

	logger *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithDriver sets the discovery driver.
func WithDriver(d *Driver) EngineOption {
	return func(e *Engine) {
		e.driver = d
	}
}

// WithNavigationTimeout sets the per-page load timeout.
func WithNavigationTimeout(timeout time.Duration) EngineOption {
	return func(e *Engine) {
		e.navTimeout = timeout
	}
}

// WithLoadSettleDelay sets the wait after each page load.
func WithLoadSettleDelay(delay time.Duration) EngineOption {
	return func(e *Engine) {
		e.settleDelay = delay
	}
}

// WithMaxPages stops the run after n visited pages. 0 means unlimited.
func WithMaxPages(n int) EngineOption {
	return func(e *Engine) {
		e.maxPages = n
	}
}

// WithRateLimit limits page loads to perSecond. Zero or less disables it.
func WithRateLimit(perSecond float64) EngineOption {
	return func(e *Engine) {
		if perSecond <= 0 {
			e.limiter = nil
			return
		}
		e.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithPatterns restricts the frontier with ignore and follow glob patterns.
func WithPatterns(ignore, follow []string) EngineOption {
	return func(e *Engine) {
		if len(ignore) == 0 && len(follow) == 0 {
			e.filter = nil
			return
		}
		e.filter = NewPathFilter(ignore, follow)
	}
}

// WithEngineLogger sets the logger.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an Engine over browser. The defaults are a 15 second
// navigation timeout, a 3 second settle delay, no page limit and no rate
// limit.
func NewEngine(browser Browser, opts ...EngineOption) *Engine {
	e := &Engine{
		browser:     browser,
		navTimeout:  15 * time.Second,
		settleDelay: 3 * time.Second,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.driver == nil {
		e.driver = NewDriver(
			WithSettleDelay(e.settleDelay),
			WithRestoreTimeout(e.navTimeout),
			WithDriverLogger(e.logger),
		)
	}
	return e
}

// Crawl runs a crawl from startURL and returns its result.
func (e *Engine) Crawl(ctx context.Context, startURL string) (*model.CrawlResult, error) {
	result := model.NewCrawlResult(startURL)
	err := e.Run(ctx, result)
	return result, err
}

// Run crawls from result.StartURL and fills result.
//
// The returned error is non-nil only if the start URL is invalid, the
// session was lost, or ctx was cancelled. In the last two cases result still
// holds everything discovered up to that point.
func (e *Engine) Run(ctx context.Context, result *model.CrawlResult) error {
	state, err := NewCrawlState(result.StartURL, WithPathFilter(e.filter))
	if err != nil {
		return err
	}

	result.StartedAt = time.Now()
	defer func() {
		state.Fill(result)
		result.FinishedAt = time.Now()
	}()

	page, err := e.browser.NewPage(ctx)
	if err != nil {
		err = fmt.Errorf("%w: open page: %v", ErrSessionFatal, err)
		state.RecordFailure(state.StartURL, "", err)
		return err
	}
	defer func() {
		if err := page.Close(); err != nil {
			e.logger.Debug("failed to close page", "error", err)
		}
	}()

	state.Seed()
	e.logger.Info("crawl started", "start_url", state.StartURL, "origin", state.Scope.Authority())

	for {
		if ctx.Err() != nil {
			result.Cancelled = true
			return ctx.Err()
		}
		if e.maxPages > 0 && state.Visited.Len() >= e.maxPages {
			pending := len(state.Frontier.Pending())
			result.Truncated = pending > 0
			e.logger.Info("page limit reached", "max_pages", e.maxPages, "pending", pending)
			return nil
		}

		pageURL, ok := state.Frontier.Dequeue()
		if !ok {
			return nil
		}

		if err := e.wait(ctx); err != nil {
			state.Frontier.Enqueue(pageURL, "")
			result.Cancelled = true
			return err
		}

		err := e.visit(ctx, page, state, pageURL)
		if ctx.Err() != nil {
			// The interrupted page was not fully processed; report it as pending.
			state.Frontier.Enqueue(pageURL, "")
			result.Cancelled = true
			return ctx.Err()
		}
		state.Visited.Add(pageURL)
		e.logVisit(state, pageURL)

		if err != nil && isFatal(err) {
			state.RecordFailure(pageURL, "", err)
			e.logger.Error("browser session lost", "url", pageURL, "error", err)
			return err
		}
	}
}

// visit loads pageURL and explores it. Recoverable failures are recorded in
// state and reported as nil; only fatal and cancellation errors are returned.
func (e *Engine) visit(ctx context.Context, page Page, state *CrawlState, pageURL string) error {
	if err := page.Goto(ctx, pageURL, e.navTimeout); err != nil {
		if ctx.Err() != nil || isFatal(err) {
			return err
		}
		state.RecordFailure(pageURL, "", err)
		if errors.Is(err, ErrNavigationTimeout) {
			e.logger.Warn("navigation timed out, skipping", "url", pageURL, "timeout", e.navTimeout)
		} else {
			e.logger.Warn("navigation failed, skipping", "url", pageURL, "error", err)
		}
		return nil
	}

	if err := sleepContext(ctx, e.settleDelay); err != nil {
		return err
	}

	stats, err := e.driver.Explore(ctx, page, state, pageURL)
	e.logger.Debug("page explored",
		"url", pageURL,
		"links_found", stats.LinksFound,
		"links_queued", stats.LinksQueued,
		"actions_triggered", stats.ActionsTriggered,
		"actions_queued", stats.ActionsQueued,
	)
	if err != nil {
		if ctx.Err() != nil || isFatal(err) {
			return err
		}
		state.RecordFailure(pageURL, "", err)
		e.logger.Warn("discovery ended early", "url", pageURL, "error", err)
	}
	return nil
}

// wait blocks until the rate limiter admits the next page load.
func (e *Engine) wait(ctx context.Context) error {
	if e.limiter == nil {
		return nil
	}
	return e.limiter.Wait(ctx)
}

// logVisit logs the visited URL, its parent and its discovery path.
func (e *Engine) logVisit(state *CrawlState, pageURL string) {
	parent, _ := state.Provenance.ParentOf(pageURL)
	path := strings.Join(state.Provenance.PathTo(pageURL), " -> ")

	if parent == "" {
		e.logger.Info("visited URL", "url", pageURL, "path", path)
		return
	}
	e.logger.Info("visited URL", "url", pageURL, "parent", parent, "path", path)
}
