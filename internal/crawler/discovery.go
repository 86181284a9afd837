package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/nao1215/clickcrawl/internal/model"
)

// DefaultClickAttributes are the attributes that mark an element as carrying
// a client-side click handler, checked in this order.
var DefaultClickAttributes = []string{
	"ng-click",
	"click",
	"onclick",
	"@click",
	"v-on:click",
	"x-on:click",
}

// linkSelector matches static links.
const linkSelector = "a[href]"

// SignatureFunc derives the action signature of an element from the name and
// value of its click attribute. An empty signature skips the element.
type SignatureFunc func(attribute, value string) string

// RawSignature uses the attribute value unchanged, so handlers with the same
// expression fire once per run.
func RawSignature(_, value string) string {
	return strings.TrimSpace(value)
}

// handlerCallPattern captures the function name of "name(args)".
var handlerCallPattern = regexp.MustCompile(`^\s*([^(]+?)\s*\((.*)\)`)

// HandlerNameSignature uses only the called function name, so "open(1)" and
// "open(2)" share one signature. Values that are not a call are skipped.
func HandlerNameSignature(_, value string) string {
	m := handlerCallPattern.FindStringSubmatch(value)
	if m == nil {
		return ""
	}
	return m[1]
}

// Driver runs interactive discovery against one loaded page: it extracts
// static links and then triggers untried click handlers one at a time,
// returning the page to its previous URL whenever a click navigates away.
type Driver struct {
	// clickAttributes are the attribute names checked, in priority order.
	clickAttributes []string

	// signature derives action signatures from attribute values.
	signature SignatureFunc

	// settleDelay is waited after each click and each return navigation.
	settleDelay time.Duration

	// navTimeout bounds the navigation used to restore the page.
	navTimeout time.Duration

	// maxActions caps triggered actions per page; 0 means unlimited.
	maxActions int

	logger *slog.Logger
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithClickAttributes sets the attributes that mark clickable elements.
func WithClickAttributes(attrs []string) DriverOption {
	return func(d *Driver) {
		if len(attrs) > 0 {
			d.clickAttributes = attrs
		}
	}
}

// WithSignatureFunc sets how action signatures are derived.
func WithSignatureFunc(fn SignatureFunc) DriverOption {
	return func(d *Driver) {
		if fn != nil {
			d.signature = fn
		}
	}
}

// WithSettleDelay sets the wait after each click and return navigation.
func WithSettleDelay(delay time.Duration) DriverOption {
	return func(d *Driver) {
		d.settleDelay = delay
	}
}

// WithRestoreTimeout sets the navigation timeout used to restore the page.
func WithRestoreTimeout(timeout time.Duration) DriverOption {
	return func(d *Driver) {
		d.navTimeout = timeout
	}
}

// WithMaxActionsPerPage caps the actions triggered on one page.
func WithMaxActionsPerPage(n int) DriverOption {
	return func(d *Driver) {
		d.maxActions = n
	}
}

// WithDriverLogger sets the logger.
func WithDriverLogger(logger *slog.Logger) DriverOption {
	return func(d *Driver) {
		d.logger = logger
	}
}

// NewDriver creates a Driver with the default attributes, raw signatures,
// a 3 second settle delay and a 15 second restore timeout.
func NewDriver(opts ...DriverOption) *Driver {
	d := &Driver{
		clickAttributes: DefaultClickAttributes,
		signature:       RawSignature,
		settleDelay:     3 * time.Second,
		navTimeout:      15 * time.Second,
		logger:          slog.Default(),
	}

	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DiscoveryStats summarizes discovery on one page.
type DiscoveryStats struct {
	// LinksFound is the number of static links read.
	LinksFound int

	// LinksQueued is the number of static links newly queued.
	LinksQueued int

	// ActionsTriggered is the number of click handlers fired.
	ActionsTriggered int

	// ActionsQueued is the number of URLs newly queued through clicks.
	ActionsQueued int
}

// Explore runs static link extraction followed by the dynamic action loop on
// the page loaded for pageURL. Element level problems are recorded in state
// and do not stop exploration. The returned error is non-nil when the page
// could not be restored, the session was lost, or ctx was cancelled.
func (d *Driver) Explore(ctx context.Context, page Page, state *CrawlState, pageURL string) (DiscoveryStats, error) {
	var stats DiscoveryStats

	found, queued, err := d.ExtractLinks(ctx, page, state, pageURL)
	stats.LinksFound, stats.LinksQueued = found, queued
	if err != nil {
		return stats, err
	}

	triggered, actionQueued, err := d.DiscoverActions(ctx, page, state, pageURL)
	stats.ActionsTriggered, stats.ActionsQueued = triggered, actionQueued
	return stats, err
}

// ExtractLinks queues every in-scope, unvisited link of the page with
// pageURL as parent. Hrefs are resolved against the URL the page currently
// shows, which differs from pageURL after a redirect.
func (d *Driver) ExtractLinks(ctx context.Context, page Page, state *CrawlState, pageURL string) (found, queued int, err error) {
	base, err := page.CurrentURL(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: read page URL: %v", ErrSessionFatal, err)
	}

	anchors, err := page.QueryAll(ctx, linkSelector)
	if err != nil {
		return 0, 0, fmt.Errorf("query links on %s: %w", pageURL, err)
	}

	for _, anchor := range anchors {
		href, ok, err := anchor.Attribute(ctx, "href")
		if err != nil {
			d.logger.Debug("failed to read href", "url", pageURL, "error", err)
			continue
		}
		if !ok {
			continue
		}

		target, ok := Resolve(base, href)
		if !ok {
			continue
		}
		found++

		if state.Offer(target, pageURL) {
			queued++
			d.logger.Debug("queued link", "url", target, "parent", pageURL)
		}
	}
	return found, queued, nil
}

// DiscoverActions repeatedly scans the page for click targets and triggers
// the first visible one whose signature has not run yet. After every trigger
// the scan restarts from scratch, because a click may have changed the DOM.
// The loop ends when a full scan triggers nothing or the per-page cap is hit.
func (d *Driver) DiscoverActions(ctx context.Context, page Page, state *CrawlState, pageURL string) (triggered, queued int, err error) {
	selector := clickSelector(d.clickAttributes)

	for {
		if err := ctx.Err(); err != nil {
			return triggered, queued, err
		}
		if d.maxActions > 0 && triggered >= d.maxActions {
			d.logger.Debug("action cap reached", "url", pageURL, "max_actions", d.maxActions)
			return triggered, queued, nil
		}

		action, fired, err := d.triggerNext(ctx, page, state, pageURL, selector)
		if fired {
			triggered++
			if action.Enqueued {
				queued++
			}
			state.RecordAction(action)
		}
		if err != nil {
			return triggered, queued, err
		}
		if !fired {
			return triggered, queued, nil
		}
	}
}

// triggerNext fires the first eligible click target of one scan.
// fired is false when the scan found nothing to trigger.
func (d *Driver) triggerNext(ctx context.Context, page Page, state *CrawlState, pageURL, selector string) (action model.Action, fired bool, err error) {
	elements, err := page.QueryAll(ctx, selector)
	if err != nil {
		return action, false, fmt.Errorf("query click targets on %s: %w", pageURL, err)
	}

	for _, el := range elements {
		signature, err := d.signatureOf(ctx, el)
		if err != nil {
			state.RecordFailure(pageURL, "", err)
			d.logger.Debug("failed to read click attribute", "url", pageURL, "error", err)
			continue
		}
		if signature == "" || state.Actions.Contains(signature) {
			continue
		}

		visible, err := el.IsVisible(ctx)
		if err != nil {
			state.Actions.Add(signature)
			state.RecordFailure(pageURL, signature, err)
			d.logger.Warn("visibility check failed", "url", pageURL, "action", signature, "error", err)
			continue
		}
		if !visible {
			continue
		}

		action, err := d.trigger(ctx, page, state, el, pageURL, signature)
		return action, true, err
	}

	return action, false, nil
}

// trigger clicks el, waits for the page to settle and folds a resulting
// navigation into the frontier before returning the page to where it was.
func (d *Driver) trigger(ctx context.Context, page Page, state *CrawlState, el Element, pageURL, signature string) (model.Action, error) {
	action := model.Action{Signature: signature, PageURL: pageURL}

	before, err := page.CurrentURL(ctx)
	if err != nil {
		return action, fmt.Errorf("%w: read page URL: %v", ErrSessionFatal, err)
	}
	before = Normalize(before)

	state.Actions.Add(signature)
	d.logger.Debug("triggering action", "url", pageURL, "action", signature)

	if err := el.Click(ctx); err != nil {
		state.RecordFailure(pageURL, signature, err)
		d.logger.Warn("click failed", "url", pageURL, "action", signature, "error", err)
	}

	if err := sleepContext(ctx, d.settleDelay); err != nil {
		return action, err
	}

	after, err := page.CurrentURL(ctx)
	if err != nil {
		return action, fmt.Errorf("%w: read page URL: %v", ErrSessionFatal, err)
	}
	after = Normalize(after)
	action.ResultURL = after

	if after == before {
		return action, nil
	}

	action.Navigated = true
	if state.Offer(after, before) {
		action.Enqueued = true
		d.logger.Info("action discovered URL", "url", after, "parent", before, "action", signature)
	}

	return action, d.restore(ctx, page, before)
}

// restore returns the page to target, first through history and then, if
// the history step did not land there, by loading target directly.
func (d *Driver) restore(ctx context.Context, page Page, target string) error {
	if err := page.GoBack(ctx); err != nil {
		d.logger.Debug("history back failed", "target", target, "error", err)
	} else {
		if err := sleepContext(ctx, d.settleDelay); err != nil {
			return err
		}
		current, err := page.CurrentURL(ctx)
		if err != nil {
			return fmt.Errorf("%w: read page URL: %v", ErrSessionFatal, err)
		}
		if Normalize(current) == target {
			return nil
		}
	}

	if err := page.Goto(ctx, target, d.navTimeout); err != nil {
		return fmt.Errorf("return to %s: %w", target, err)
	}
	return sleepContext(ctx, d.settleDelay)
}

// signatureOf returns the signature of the first non-empty click attribute.
func (d *Driver) signatureOf(ctx context.Context, el Element) (string, error) {
	for _, attr := range d.clickAttributes {
		value, ok, err := el.Attribute(ctx, attr)
		if err != nil {
			return "", err
		}
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		return d.signature(attr, value), nil
	}
	return "", nil
}

// clickSelector builds a selector list matching any of attrs.
func clickSelector(attrs []string) string {
	parts := make([]string, 0, len(attrs))
	for _, attr := range attrs {
		parts = append(parts, "["+escapeCSSIdent(attr)+"]")
	}
	return strings.Join(parts, ",")
}

// escapeCSSIdent backslash-escapes characters that are not valid in a bare
// CSS identifier, such as the "@" and ":" of framework attributes.
func escapeCSSIdent(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}
