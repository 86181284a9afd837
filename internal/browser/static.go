package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/nao1215/clickcrawl/internal/crawler"
)

// defaultMaxBodySize limits how much of a response the static renderer parses.
const defaultMaxBodySize int64 = 10 * 1024 * 1024

// StaticBrowser renders pages by fetching them over HTTP and parsing the HTML
// with goquery. It runs no scripts: links and simple location assignments in
// click handlers are followed, every other click is a no-op.
type StaticBrowser struct {
	// client performs the HTTP requests.
	client *http.Client

	// userAgent is sent with every request when non-empty.
	userAgent string

	// maxBodySize caps the bytes read per response.
	maxBodySize int64

	// clickTimeout bounds navigations triggered by Element.Click.
	clickTimeout time.Duration

	logger *slog.Logger
}

// StaticOption configures a StaticBrowser.
type StaticOption func(*StaticBrowser)

// WithHTTPClient sets the HTTP client, for example one routed through a proxy.
func WithHTTPClient(client *http.Client) StaticOption {
	return func(b *StaticBrowser) {
		if client != nil {
			b.client = client
		}
	}
}

// WithStaticUserAgent sets the User-Agent header.
func WithStaticUserAgent(ua string) StaticOption {
	return func(b *StaticBrowser) {
		b.userAgent = ua
	}
}

// WithMaxBodySize caps the bytes read per response.
func WithMaxBodySize(size int64) StaticOption {
	return func(b *StaticBrowser) {
		if size > 0 {
			b.maxBodySize = size
		}
	}
}

// WithClickTimeout bounds navigations triggered by clicking a link.
func WithClickTimeout(timeout time.Duration) StaticOption {
	return func(b *StaticBrowser) {
		b.clickTimeout = timeout
	}
}

// WithStaticLogger sets the logger.
func WithStaticLogger(logger *slog.Logger) StaticOption {
	return func(b *StaticBrowser) {
		b.logger = logger
	}
}

// NewStatic creates a static renderer.
func NewStatic(opts ...StaticOption) *StaticBrowser {
	b := &StaticBrowser{
		client:       &http.Client{Timeout: 30 * time.Second},
		maxBodySize:  defaultMaxBodySize,
		clickTimeout: 15 * time.Second,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewPage opens an empty page.
func (b *StaticBrowser) NewPage(_ context.Context) (crawler.Page, error) {
	return &staticPage{browser: b}, nil
}

// Close releases idle connections.
func (b *StaticBrowser) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

// staticDocument is one loaded entry of a page's history.
type staticDocument struct {
	url string
	doc *goquery.Document
}

// staticPage keeps a history stack of parsed documents. Going back restores
// the previous document without fetching it again.
type staticPage struct {
	browser *StaticBrowser
	history []*staticDocument
}

func (p *staticPage) Goto(ctx context.Context, rawURL string, timeout time.Duration) error {
	doc, err := p.fetch(ctx, rawURL, timeout)
	if err != nil {
		return err
	}
	p.history = append(p.history, doc)
	return nil
}

// fetch loads rawURL and parses it. Redirects are followed, so the document
// URL is the final one. Non-HTML responses yield an empty document.
func (p *staticPage) fetch(ctx context.Context, rawURL string, timeout time.Duration) (*staticDocument, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", rawURL, err)
	}
	if p.browser.userAgent != "" {
		req.Header.Set("User-Agent", p.browser.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := p.browser.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s after %s", crawler.ErrNavigationTimeout, rawURL, timeout)
		}
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.browser.maxBodySize))
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s after %s", crawler.ErrNavigationTimeout, rawURL, timeout)
		}
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}

	finalURL := resp.Request.URL.String()
	p.browser.logger.Debug("page fetched",
		"url", finalURL,
		"status", resp.StatusCode,
		"content_type", resp.Header.Get("Content-Type"),
		"bytes", len(body),
	)

	if !isHTML(resp.Header.Get("Content-Type"), body) {
		body = nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", finalURL, err)
	}
	return &staticDocument{url: finalURL, doc: doc}, nil
}

// QueryAll returns the elements of the current document matching selector.
func (p *staticPage) QueryAll(_ context.Context, selector string) ([]crawler.Element, error) {
	current := p.current()
	if current == nil {
		return nil, nil
	}

	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}

	elements := make([]crawler.Element, 0)
	current.doc.FindMatcher(matcher).Each(func(_ int, s *goquery.Selection) {
		elements = append(elements, &staticElement{page: p, doc: current, sel: s})
	})
	return elements, nil
}

func (p *staticPage) CurrentURL(_ context.Context) (string, error) {
	if current := p.current(); current != nil {
		return current.url, nil
	}
	return "about:blank", nil
}

func (p *staticPage) GoBack(_ context.Context) error {
	if len(p.history) < 2 {
		return errors.New("no previous page in history")
	}
	p.history = p.history[:len(p.history)-1]
	return nil
}

func (p *staticPage) Close() error {
	p.history = nil
	return nil
}

func (p *staticPage) current() *staticDocument {
	if len(p.history) == 0 {
		return nil
	}
	return p.history[len(p.history)-1]
}

// staticElement is a node of one loaded document. It goes stale once the
// page shows another document.
type staticElement struct {
	page *staticPage
	doc  *staticDocument
	sel  *goquery.Selection
}

func (e *staticElement) Attribute(_ context.Context, name string) (string, bool, error) {
	if err := e.checkAttached(); err != nil {
		return "", false, err
	}
	value, ok := e.sel.Attr(name)
	return value, ok, nil
}

// IsVisible reports false when the element or an ancestor is hidden by the
// hidden attribute, an inline display or visibility style, or is a hidden
// input. Without layout information everything else counts as visible.
func (e *staticElement) IsVisible(_ context.Context) (bool, error) {
	if err := e.checkAttached(); err != nil {
		return false, err
	}
	if goquery.NodeName(e.sel) == "input" && strings.EqualFold(e.sel.AttrOr("type", ""), "hidden") {
		return false, nil
	}

	for s := e.sel; s.Length() > 0; s = s.Parent() {
		if _, hidden := s.Attr("hidden"); hidden {
			return false, nil
		}
		if s.AttrOr("aria-hidden", "") == "true" {
			return false, nil
		}
		if hiddenStyle(s.AttrOr("style", "")) {
			return false, nil
		}
	}
	return true, nil
}

// Click follows the element's href, its data-href, or a literal location
// assignment in its onclick handler. Anything else needs a script runtime and
// does nothing.
func (e *staticElement) Click(ctx context.Context) error {
	if err := e.checkAttached(); err != nil {
		return err
	}

	href := clickTarget(e.sel)
	if href == "" {
		return nil
	}

	target, ok := crawler.Resolve(e.doc.url, href)
	if !ok || !strings.HasPrefix(target, "http") {
		return nil
	}

	if sameDocument(e.doc.url, target) {
		// Fragment-only change: no fetch, the document stays the same.
		e.page.history = append(e.page.history, &staticDocument{url: target, doc: e.doc.doc})
		return nil
	}

	doc, err := e.page.fetch(ctx, target, e.page.browser.clickTimeout)
	if err != nil {
		return fmt.Errorf("%w: follow %s: %v", crawler.ErrElementInteraction, target, err)
	}
	e.page.history = append(e.page.history, doc)
	return nil
}

func (e *staticElement) checkAttached() error {
	if e.page.current() == nil || e.page.current().doc != e.doc.doc {
		return fmt.Errorf("%w: element belongs to a previous document", crawler.ErrElementInteraction)
	}
	return nil
}

// locationAssignPattern matches literal navigations such as
// location.href='/x', window.location = "/x" and location.assign('/x').
var locationAssignPattern = regexp.MustCompile(
	`location(?:\.href)?\s*=\s*['"]([^'"]+)['"]|location\.(?:assign|replace)\(\s*['"]([^'"]+)['"]\s*\)`,
)

// clickTarget returns the URL a click on s would open without scripts.
func clickTarget(s *goquery.Selection) string {
	if goquery.NodeName(s) == "a" {
		if href, ok := s.Attr("href"); ok {
			return href
		}
	}
	if href, ok := s.Attr("data-href"); ok {
		return href
	}
	if m := locationAssignPattern.FindStringSubmatch(s.AttrOr("onclick", "")); m != nil {
		if m[1] != "" {
			return m[1]
		}
		return m[2]
	}
	return ""
}

// sameDocument reports whether a and b differ only in their fragment.
func sameDocument(a, b string) bool {
	strip := func(s string) string {
		if i := strings.IndexByte(s, '#'); i >= 0 {
			return s[:i]
		}
		return s
	}
	return crawler.Normalize(strip(a)) == crawler.Normalize(strip(b))
}

// hiddenStyle reports whether an inline style hides the element.
func hiddenStyle(style string) bool {
	compact := strings.ToLower(strings.Join(strings.Fields(style), ""))
	return strings.Contains(compact, "display:none") || strings.Contains(compact, "visibility:hidden")
}

// isHTML reports whether a response should be parsed as HTML.
func isHTML(contentType string, body []byte) bool {
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

// isTimeout reports whether err is a deadline or network timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
