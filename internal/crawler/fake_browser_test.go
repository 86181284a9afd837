package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// discardLogger returns a logger that drops everything.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClickable describes an element carrying click attributes.
type fakeClickable struct {
	attrs    map[string]string
	hidden   bool
	navigate string
	replace  bool
	clickErr error
	visibleErr error
	attrErr  error
}

// fakePageContent describes the content of one fake page.
type fakePageContent struct {
	links      []string
	clickables []*fakeClickable
}

// fakeSite is an in-memory application served by fakeBrowser.
type fakeSite struct {
	pages      map[string]*fakePageContent
	timeouts   map[string]bool
	gotoErrs   map[string]error
	newPageErr error
	onGoto     func(url string)
}

func newFakeSite() *fakeSite {
	return &fakeSite{
		pages:    make(map[string]*fakePageContent),
		timeouts: make(map[string]bool),
		gotoErrs: make(map[string]error),
	}
}

// page registers a page and returns its content for further setup.
func (s *fakeSite) page(url string, links ...string) *fakePageContent {
	content := &fakePageContent{links: links}
	s.pages[Normalize(url)] = content
	return content
}

// click adds a clickable element to the page.
func (p *fakePageContent) click(c *fakeClickable) *fakePageContent {
	p.clickables = append(p.clickables, c)
	return p
}

// fakeBrowser implements Browser over a fakeSite.
type fakeBrowser struct {
	site   *fakeSite
	opened []*fakePage
	closed bool
}

func (b *fakeBrowser) NewPage(_ context.Context) (Page, error) {
	if b.site.newPageErr != nil {
		return nil, b.site.newPageErr
	}
	p := &fakePage{site: b.site}
	b.opened = append(b.opened, p)
	return p, nil
}

func (b *fakeBrowser) Close() error {
	b.closed = true
	return nil
}

// fakePage implements Page and logs every interaction in events.
type fakePage struct {
	site    *fakeSite
	history []string
	events  []string
	closed  bool
}

func (p *fakePage) Goto(_ context.Context, rawURL string, _ time.Duration) error {
	p.events = append(p.events, "goto "+rawURL)
	if p.site.onGoto != nil {
		p.site.onGoto(rawURL)
	}
	key := Normalize(rawURL)
	if p.site.timeouts[key] {
		return fmt.Errorf("%w: %s", ErrNavigationTimeout, rawURL)
	}
	if err := p.site.gotoErrs[key]; err != nil {
		return err
	}
	p.history = append(p.history, rawURL)
	return nil
}

func (p *fakePage) QueryAll(_ context.Context, selector string) ([]Element, error) {
	content := p.site.pages[Normalize(p.current())]
	if content == nil {
		return nil, nil
	}

	elements := make([]Element, 0)
	if selector == linkSelector {
		for _, href := range content.links {
			elements = append(elements, &fakeElement{page: p, href: href})
		}
		return elements, nil
	}
	for _, c := range content.clickables {
		elements = append(elements, &fakeElement{page: p, clickable: c})
	}
	return elements, nil
}

func (p *fakePage) CurrentURL(_ context.Context) (string, error) {
	return p.current(), nil
}

func (p *fakePage) GoBack(_ context.Context) error {
	p.events = append(p.events, "back")
	if len(p.history) < 2 {
		return errors.New("no history entry")
	}
	p.history = p.history[:len(p.history)-1]
	return nil
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

func (p *fakePage) current() string {
	if len(p.history) == 0 {
		return "about:blank"
	}
	return p.history[len(p.history)-1]
}

// clicks returns the click events in order.
func (p *fakePage) clicks() []string {
	clicks := make([]string, 0)
	for _, e := range p.events {
		if len(e) > 6 && e[:6] == "click " {
			clicks = append(clicks, e[6:])
		}
	}
	return clicks
}

// fakeElement implements Element for links and clickables.
type fakeElement struct {
	page      *fakePage
	href      string
	clickable *fakeClickable
}

func (e *fakeElement) Attribute(_ context.Context, name string) (string, bool, error) {
	if e.clickable == nil {
		if name == "href" {
			return e.href, true, nil
		}
		return "", false, nil
	}
	if e.clickable.attrErr != nil {
		return "", false, e.clickable.attrErr
	}
	v, ok := e.clickable.attrs[name]
	return v, ok, nil
}

func (e *fakeElement) IsVisible(_ context.Context) (bool, error) {
	if e.clickable == nil {
		return true, nil
	}
	if e.clickable.visibleErr != nil {
		return false, e.clickable.visibleErr
	}
	return !e.clickable.hidden, nil
}

func (e *fakeElement) Click(_ context.Context) error {
	label := e.href
	if e.clickable != nil {
		for _, v := range e.clickable.attrs {
			label = v
		}
	}
	e.page.events = append(e.page.events, "click "+label)

	if e.clickable == nil {
		return nil
	}
	if e.clickable.clickErr != nil {
		return e.clickable.clickErr
	}
	if e.clickable.navigate != "" {
		if e.clickable.replace && len(e.page.history) > 0 {
			e.page.history[len(e.page.history)-1] = e.clickable.navigate
		} else {
			e.page.history = append(e.page.history, e.clickable.navigate)
		}
	}
	return nil
}
