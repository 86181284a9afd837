package crawler

import (
	"context"
	"time"
)

// Browser is a render collaborator able to open pages.
// One Browser serves exactly one crawl run; runs never share a Browser.
type Browser interface {
	// NewPage opens a new page (tab). Errors are treated as fatal for the run.
	NewPage(ctx context.Context) (Page, error)

	// Close releases the browser and every page it opened.
	Close() error
}

// Page is a single rendered document that can be navigated and queried.
// All calls are blocking and issued from one goroutine.
type Page interface {
	// Goto loads rawURL and waits for it to finish loading. If loading takes
	// longer than timeout the returned error wraps ErrNavigationTimeout.
	Goto(ctx context.Context, rawURL string, timeout time.Duration) error

	// QueryAll returns every element matching the CSS selector. No match is
	// not an error.
	QueryAll(ctx context.Context, selector string) ([]Element, error)

	// CurrentURL returns the URL currently shown by the page.
	CurrentURL(ctx context.Context) (string, error)

	// GoBack moves one step back in the page history.
	GoBack(ctx context.Context) error

	// Close closes the page.
	Close() error
}

// Element is a handle to a DOM element returned by Page.QueryAll.
// A handle may go stale when the page re-renders; its methods then return an
// error wrapping ErrElementInteraction.
type Element interface {
	// Attribute returns the value of the named attribute and whether it is
	// present.
	Attribute(ctx context.Context, name string) (string, bool, error)

	// IsVisible reports whether the element intersects the viewport.
	IsVisible(ctx context.Context) (bool, error)

	// Click triggers the element's click handler.
	Click(ctx context.Context) error
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
