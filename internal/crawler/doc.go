// Package crawler implements the interactive crawl engine.
//
// # Architecture
//
// A crawl run starts from one URL and stays within that URL's authority
// (host and port). All state of a run lives in a CrawlState created for it:
//
//   - VisitedSet: canonical URLs that were fully processed
//   - Frontier: FIFO queue of URLs awaiting a visit
//   - Provenance: the parent that first discovered each URL
//   - ActionSet: click handler signatures already triggered in the run
//
// Every URL is canonicalized by Normalize when it enters any of these
// structures, so "/a" and "/a/" are the same page.
//
// # Discovery
//
// For every page the Engine loads, the Driver first queues the page's static
// links and then repeatedly scans for elements carrying a click attribute
// (ng-click, onclick, ...). It triggers the first visible element whose
// signature has not run yet, waits for the page to settle, and compares the
// URL with the one before the click. A changed URL is queued with the
// pre-click URL as its parent and the page is returned to where it was. The
// scan then restarts, and discovery on the page ends when a full scan finds
// nothing left to trigger.
//
// # Render collaborators
//
// The engine only depends on the Browser, Page and Element interfaces.
// The browser package provides a headless Chrome implementation and a static
// HTML implementation.
//
// # Usage
//
//	engine := crawler.NewEngine(browser, crawler.WithMaxPages(200))
//	result, err := engine.Crawl(ctx, "https://app.example.com/")
package crawler
