// Package browser provides the render collaborators used by the crawl engine.
//
// ChromeBrowser drives a real Chrome through chromedp, so client-side
// frameworks run and their click handlers can change the route.
// StaticBrowser fetches pages over HTTP and queries them with goquery. It runs
// no scripts, which makes it fast and useful for server-rendered sites and
// tests, but it only follows links and literal location assignments.
//
// Both wrap their failures in the crawler package's sentinel errors so the
// engine can tell a slow page from a dead session.
package browser
