// Package main provides the entry point for the clickcrawl CLI.
//
// clickcrawl crawls single-page applications by following links and by
// clicking every element that carries a click handler, recording for each
// discovered URL the page that led to it.
//
// Usage:
//
//	clickcrawl crawl https://app.example.com
//	clickcrawl history app.example.com
//
// See --help for all available options.
package main

// main is the entry point for clickcrawl.
func main() {
	Execute()
}
