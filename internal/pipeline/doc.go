// Package pipeline runs crawl steps in sequence for each start URL.
//
// A typical pipeline crawls the start URL, then writes the provenance
// artifact, renders reports, prints the summary table and saves the run to
// the history database. The writing steps are finalizers: they also run
// after an interrupt, so a cancelled crawl still leaves its partial graph
// behind.
//
// BatchProcessor crawls several start URLs concurrently with errgroup; each
// run has its own pipeline, browser and crawl state.
package pipeline
