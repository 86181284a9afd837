// Package model defines the data structures shared across clickcrawl.
//
// This package contains the following main types:
//   - CrawlResult: the outcome of crawling one start URL
//   - Failure and FailureKind: problems recorded during a run
//   - Action: a triggered click handler and what it led to
//   - RunDiff: the difference between two stored runs of one origin
//
// The crawler, pipeline, report and database packages all exchange these
// types, so they live in their own package to avoid import cycles.
// Every type is serializable to JSON for reports and database storage.
package model
