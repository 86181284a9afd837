package crawler

import (
	"errors"
	"time"

	"github.com/nao1215/clickcrawl/internal/model"
)

// ActionSet holds the action signatures already triggered during a run.
// It is shared by every page of the run, so a handler that appears on many
// pages fires once.
type ActionSet struct {
	set map[string]bool
}

// NewActionSet creates an empty ActionSet.
func NewActionSet() *ActionSet {
	return &ActionSet{set: make(map[string]bool)}
}

// Add marks signature as executed. It reports false if it already was.
func (a *ActionSet) Add(signature string) bool {
	if a.set[signature] {
		return false
	}
	a.set[signature] = true
	return true
}

// Contains reports whether signature was executed.
func (a *ActionSet) Contains(signature string) bool {
	return a.set[signature]
}

// Len returns the number of executed signatures.
func (a *ActionSet) Len() int {
	return len(a.set)
}

// CrawlState is the mutable state of one crawl run.
// A fresh value is created for every start URL and is only touched by the
// engine and driver of that run.
type CrawlState struct {
	// StartURL is the canonical start URL.
	StartURL string

	// Scope bounds the run to the start URL's authority.
	Scope *Scope

	// Filter applies ignore and follow patterns; nil allows all.
	Filter *PathFilter

	// Visited holds fully processed URLs.
	Visited *VisitedSet

	// Frontier holds URLs awaiting a visit.
	Frontier *Frontier

	// Provenance records the discovering parent of each URL.
	Provenance *Provenance

	// Actions holds executed action signatures.
	Actions *ActionSet

	actionLog []model.Action
	failures  []model.Failure
}

// StateOption configures a CrawlState.
type StateOption func(*CrawlState)

// WithPathFilter restricts the frontier with ignore and follow patterns.
func WithPathFilter(filter *PathFilter) StateOption {
	return func(s *CrawlState) {
		s.Filter = filter
	}
}

// NewCrawlState creates the state for a run starting at startURL.
// The start URL is normalized but not yet queued; call Seed for that.
func NewCrawlState(startURL string, opts ...StateOption) (*CrawlState, error) {
	start := Normalize(startURL)
	scope, err := NewScope(start)
	if err != nil {
		return nil, err
	}

	visited := NewVisitedSet()
	provenance := NewProvenance()

	s := &CrawlState{
		StartURL:   start,
		Scope:      scope,
		Visited:    visited,
		Frontier:   NewFrontier(visited, provenance),
		Provenance: provenance,
		Actions:    NewActionSet(),
		actionLog:  make([]model.Action, 0),
		failures:   make([]model.Failure, 0),
	}

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Seed queues the start URL as the root of the provenance graph.
// Patterns do not apply to the start URL.
func (s *CrawlState) Seed() {
	s.Frontier.Enqueue(s.StartURL, "")
}

// Offer queues rawURL with parent as its discoverer if it is in scope,
// allowed by the path filter, and not yet visited. It reports whether the
// URL was newly queued.
func (s *CrawlState) Offer(rawURL, parent string) bool {
	u := Normalize(rawURL)
	if !s.Scope.InScope(u) || !s.Filter.Allow(u) {
		return false
	}
	if s.Visited.Contains(u) {
		return false
	}
	return s.Frontier.Enqueue(u, parent)
}

// RecordAction appends a triggered action to the run log.
func (s *CrawlState) RecordAction(action model.Action) {
	s.actionLog = append(s.actionLog, action)
}

// RecordFailure appends a failure derived from err to the run log.
func (s *CrawlState) RecordFailure(pageURL, action string, err error) {
	s.failures = append(s.failures, model.Failure{
		Kind:    failureKindOf(err),
		URL:     pageURL,
		Action:  action,
		Message: err.Error(),
		Time:    time.Now(),
	})
}

// ActionLog returns the triggered actions in order.
func (s *CrawlState) ActionLog() []model.Action {
	return append([]model.Action(nil), s.actionLog...)
}

// Failures returns the recorded failures in order.
func (s *CrawlState) Failures() []model.Failure {
	return append([]model.Failure(nil), s.failures...)
}

// Fill copies the discovery graph of the visited URLs into result.
// URLs that were discovered but never visited appear in Pending and in
// RawProvenance only.
func (s *CrawlState) Fill(result *model.CrawlResult) {
	visited := s.Visited.List()
	snapshot := s.Provenance.Snapshot()

	provenance := make(map[string]*string, len(visited))
	for _, u := range visited {
		provenance[u] = snapshot[u]
	}

	result.StartURL = s.StartURL
	result.Origin = s.Scope.Authority()
	result.Visited = visited
	result.Provenance = provenance
	result.RawProvenance = snapshot
	result.Paths = s.Provenance.Paths(visited)
	result.Pending = s.Frontier.Pending()
	result.Actions = s.ActionLog()
	result.Failures = append(result.Failures, s.Failures()...)
}

// isFatal reports whether err must stop the run.
func isFatal(err error) bool {
	return errors.Is(err, ErrSessionFatal)
}
