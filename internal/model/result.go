package model

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CrawlResult is the outcome of crawling one start URL.
// It is created before the run, filled by the crawl engine, and then handed
// read-only to the artifact, report and database steps.
type CrawlResult struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id"`

	// StartURL is the canonical start URL.
	StartURL string `json:"start_url"`

	// Origin is the host[:port] authority that bounds the crawl.
	Origin string `json:"origin"`

	// Renderer names the render collaborator used ("chrome" or "static").
	Renderer string `json:"renderer,omitempty"`

	// StartedAt and FinishedAt bracket the crawl itself.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Visited lists canonical URLs in the order they were processed.
	Visited []string `json:"visited"`

	// Provenance maps each discovered URL to its parent; roots map to nil.
	Provenance map[string]*string `json:"provenance"`

	// RawProvenance is the complete parent map of the run, including URLs
	// that were discovered but never visited. It is what the artifact holds.
	RawProvenance map[string]*string `json:"raw_provenance,omitempty"`

	// Paths maps each visited URL to its root-to-URL ancestor chain.
	Paths map[string][]string `json:"paths"`

	// Pending lists URLs still queued when the run stopped early.
	Pending []string `json:"pending,omitempty"`

	// Actions lists the click handlers that were triggered.
	Actions []Action `json:"actions,omitempty"`

	// Failures lists problems met during the run.
	Failures []Failure `json:"failures,omitempty"`

	// Cancelled is true when the run was interrupted before the frontier
	// emptied. The result then holds partial data.
	Cancelled bool `json:"cancelled"`

	// Truncated is true when the page limit stopped the run.
	Truncated bool `json:"truncated"`

	// Error is the fatal error that ended the run, if any.
	Error error `json:"-"`

	// ErrorMessage is the string form of Error for serialization.
	ErrorMessage string `json:"error,omitempty"`

	// PerformedSteps lists the pipeline steps that ran.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// Artifacts maps an artifact kind ("json", "html", "markdown") to the
	// file it was written to.
	Artifacts map[string]string `json:"artifacts,omitempty"`
}

// NewCrawlResult creates an empty result for startURL with a fresh run ID.
// The origin is derived from the URL host; it stays empty for input that has
// no host, which the engine rejects later.
func NewCrawlResult(startURL string) *CrawlResult {
	r := &CrawlResult{
		RunID:      uuid.NewString(),
		StartURL:   startURL,
		Visited:    make([]string, 0),
		Provenance: make(map[string]*string),
		Paths:      make(map[string][]string),
		Artifacts:  make(map[string]string),
	}
	if u, err := url.Parse(startURL); err == nil {
		r.Origin = strings.ToLower(u.Host)
	}
	return r
}

// Duration returns how long the crawl took.
// It returns zero if the run has not finished.
func (r *CrawlResult) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ParentOf returns the parent of url, or an empty string for roots and
// unknown URLs.
func (r *CrawlResult) ParentOf(url string) string {
	if parent := r.Provenance[url]; parent != nil {
		return *parent
	}
	return ""
}

// Edge is one visited URL together with its parent.
type Edge struct {
	URL    string `json:"url"`
	Parent string `json:"parent,omitempty"`
}

// Edges returns visited URLs with their parents in visitation order.
func (r *CrawlResult) Edges() []Edge {
	edges := make([]Edge, 0, len(r.Visited))
	for _, u := range r.Visited {
		edges = append(edges, Edge{URL: u, Parent: r.ParentOf(u)})
	}
	return edges
}

// AddFailure appends a failure stamped with the current time.
func (r *CrawlResult) AddFailure(kind FailureKind, pageURL, action, message string) {
	r.Failures = append(r.Failures, Failure{
		Kind:    kind,
		URL:     pageURL,
		Action:  action,
		Message: message,
		Time:    time.Now(),
	})
}

// FailureCounts returns the number of failures per kind.
func (r *CrawlResult) FailureCounts() map[FailureKind]int {
	counts := make(map[FailureKind]int)
	for _, f := range r.Failures {
		counts[f.Kind]++
	}
	return counts
}

// NavigatingActions returns the actions that changed the page URL.
func (r *CrawlResult) NavigatingActions() []Action {
	actions := make([]Action, 0)
	for _, a := range r.Actions {
		if a.Navigated {
			actions = append(actions, a)
		}
	}
	return actions
}

// SetError records a fatal error on the result.
func (r *CrawlResult) SetError(err error) {
	if err == nil {
		return
	}
	r.Error = err
	r.ErrorMessage = err.Error()
}

// Status returns a short human-readable state of the run.
func (r *CrawlResult) Status() string {
	switch {
	case r.ErrorMessage != "":
		return "failed"
	case r.Cancelled:
		return "cancelled"
	case r.Truncated:
		return "truncated"
	default:
		return "complete"
	}
}
