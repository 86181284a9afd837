package model

import (
	"fmt"
	"time"
)

// FailureKind classifies a problem met during a crawl run.
type FailureKind int

const (
	// FailureNavigationTimeout indicates a page did not finish loading within
	// the navigation timeout. The URL is marked visited and skipped.
	FailureNavigationTimeout FailureKind = iota

	// FailureNavigation indicates a page load failed for a reason other than
	// a timeout (DNS error, refused connection, aborted load).
	FailureNavigation

	// FailureElementInteraction indicates reading, probing or clicking an
	// element failed. The action signature is treated as exhausted.
	FailureElementInteraction

	// FailureSessionFatal indicates the browser session became unusable.
	// The run stops and keeps what it discovered so far.
	FailureSessionFatal
)

// failureKindNames maps kinds to their stable wire names.
var failureKindNames = map[FailureKind]string{
	FailureNavigationTimeout:  "navigation_timeout",
	FailureNavigation:         "navigation",
	FailureElementInteraction: "element_interaction",
	FailureSessionFatal:       "session_fatal",
}

// FailureKinds lists every kind in severity order, least severe first.
func FailureKinds() []FailureKind {
	return []FailureKind{
		FailureNavigationTimeout,
		FailureNavigation,
		FailureElementInteraction,
		FailureSessionFatal,
	}
}

// String returns the wire name of the kind.
func (k FailureKind) String() string {
	if name, ok := failureKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the kind by name so stored results stay readable.
func (k FailureKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind from its name.
func (k *FailureKind) UnmarshalText(text []byte) error {
	for kind, name := range failureKindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown failure kind %q", string(text))
}

// Failure records one recoverable or fatal problem of a run.
type Failure struct {
	// Kind classifies the failure.
	Kind FailureKind `json:"kind"`

	// URL is the page being processed when the failure happened.
	URL string `json:"url"`

	// Action is the action signature involved, if any.
	Action string `json:"action,omitempty"`

	// Message is the underlying error text.
	Message string `json:"message"`

	// Time is when the failure was recorded.
	Time time.Time `json:"time"`
}

// Action records one triggered click handler.
type Action struct {
	// Signature identifies the handler; it is the click attribute value.
	Signature string `json:"signature"`

	// PageURL is the canonical URL the handler was triggered on.
	PageURL string `json:"page_url"`

	// ResultURL is the canonical page URL observed after the settle delay.
	ResultURL string `json:"result_url,omitempty"`

	// Navigated is true when the click changed the page URL.
	Navigated bool `json:"navigated"`

	// Enqueued is true when the resulting URL was new and added to the frontier.
	Enqueued bool `json:"enqueued"`
}
