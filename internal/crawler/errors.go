package crawler

import (
	"errors"

	"github.com/nao1215/clickcrawl/internal/model"
)

// Crawl errors.
// Render collaborators wrap these sentinels so the engine can tell
// recoverable failures from fatal ones with errors.Is.
var (
	// ErrNavigationTimeout is returned by Page.Goto when the page did not
	// load within the navigation timeout. The engine skips the URL.
	ErrNavigationTimeout = errors.New("navigation timeout")

	// ErrElementInteraction is returned when reading, probing or clicking an
	// element fails, for example because the node was detached by a
	// re-render. The action signature is treated as exhausted.
	ErrElementInteraction = errors.New("element interaction failed")

	// ErrSessionFatal is returned when the browser session is no longer
	// usable. The run stops; other runs are unaffected.
	ErrSessionFatal = errors.New("browser session lost")

	// ErrInvalidStartURL is returned when a start URL has no host.
	ErrInvalidStartURL = errors.New("invalid start URL")
)

// failureKindOf maps an error to the failure kind recorded in the result.
func failureKindOf(err error) model.FailureKind {
	switch {
	case errors.Is(err, ErrSessionFatal):
		return model.FailureSessionFatal
	case errors.Is(err, ErrNavigationTimeout):
		return model.FailureNavigationTimeout
	case errors.Is(err, ErrElementInteraction):
		return model.FailureElementInteraction
	default:
		return model.FailureNavigation
	}
}
