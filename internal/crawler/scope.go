package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// Scope decides whether a URL belongs to the crawl target.
// Only the authority (host and optional port) is compared; scheme and path
// are ignored, so http and https pages of the same host share one scope.
type Scope struct {
	// authority is the lower-cased host[:port] of the start URL.
	authority string
}

// NewScope captures the authority of startURL.
// It returns ErrInvalidStartURL if the URL has no host.
func NewScope(startURL string) (*Scope, error) {
	u, err := url.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStartURL, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q has no host", ErrInvalidStartURL, startURL)
	}

	return &Scope{authority: strings.ToLower(u.Host)}, nil
}

// InScope reports whether rawURL shares the origin authority.
// Unparseable URLs and URLs without a host are out of scope.
func (s *Scope) InScope(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}

	return strings.EqualFold(u.Host, s.authority)
}

// Authority returns the host[:port] the scope was built from.
func (s *Scope) Authority() string {
	return s.authority
}
