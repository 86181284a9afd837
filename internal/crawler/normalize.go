package crawler

import (
	"net/url"
	"strings"
)

// Normalize returns the canonical form of a URL used for deduplication.
//
// A trailing "/" is removed, and a trailing "/#" left behind by hash routers
// is removed after that. Both rules are applied until the value stops
// changing, so Normalize(Normalize(u)) == Normalize(u) holds for every input,
// including degenerate ones such as "https://example.com//".
//
// Normalize never fails. Input that is not a valid URL passes through with
// only the suffix rules applied.
func Normalize(rawURL string) string {
	current := rawURL
	for {
		next := strings.TrimSuffix(current, "/")
		next = strings.TrimSuffix(next, "/#")
		if next == current {
			return current
		}
		current = next
	}
}

// Resolve resolves href against base and returns the canonical absolute URL.
// It returns false when either value cannot be parsed or href is empty.
func Resolve(base, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	return Normalize(baseURL.ResolveReference(ref).String()), true
}
