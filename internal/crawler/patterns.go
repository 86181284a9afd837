package crawler

import (
	"net/url"
	"path/filepath"
	"strings"
)

// PathFilter restricts which in-scope URLs are allowed into the frontier.
// Patterns are glob expressions matched against the URL path, or against
// the fragment for hash-routed applications ("#/admin/users" is matched as
// "/admin/users").
type PathFilter struct {
	// ignore lists patterns that exclude a URL.
	ignore []string

	// follow, when non-empty, lists the only patterns a URL may match.
	follow []string
}

// NewPathFilter creates a filter from ignore and follow patterns.
// A nil *PathFilter allows everything.
func NewPathFilter(ignore, follow []string) *PathFilter {
	return &PathFilter{ignore: ignore, follow: follow}
}

// Allow reports whether rawURL passes the ignore and follow patterns.
//
// Logic:
//  1. If any route of the URL matches an ignore pattern, reject it
//  2. If follow patterns are set and no route matches one, reject it
//  3. Otherwise allow it
func (f *PathFilter) Allow(rawURL string) bool {
	if f == nil || (len(f.ignore) == 0 && len(f.follow) == 0) {
		return true
	}

	routes := routesOf(rawURL)
	if routes == nil {
		return false
	}

	for _, pattern := range f.ignore {
		for _, route := range routes {
			if matchPattern(pattern, route) {
				return false
			}
		}
	}

	if len(f.follow) == 0 {
		return true
	}
	for _, pattern := range f.follow {
		for _, route := range routes {
			if matchPattern(pattern, route) {
				return true
			}
		}
	}
	return false
}

// routesOf returns the path of rawURL plus the client-side route held in its
// fragment, if any. It returns nil if rawURL cannot be parsed.
func routesOf(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	routes := []string{path}

	if strings.HasPrefix(u.Fragment, "/") {
		route, _, _ := strings.Cut(u.Fragment, "?")
		routes = append(routes, route)
	}
	return routes
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//   - a trailing "/*" to match everything below a prefix
//
// Examples:
//   - "/admin/*" matches "/admin", "/admin/users", "/admin/users/1"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		ext := strings.TrimPrefix(pattern, "*")
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// Bare file patterns ("logout*") are matched against the last segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(path))
		if err == nil && matched {
			return true
		}
	}

	return false
}
