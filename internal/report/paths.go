package report

import (
	"slices"
	"strings"

	"github.com/nao1215/clickcrawl/internal/model"
)

// PathEntry is one visited URL with its root-to-URL discovery path.
type PathEntry struct {
	URL  string
	Path []string
}

// Depth is the number of hops from the root.
func (e PathEntry) Depth() int {
	if len(e.Path) == 0 {
		return 0
	}
	return len(e.Path) - 1
}

// PathEntries returns the discovery path of every visited URL, in visit
// order. Paths missing from result.Paths are rebuilt from the provenance map.
func PathEntries(result *model.CrawlResult) []PathEntry {
	entries := make([]PathEntry, 0, len(result.Visited))
	for _, u := range result.Visited {
		path, ok := result.Paths[u]
		if !ok {
			path = pathFromProvenance(result, u)
		}
		entries = append(entries, PathEntry{URL: u, Path: path})
	}
	return entries
}

// pathFromProvenance walks parents up to a root, stopping at cycles.
func pathFromProvenance(result *model.CrawlResult, u string) []string {
	path := []string{u}
	seen := map[string]bool{u: true}
	for current := u; ; {
		parent := result.ParentOf(current)
		if parent == "" || seen[parent] {
			break
		}
		seen[parent] = true
		path = append(path, parent)
		current = parent
	}
	slices.Reverse(path)
	return path
}

// FormatPath joins a path for display, as in "a -> b -> c".
func FormatPath(path []string) string {
	return strings.Join(path, " -> ")
}

// FileStem returns the file name stem for an origin: the host with ":"
// replaced by "_", so "localhost:8080" becomes "localhost_8080".
func FileStem(origin string) string {
	stem := strings.ReplaceAll(strings.ToLower(origin), ":", "_")
	stem = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '?', '*', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, stem)
	if stem == "" {
		return "unknown"
	}
	return stem
}

// shortLabel trims the origin from u so graph nodes stay readable.
func shortLabel(origin, u string) string {
	_, rest, found := strings.Cut(u, "://")
	if !found {
		return u
	}
	if strings.EqualFold(rest, origin) {
		return "/"
	}
	if len(rest) > len(origin) && strings.EqualFold(rest[:len(origin)], origin) {
		return rest[len(origin):]
	}
	return rest
}
