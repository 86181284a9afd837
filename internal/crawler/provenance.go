package crawler

// Provenance records which page led to the discovery of each URL.
// Every key and parent is stored in canonical form. The first recorded
// parent of a URL is kept; later discoveries of the same URL are ignored.
type Provenance struct {
	// parents maps a canonical URL to its discovering parent.
	// An empty parent marks a root (start URL).
	parents map[string]string

	// order holds URLs in the order they were first recorded.
	order []string
}

// NewProvenance creates an empty provenance graph.
func NewProvenance() *Provenance {
	return &Provenance{
		parents: make(map[string]string),
		order:   make([]string, 0),
	}
}

// RecordParent stores parent as the discoverer of url unless url already has
// an entry. Pass an empty parent for a root. It reports whether an entry was
// created.
func (p *Provenance) RecordParent(url, parent string) bool {
	url = Normalize(url)
	if _, ok := p.parents[url]; ok {
		return false
	}
	if parent != "" {
		parent = Normalize(parent)
	}

	p.parents[url] = parent
	p.order = append(p.order, url)
	return true
}

// ParentOf returns the recorded parent of url. The boolean is false when url
// is unknown. A known root returns ("", true).
func (p *Provenance) ParentOf(url string) (string, bool) {
	parent, ok := p.parents[Normalize(url)]
	return parent, ok
}

// Has reports whether url has a provenance entry.
func (p *Provenance) Has(url string) bool {
	_, ok := p.parents[Normalize(url)]
	return ok
}

// Len returns the number of recorded URLs.
func (p *Provenance) Len() int {
	return len(p.parents)
}

// PathTo returns the ancestor chain of url ordered from root to url.
// The walk stops at a root, at an unknown parent, or when a URL repeats, so
// the result is finite even if the recorded parents form a cycle.
// An unknown url yields a single-element path.
func (p *Provenance) PathTo(url string) []string {
	url = Normalize(url)

	seen := map[string]bool{url: true}
	reversed := []string{url}

	current := url
	for {
		parent, ok := p.parents[current]
		if !ok || parent == "" || seen[parent] {
			break
		}
		seen[parent] = true
		reversed = append(reversed, parent)
		current = parent
	}

	path := make([]string, len(reversed))
	for i, u := range reversed {
		path[len(reversed)-1-i] = u
	}
	return path
}

// Paths returns PathTo for each of urls, keyed by canonical URL.
func (p *Provenance) Paths(urls []string) map[string][]string {
	paths := make(map[string][]string, len(urls))
	for _, u := range urls {
		paths[Normalize(u)] = p.PathTo(u)
	}
	return paths
}

// Snapshot returns a copy of the graph with nil parents for roots.
// This is the shape persisted in the per-origin JSON artifact.
func (p *Provenance) Snapshot() map[string]*string {
	snapshot := make(map[string]*string, len(p.parents))
	for url, parent := range p.parents {
		if parent == "" {
			snapshot[url] = nil
			continue
		}
		parent := parent
		snapshot[url] = &parent
	}
	return snapshot
}

// URLs returns every recorded URL in first-recorded order.
func (p *Provenance) URLs() []string {
	urls := make([]string, len(p.order))
	copy(urls, p.order)
	return urls
}
