package crawler

// VisitedSet holds canonical URLs that have been fully processed.
// It only grows during a run and keeps insertion order for reporting.
type VisitedSet struct {
	set   map[string]bool
	order []string
}

// NewVisitedSet creates an empty VisitedSet.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{
		set:   make(map[string]bool),
		order: make([]string, 0),
	}
}

// Add marks url as visited. It reports false if url was already present.
func (v *VisitedSet) Add(url string) bool {
	url = Normalize(url)
	if v.set[url] {
		return false
	}
	v.set[url] = true
	v.order = append(v.order, url)
	return true
}

// Contains reports whether url has been visited.
func (v *VisitedSet) Contains(url string) bool {
	return v.set[Normalize(url)]
}

// Len returns the number of visited URLs.
func (v *VisitedSet) Len() int {
	return len(v.order)
}

// List returns visited URLs in visitation order.
func (v *VisitedSet) List() []string {
	list := make([]string, len(v.order))
	copy(list, v.order)
	return list
}

// Frontier is the FIFO queue of URLs awaiting a visit.
// It never yields a URL that is already in its VisitedSet, and a URL that is
// pending is not queued a second time.
type Frontier struct {
	queue      []string
	pending    map[string]bool
	visited    *VisitedSet
	provenance *Provenance
}

// NewFrontier creates a frontier bound to the run's visited set and
// provenance graph.
func NewFrontier(visited *VisitedSet, provenance *Provenance) *Frontier {
	return &Frontier{
		queue:      make([]string, 0),
		pending:    make(map[string]bool),
		visited:    visited,
		provenance: provenance,
	}
}

// Enqueue schedules url for a visit with parent as its discoverer.
// Visited URLs are ignored. The parent is recorded in the provenance graph
// only if url has no entry yet. It reports whether url was newly queued.
func (f *Frontier) Enqueue(url, parent string) bool {
	url = Normalize(url)
	if f.visited.Contains(url) {
		return false
	}

	f.provenance.RecordParent(url, parent)

	if f.pending[url] {
		return false
	}
	f.pending[url] = true
	f.queue = append(f.queue, url)
	return true
}

// Dequeue removes and returns the oldest pending URL that has not been
// visited in the meantime. The boolean is false when the frontier is empty.
func (f *Frontier) Dequeue() (string, bool) {
	for len(f.queue) > 0 {
		url := f.queue[0]
		f.queue = f.queue[1:]
		delete(f.pending, url)

		if f.visited.Contains(url) {
			continue
		}
		return url, true
	}
	return "", false
}

// IsPending reports whether url is waiting in the queue.
func (f *Frontier) IsPending(url string) bool {
	return f.pending[Normalize(url)]
}

// Len returns the number of queued URLs.
func (f *Frontier) Len() int {
	return len(f.queue)
}

// Pending returns the queued URLs in dequeue order.
func (f *Frontier) Pending() []string {
	pending := make([]string, 0, len(f.queue))
	for _, url := range f.queue {
		if !f.visited.Contains(url) {
			pending = append(pending, url)
		}
	}
	return pending
}
