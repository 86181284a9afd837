package crawler

import (
	"slices"
	"testing"
)

func newTestFrontier() (*Frontier, *VisitedSet, *Provenance) {
	visited := NewVisitedSet()
	provenance := NewProvenance()
	return NewFrontier(visited, provenance), visited, provenance
}

func TestFrontier(t *testing.T) {
	t.Parallel()

	t.Run("dequeues in FIFO order", func(t *testing.T) {
		t.Parallel()

		f, _, _ := newTestFrontier()
		f.Enqueue("https://a.com/1", "")
		f.Enqueue("https://a.com/2", "")
		f.Enqueue("https://a.com/3", "")

		got := make([]string, 0)
		for {
			u, ok := f.Dequeue()
			if !ok {
				break
			}
			got = append(got, u)
		}

		want := []string{"https://a.com/1", "https://a.com/2", "https://a.com/3"}
		if !slices.Equal(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("pending URL is queued once", func(t *testing.T) {
		t.Parallel()

		f, _, _ := newTestFrontier()
		if !f.Enqueue("https://a.com/a", "") {
			t.Fatal("expected first enqueue to succeed")
		}
		if f.Enqueue("https://a.com/a/", "https://a.com") {
			t.Error("expected duplicate enqueue to be ignored")
		}
		if f.Len() != 1 {
			t.Errorf("expected 1 queued URL, got %d", f.Len())
		}
		if !f.IsPending("https://a.com/a/") {
			t.Error("expected URL to be pending")
		}
	})

	t.Run("visited URL is never queued", func(t *testing.T) {
		t.Parallel()

		f, visited, provenance := newTestFrontier()
		visited.Add("https://a.com/a")

		if f.Enqueue("https://a.com/a", "https://a.com") {
			t.Error("expected visited URL to be rejected")
		}
		if provenance.Has("https://a.com/a") {
			t.Error("expected no provenance entry for a rejected URL")
		}
	})

	t.Run("URL visited while queued is skipped", func(t *testing.T) {
		t.Parallel()

		f, visited, _ := newTestFrontier()
		f.Enqueue("https://a.com/a", "")
		f.Enqueue("https://a.com/b", "")
		visited.Add("https://a.com/a")

		if got := f.Pending(); !slices.Equal(got, []string{"https://a.com/b"}) {
			t.Errorf("expected pending [https://a.com/b], got %v", got)
		}

		u, ok := f.Dequeue()
		if !ok || u != "https://a.com/b" {
			t.Errorf("expected 'https://a.com/b', got %q (ok=%v)", u, ok)
		}
		if _, ok := f.Dequeue(); ok {
			t.Error("expected empty frontier")
		}
	})

	t.Run("parent is recorded on first enqueue", func(t *testing.T) {
		t.Parallel()

		f, _, provenance := newTestFrontier()
		f.Enqueue("https://a.com/x", "https://a.com/first")
		f.Enqueue("https://a.com/x", "https://a.com/second")

		parent, _ := provenance.ParentOf("https://a.com/x")
		if parent != "https://a.com/first" {
			t.Errorf("expected parent 'https://a.com/first', got %q", parent)
		}
	})
}

func TestVisitedSet(t *testing.T) {
	t.Parallel()

	v := NewVisitedSet()
	if !v.Add("https://a.com/a/") {
		t.Fatal("expected first add to succeed")
	}
	if v.Add("https://a.com/a") {
		t.Error("expected canonical duplicate to be ignored")
	}
	v.Add("https://a.com/b")

	if !v.Contains("https://a.com/a/#") {
		t.Error("expected canonical lookup to match")
	}
	want := []string{"https://a.com/a", "https://a.com/b"}
	if got := v.List(); !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
