package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nao1215/clickcrawl/internal/model"
)

// TestBatchProcessor tests concurrent runs over several start URLs.
func TestBatchProcessor(t *testing.T) {
	t.Parallel()

	t.Run("returns results in input order", func(t *testing.T) {
		t.Parallel()

		factory := func() *Pipeline {
			p := newTestPipeline()
			p.AddStep(&mockStep{name: "crawl", doFunc: func(_ context.Context, r *model.CrawlResult) error {
				r.Visited = append(r.Visited, r.StartURL)
				return nil
			}})
			return p
		}

		bp := NewBatchProcessor(factory, WithConcurrency(3), WithBatchLogger(discardLogger()))
		urls := []string{"http://a.example.com", "http://b.example.com", "http://c.example.com", "http://d.example.com"}

		results, err := bp.ProcessBatch(context.Background(), urls)
		if err != nil {
			t.Fatalf("ProcessBatch() error = %v", err)
		}
		for i, r := range results {
			if r.StartURL != urls[i] || len(r.Visited) != 1 {
				t.Errorf("results[%d] = %s %v", i, r.StartURL, r.Visited)
			}
		}
	})

	t.Run("failing run does not stop others", func(t *testing.T) {
		t.Parallel()

		factory := func() *Pipeline {
			p := newTestPipeline()
			p.AddStep(&mockStep{name: "crawl", doFunc: func(_ context.Context, r *model.CrawlResult) error {
				if r.Origin == "bad.example.com" {
					return errors.New("browser crashed")
				}
				return nil
			}})
			return p
		}

		bp := NewBatchProcessor(factory, WithConcurrency(2), WithBatchLogger(discardLogger()))
		results, err := bp.ProcessBatch(context.Background(), []string{"http://bad.example.com", "http://good.example.com"})
		if err != nil {
			t.Fatalf("ProcessBatch() error = %v", err)
		}
		if results[0].Status() != "failed" {
			t.Errorf("results[0].Status() = %q, want failed", results[0].Status())
		}
		if results[1].Status() != "complete" {
			t.Errorf("results[1].Status() = %q, want complete", results[1].Status())
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var running, peak atomic.Int32
		var mu sync.Mutex
		factory := func() *Pipeline {
			p := newTestPipeline()
			p.AddStep(&mockStep{name: "crawl", doFunc: func(context.Context, *model.CrawlResult) error {
				n := running.Add(1)
				mu.Lock()
				if n > peak.Load() {
					peak.Store(n)
				}
				mu.Unlock()
				running.Add(-1)
				return nil
			}})
			return p
		}

		bp := NewBatchProcessor(factory, WithConcurrency(2), WithBatchLogger(discardLogger()))
		urls := make([]string, 10)
		for i := range urls {
			urls[i] = "http://example.com"
		}
		if _, err := bp.ProcessBatch(context.Background(), urls); err != nil {
			t.Fatalf("ProcessBatch() error = %v", err)
		}
		if peak.Load() > 2 {
			t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
		}
	})

	t.Run("cancelled batch marks remaining runs", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		factory := func() *Pipeline {
			p := newTestPipeline()
			p.AddStep(&mockStep{name: "crawl", doFunc: func(ctx context.Context, _ *model.CrawlResult) error {
				cancel()
				return ctx.Err()
			}})
			return p
		}

		bp := NewBatchProcessor(factory, WithConcurrency(1), WithBatchLogger(discardLogger()))
		results, err := bp.ProcessBatch(ctx, []string{"http://a.example.com", "http://b.example.com"})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("ProcessBatch() error = %v, want context.Canceled", err)
		}
		if len(results) != 2 {
			t.Fatalf("len(results) = %d, want 2", len(results))
		}
		for i, r := range results {
			if !r.Cancelled {
				t.Errorf("results[%d] not cancelled", i)
			}
		}
	})

	t.Run("callback sees every result", func(t *testing.T) {
		t.Parallel()

		factory := func() *Pipeline { return newTestPipeline() }
		bp := NewBatchProcessor(factory, WithConcurrency(4), WithBatchLogger(discardLogger()))

		var mu sync.Mutex
		seen := make(map[int]string)
		err := bp.ProcessBatchWithCallback(context.Background(),
			[]string{"http://a.example.com", "http://b.example.com"},
			func(r *model.CrawlResult, i int) {
				mu.Lock()
				seen[i] = r.Origin
				mu.Unlock()
			})
		if err != nil {
			t.Fatalf("ProcessBatchWithCallback() error = %v", err)
		}
		if seen[0] != "a.example.com" || seen[1] != "b.example.com" {
			t.Errorf("seen = %v", seen)
		}
	})
}
