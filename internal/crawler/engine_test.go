package crawler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/nao1215/clickcrawl/internal/model"
)

func newTestEngine(b Browser, opts ...EngineOption) *Engine {
	base := []EngineOption{
		WithDriver(newTestDriver()),
		WithLoadSettleDelay(0),
		WithEngineLogger(discardLogger()),
	}
	return NewEngine(b, append(base, opts...)...)
}

func countGotos(b *fakeBrowser, url string) int {
	n := 0
	for _, p := range b.opened {
		for _, e := range p.events {
			if e == "goto "+url {
				n++
			}
		}
	}
	return n
}

func TestEngine_Crawl(t *testing.T) {
	t.Parallel()

	t.Run("trailing slash variants are visited once", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite()
		site.page("https://a.com/", "/a", "/a/")
		site.page("https://a.com/a", "/a/#")
		b := &fakeBrowser{site: site}

		result, err := newTestEngine(b).Crawl(context.Background(), "https://a.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"https://a.com", "https://a.com/a"}
		if !slices.Equal(result.Visited, want) {
			t.Errorf("expected visited %v, got %v", want, result.Visited)
		}
		if n := countGotos(b, "https://a.com/a"); n != 1 {
			t.Errorf("expected 1 load of /a, got %d", n)
		}
	})

	t.Run("other origins are never queued", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite()
		site.page("https://a.com/", "https://other.com/x", "https://a.com:8080/y", "/in")
		site.page("https://a.com/in")
		b := &fakeBrowser{site: site}

		result, err := newTestEngine(b).Crawl(context.Background(), "https://a.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, u := range result.Visited {
			if u != "https://a.com" && u != "https://a.com/in" {
				t.Errorf("unexpected visited URL %q", u)
			}
		}
		if _, ok := result.Provenance["https://other.com/x"]; ok {
			t.Error("expected foreign URL to be absent from provenance")
		}
		if result.Origin != "a.com" {
			t.Errorf("expected origin 'a.com', got %q", result.Origin)
		}
	})

	t.Run("cycles terminate and keep first parent", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite()
		site.page("https://a.com/", "/a")
		site.page("https://a.com/a", "/", "/b")
		site.page("https://a.com/b", "/a", "/")
		b := &fakeBrowser{site: site}

		result, err := newTestEngine(b).Crawl(context.Background(), "https://a.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Visited) != 3 {
			t.Fatalf("expected 3 visited URLs, got %v", result.Visited)
		}
		if result.Provenance["https://a.com"] != nil {
			t.Error("expected the start URL to be a root")
		}
		if p := result.Provenance["https://a.com/b"]; p == nil || *p != "https://a.com/a" {
			t.Errorf("expected parent of /b to be /a, got %v", p)
		}

		want := []string{"https://a.com", "https://a.com/a", "https://a.com/b"}
		if got := result.Paths["https://a.com/b"]; !slices.Equal(got, want) {
			t.Errorf("expected path %v, got %v", want, got)
		}
		if result.Status() != "complete" {
			t.Errorf("expected status 'complete', got %q", result.Status())
		}
	})

	t.Run("pages are visited breadth first", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite()
		site.page("https://a.com/", "/a", "/b")
		site.page("https://a.com/a", "/c")
		site.page("https://a.com/b", "/d")
		site.page("https://a.com/c")
		site.page("https://a.com/d")
		b := &fakeBrowser{site: site}

		result, err := newTestEngine(b).Crawl(context.Background(), "https://a.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"https://a.com", "https://a.com/a", "https://a.com/b", "https://a.com/c", "https://a.com/d"}
		if !slices.Equal(result.Visited, want) {
			t.Errorf("expected %v, got %v", want, result.Visited)
		}
	})

	t.Run("clicks discover hash routes", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite()
		site.page("https://a.com/").
			click(&fakeClickable{attrs: ngClick("openDashboard()"), navigate: "https://a.com/#/dashboard"})
		site.page("https://a.com/#/dashboard", "/#/settings")
		site.page("https://a.com/#/settings")
		b := &fakeBrowser{site: site}

		result, err := newTestEngine(b).Crawl(context.Background(), "https://a.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"https://a.com", "https://a.com/#/dashboard", "https://a.com/#/settings"}
		if !slices.Equal(result.Visited, want) {
			t.Errorf("expected %v, got %v", want, result.Visited)
		}
		if p := result.Provenance["https://a.com/#/dashboard"]; p == nil || *p != "https://a.com" {
			t.Errorf("expected dashboard parent 'https://a.com', got %v", p)
		}
		if len(result.Actions) != 1 || !result.Actions[0].Navigated {
			t.Errorf("expected one navigating action, got %+v", result.Actions)
		}
	})

	t.Run("navigation timeout skips the page", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite()
		site.page("https://a.com/", "/slow", "/fast")
		site.page("https://a.com/fast")
		site.timeouts["https://a.com/slow"] = true
		b := &fakeBrowser{site: site}

		result, err := newTestEngine(b).Crawl(context.Background(), "https://a.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Contains(result.Visited, "https://a.com/slow") {
			t.Error("expected timed out URL to count as visited")
		}
		if !slices.Contains(result.Visited, "https://a.com/fast") {
			t.Error("expected crawl to continue after a timeout")
		}
		if n := result.FailureCounts()[model.FailureNavigationTimeout]; n != 1 {
			t.Errorf("expected 1 navigation timeout, got %d", n)
		}
	})

	t.Run("lost session stops the run", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite()
		site.page("https://a.com/", "/boom", "/later")
		site.page("https://a.com/later")
		site.gotoErrs["https://a.com/boom"] = fmt.Errorf("%w: target crashed", ErrSessionFatal)
		b := &fakeBrowser{site: site}

		result, err := newTestEngine(b).Crawl(context.Background(), "https://a.com/")
		if !errors.Is(err, ErrSessionFatal) {
			t.Fatalf("expected ErrSessionFatal, got %v", err)
		}
		if slices.Contains(result.Visited, "https://a.com/later") {
			t.Error("expected no visits after a fatal error")
		}
		if n := result.FailureCounts()[model.FailureSessionFatal]; n != 1 {
			t.Errorf("expected 1 fatal failure, got %d", n)
		}
		if !slices.Contains(result.Pending, "https://a.com/later") {
			t.Errorf("expected /later to stay pending, got %v", result.Pending)
		}
	})

	t.Run("page open failure is fatal", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite()
		site.newPageErr = errors.New("no tab")
		b := &fakeBrowser{site: site}

		result, err := newTestEngine(b).Crawl(context.Background(), "https://a.com/")
		if !errors.Is(err, ErrSessionFatal) {
			t.Fatalf("expected ErrSessionFatal, got %v", err)
		}
		if len(result.Failures) != 1 {
			t.Errorf("expected 1 failure, got %d", len(result.Failures))
		}
		if len(result.Visited) != 0 {
			t.Errorf("expected no visits, got %v", result.Visited)
		}
	})

	t.Run("cancellation returns partial result", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		site := newFakeSite()
		site.page("https://a.com/", "/a", "/b")
		site.page("https://a.com/a")
		site.page("https://a.com/b")
		site.onGoto = func(url string) {
			if url == "https://a.com/a" {
				cancel()
			}
		}
		b := &fakeBrowser{site: site}

		result, err := newTestEngine(b).Crawl(ctx, "https://a.com/")
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if !result.Cancelled {
			t.Error("expected result to be marked cancelled")
		}
		if !slices.Equal(result.Visited, []string{"https://a.com"}) {
			t.Errorf("expected only the start URL visited, got %v", result.Visited)
		}
		want := []string{"https://a.com/b", "https://a.com/a"}
		if !slices.Equal(result.Pending, want) {
			t.Errorf("expected pending %v, got %v", want, result.Pending)
		}
		if result.Status() != "cancelled" {
			t.Errorf("expected status 'cancelled', got %q", result.Status())
		}
	})

	t.Run("page limit truncates the run", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite()
		site.page("https://a.com/", "/a", "/b", "/c")
		b := &fakeBrowser{site: site}

		result, err := newTestEngine(b, WithMaxPages(2)).Crawl(context.Background(), "https://a.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Visited) != 2 {
			t.Errorf("expected 2 visited URLs, got %v", result.Visited)
		}
		if !result.Truncated {
			t.Error("expected result to be truncated")
		}
		want := []string{"https://a.com/b", "https://a.com/c"}
		if !slices.Equal(result.Pending, want) {
			t.Errorf("expected pending %v, got %v", want, result.Pending)
		}
	})

	t.Run("page limit on a self-linking page is not truncation", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite()
		site.page("https://a.com/", "/")
		b := &fakeBrowser{site: site}

		result, err := newTestEngine(b, WithMaxPages(1)).Crawl(context.Background(), "https://a.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Pending) != 0 {
			t.Errorf("expected no pending URLs, got %v", result.Pending)
		}
		if result.Truncated {
			t.Error("expected result not to be truncated")
		}
		if result.Status() != "complete" {
			t.Errorf("expected status 'complete', got %q", result.Status())
		}
	})

	t.Run("raw provenance keeps unvisited URLs", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite()
		site.page("https://a.com/", "/x", "/y")
		b := &fakeBrowser{site: site}

		result, err := newTestEngine(b, WithMaxPages(1)).Crawl(context.Background(), "https://a.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Provenance) != 1 {
			t.Errorf("expected visited provenance of 1 URL, got %v", result.Provenance)
		}
		if len(result.RawProvenance) != 3 {
			t.Fatalf("expected raw provenance of 3 URLs, got %v", result.RawProvenance)
		}
		for _, u := range []string{"https://a.com/x", "https://a.com/y"} {
			if p := result.RawProvenance[u]; p == nil || *p != "https://a.com" {
				t.Errorf("expected parent of %s to be the start URL, got %v", u, p)
			}
		}
		if result.RawProvenance["https://a.com"] != nil {
			t.Error("expected the start URL to be a root")
		}
	})

	t.Run("cancellation while rate limited keeps the dequeued URL pending", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		site := newFakeSite()
		site.page("https://a.com/", "/x")
		site.page("https://a.com/x")
		site.onGoto = func(url string) {
			if url == "https://a.com" {
				time.AfterFunc(50*time.Millisecond, cancel)
			}
		}
		b := &fakeBrowser{site: site}

		result, err := newTestEngine(b, WithRateLimit(0.5)).Crawl(ctx, "https://a.com/")
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if !result.Cancelled {
			t.Error("expected result to be marked cancelled")
		}
		if !slices.Equal(result.Visited, []string{"https://a.com"}) {
			t.Errorf("expected only the start URL visited, got %v", result.Visited)
		}
		if !slices.Equal(result.Pending, []string{"https://a.com/x"}) {
			t.Errorf("expected /x pending, got %v", result.Pending)
		}
	})

	t.Run("ignore patterns keep URLs out of the frontier", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite()
		site.page("https://a.com/", "/logout", "/#/logout", "/home")
		site.page("https://a.com/home")
		b := &fakeBrowser{site: site}

		result, err := newTestEngine(b, WithPatterns([]string{"/logout"}, nil)).
			Crawl(context.Background(), "https://a.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"https://a.com", "https://a.com/home"}
		if !slices.Equal(result.Visited, want) {
			t.Errorf("expected %v, got %v", want, result.Visited)
		}
	})

	t.Run("start URL without host is rejected", func(t *testing.T) {
		t.Parallel()

		b := &fakeBrowser{site: newFakeSite()}
		_, err := newTestEngine(b).Crawl(context.Background(), "not a url")
		if !errors.Is(err, ErrInvalidStartURL) {
			t.Errorf("expected ErrInvalidStartURL, got %v", err)
		}
		if len(b.opened) != 0 {
			t.Error("expected no page to be opened")
		}
	})

	t.Run("runs do not share state", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite()
		site.page("https://a.com/").click(&fakeClickable{attrs: ngClick("menu()")})
		engine := newTestEngine(&fakeBrowser{site: site})

		first, err := engine.Crawl(context.Background(), "https://a.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := engine.Crawl(context.Background(), "https://a.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(first.Actions) != 1 || len(second.Actions) != 1 {
			t.Errorf("expected one action per run, got %d and %d", len(first.Actions), len(second.Actions))
		}
		if first.RunID == second.RunID {
			t.Error("expected distinct run IDs")
		}
	})
}
