package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"

	"github.com/nao1215/clickcrawl/internal/model"
)

// discardLogger returns a logger that drops everything.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, result *model.CrawlResult) error
	callCount int
	ctxErr    error
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, result *model.CrawlResult) error {
	m.callCount++
	m.ctxErr = ctx.Err()
	if m.doFunc != nil {
		return m.doFunc(ctx, result)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

func newTestPipeline(opts ...Option) *Pipeline {
	return New(append([]Option{WithLogger(discardLogger())}, opts...)...)
}

// TestPipelineNew tests the Pipeline constructor.
func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New()
		if p.StepCount() != 0 {
			t.Errorf("expected 0 steps, got %d", p.StepCount())
		}
		if p.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("applies WithContinueOnError option", func(t *testing.T) {
		t.Parallel()

		if !New(WithContinueOnError(true)).continueOnError {
			t.Error("expected continueOnError to be true")
		}
	})
}

// TestPipelineStepNames tests step bookkeeping.
func TestPipelineStepNames(t *testing.T) {
	t.Parallel()

	p := newTestPipeline()
	p.AddStep(&mockStep{name: "crawl"})
	p.AddSteps(&mockStep{name: "a"}, &mockStep{name: "b"})
	p.AddFinalizer(&mockStep{name: "save"})

	if p.StepCount() != 4 {
		t.Errorf("StepCount() = %d, want 4", p.StepCount())
	}
	if !slices.Equal(p.StepNames(), []string{"crawl", "a", "b", "save"}) {
		t.Errorf("StepNames() = %v", p.StepNames())
	}
}

// TestPipelineExecute tests step ordering, error handling and finalizers.
func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("runs steps then finalizers in order", func(t *testing.T) {
		t.Parallel()

		var order []string
		record := func(name string) *mockStep {
			return &mockStep{name: name, doFunc: func(context.Context, *model.CrawlResult) error {
				order = append(order, name)
				return nil
			}}
		}

		p := newTestPipeline()
		p.AddFinalizer(record("final"))
		p.AddSteps(record("first"), record("second"))

		result := model.NewCrawlResult("http://localhost")
		if err := p.Execute(context.Background(), result); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if !slices.Equal(order, []string{"first", "second", "final"}) {
			t.Errorf("order = %v", order)
		}
		if !slices.Equal(result.PerformedSteps, order) {
			t.Errorf("PerformedSteps = %v", result.PerformedSteps)
		}
	})

	t.Run("stops on error by default but runs finalizers", func(t *testing.T) {
		t.Parallel()

		stepErr := errors.New("browser not found")
		failing := &mockStep{name: "failing", doFunc: func(context.Context, *model.CrawlResult) error {
			return stepErr
		}}
		skipped := &mockStep{name: "skipped"}
		final := &mockStep{name: "final"}

		p := newTestPipeline()
		p.AddSteps(failing, skipped)
		p.AddFinalizer(final)

		result := model.NewCrawlResult("http://localhost")
		if err := p.Execute(context.Background(), result); !errors.Is(err, stepErr) {
			t.Fatalf("Execute() error = %v, want %v", err, stepErr)
		}
		if skipped.callCount != 0 {
			t.Error("expected later step to be skipped")
		}
		if final.callCount != 1 {
			t.Error("expected finalizer to run")
		}
		if result.Status() != "failed" || result.ErrorMessage != "browser not found" {
			t.Errorf("unexpected result state: %q %q", result.Status(), result.ErrorMessage)
		}
	})

	t.Run("continues on error when configured", func(t *testing.T) {
		t.Parallel()

		failing := &mockStep{name: "failing", doFunc: func(context.Context, *model.CrawlResult) error {
			return errors.New("first")
		}}
		next := &mockStep{name: "next"}

		p := newTestPipeline(WithContinueOnError(true))
		p.AddSteps(failing, next)

		result := model.NewCrawlResult("http://localhost")
		if err := p.Execute(context.Background(), result); err == nil {
			t.Error("expected first error to be returned")
		}
		if next.callCount != 1 {
			t.Error("expected next step to run")
		}
	})

	t.Run("cancellation marks result and still finalizes", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		crawl := &mockStep{name: "crawl", doFunc: func(ctx context.Context, _ *model.CrawlResult) error {
			cancel()
			return ctx.Err()
		}}
		skipped := &mockStep{name: "skipped"}
		final := &mockStep{name: "final"}

		p := newTestPipeline()
		p.AddSteps(crawl, skipped)
		p.AddFinalizer(final)

		result := model.NewCrawlResult("http://localhost")
		if err := p.Execute(ctx, result); !errors.Is(err, context.Canceled) {
			t.Fatalf("Execute() error = %v, want context.Canceled", err)
		}
		if !result.Cancelled {
			t.Error("expected result to be cancelled")
		}
		if result.ErrorMessage != "" {
			t.Errorf("cancellation should not be an error, got %q", result.ErrorMessage)
		}
		if skipped.callCount != 0 {
			t.Error("expected later step to be skipped")
		}
		if final.callCount != 1 || final.ctxErr != nil {
			t.Errorf("finalizer calls = %d, ctx err = %v", final.callCount, final.ctxErr)
		}
	})

	t.Run("finalizer error is recorded only", func(t *testing.T) {
		t.Parallel()

		p := newTestPipeline()
		p.AddFinalizer(&mockStep{name: "final", doFunc: func(context.Context, *model.CrawlResult) error {
			return errors.New("disk full")
		}})

		result := model.NewCrawlResult("http://localhost")
		if err := p.Execute(context.Background(), result); err != nil {
			t.Errorf("Execute() error = %v, want nil", err)
		}
		if result.ErrorMessage != "disk full" {
			t.Errorf("ErrorMessage = %q", result.ErrorMessage)
		}
	})
}
