package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/clickcrawl/internal/model"
)

// BatchProcessor crawls several start URLs concurrently. Each start URL gets
// its own pipeline, and therefore its own browser and crawl state.
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each run.
	pipelineFactory func() *Pipeline

	// concurrency is the maximum number of concurrent runs.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent runs.
// Default is 1 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     1,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch crawls every start URL and returns the results in input
// order. A failing run never stops the others; its error is recorded in
// its result. Start URLs not yet begun when ctx is cancelled get a result
// marked cancelled, and ctx.Err() is returned.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, startURLs []string) ([]*model.CrawlResult, error) {
	results := make([]*model.CrawlResult, len(startURLs))
	err := bp.ProcessBatchWithCallback(ctx, startURLs, func(result *model.CrawlResult, index int) {
		results[index] = result
	})

	for i, r := range results {
		if r == nil {
			r = model.NewCrawlResult(startURLs[i])
			r.Cancelled = true
			results[i] = r
		}
	}
	return results, err
}

// ProcessBatchWithCallback crawls every start URL and calls callback with
// each finished result and its index in startURLs. The callback is called
// from the goroutine that ran the crawl, so it must be safe for concurrent
// use when concurrency is above one.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	startURLs []string,
	callback func(result *model.CrawlResult, index int),
) error {
	bp.logger.Info("starting batch",
		"total", len(startURLs),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for i, startURL := range startURLs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			bp.logger.Info("crawling",
				"start_url", startURL,
				"index", i+1,
				"total", len(startURLs),
			)

			result := model.NewCrawlResult(startURL)
			if err := bp.pipelineFactory().Execute(ctx, result); err != nil {
				bp.logger.Warn("crawl ended with error",
					"start_url", startURL,
					"status", result.Status(),
					"error", err,
				)
			}

			callback(result, i)
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // Goroutines record errors in their results

	bp.logger.Info("batch complete",
		"total", len(startURLs),
		"elapsed", time.Since(startTime),
	)

	return ctx.Err()
}
