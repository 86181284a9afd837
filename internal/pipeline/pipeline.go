package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nao1215/clickcrawl/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, each receiving the result filled by the
// previous ones.
type Step interface {
	// Do executes the pipeline step.
	// Non-critical problems should be recorded in the result and return nil.
	Do(ctx context.Context, result *model.CrawlResult) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
//
// Steps added with AddStep run in order and stop at cancellation. Steps
// added with AddFinalizer always run afterwards, even when the crawl was
// interrupted, so partial results are still written out.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// finalizers run after steps regardless of cancellation.
	finalizers []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. Failed steps are logged and their errors
// are recorded in the result, but subsequent steps still execute.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:      make([]Step, 0),
		finalizers: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// AddFinalizer appends a step that runs after all other steps, also when
// they were cancelled or failed.
func (p *Pipeline) AddFinalizer(step Step) {
	p.finalizers = append(p.finalizers, step)
}

// Execute runs all steps in sequence, then all finalizers.
//
// Cancellation marks the result as cancelled instead of failed. The first
// step error is returned if continueOnError is false; cancellation returns
// ctx.Err(). Finalizer errors are logged and recorded only.
func (p *Pipeline) Execute(ctx context.Context, result *model.CrawlResult) error {
	err := p.runSteps(ctx, result)

	// Finalizers persist what the crawl found, so cancellation must not
	// stop them.
	finalCtx := context.WithoutCancel(ctx)
	for _, step := range p.finalizers {
		p.run(finalCtx, step, result)
	}

	return err
}

func (p *Pipeline) runSteps(ctx context.Context, result *model.CrawlResult) error {
	var firstErr error
	for _, step := range p.steps {
		if ctx.Err() != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			result.Cancelled = true
			return ctx.Err()
		}

		if err := p.run(ctx, step, result); err != nil {
			if isCancellation(err) {
				result.Cancelled = true
				return err
			}
			if firstErr == nil {
				firstErr = err
			}
			if !p.continueOnError {
				return err
			}
		}
	}
	return firstErr
}

// run executes one step and records its outcome on result.
func (p *Pipeline) run(ctx context.Context, step Step, result *model.CrawlResult) error {
	p.logger.Debug("executing step",
		"step", step.Name(),
		"start_url", result.StartURL,
	)

	err := step.Do(ctx, result)
	result.PerformedSteps = append(result.PerformedSteps, step.Name())

	switch {
	case err == nil:
		p.logger.Debug("step completed",
			"step", step.Name(),
			"start_url", result.StartURL,
		)
	case isCancellation(err):
		p.logger.Warn("step interrupted",
			"step", step.Name(),
			"start_url", result.StartURL,
		)
	default:
		p.logger.Error("step failed",
			"step", step.Name(),
			"start_url", result.StartURL,
			"error", err,
		)
		if result.ErrorMessage == "" {
			result.SetError(err)
		}
	}
	return err
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// StepCount returns the number of steps in the pipeline, finalizers included.
func (p *Pipeline) StepCount() int {
	return len(p.steps) + len(p.finalizers)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, 0, p.StepCount())
	for _, step := range p.steps {
		names = append(names, step.Name())
	}
	for _, step := range p.finalizers {
		names = append(names, step.Name())
	}
	return names
}
