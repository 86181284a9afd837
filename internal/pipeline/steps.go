package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/nao1215/clickcrawl/internal/browser"
	"github.com/nao1215/clickcrawl/internal/config"
	"github.com/nao1215/clickcrawl/internal/crawler"
	"github.com/nao1215/clickcrawl/internal/database"
	"github.com/nao1215/clickcrawl/internal/model"
	"github.com/nao1215/clickcrawl/internal/report"
	"github.com/nao1215/clickcrawl/internal/tor"
)

// BrowserFactory opens a fresh render collaborator for one run with the
// settings of the crawled site.
type BrowserFactory func(ctx context.Context, site config.SiteConfig) (crawler.Browser, error)

// NewBrowserFactory returns a BrowserFactory that opens the renderer
// selected in cfg. A nil transport connects directly.
func NewBrowserFactory(cfg *config.Config, transport *tor.Client, logger *slog.Logger) BrowserFactory {
	return func(ctx context.Context, site config.SiteConfig) (crawler.Browser, error) {
		return browser.Open(ctx, browser.Settings{
			Renderer:          cfg.Renderer,
			Headless:          cfg.Headless,
			ExecPath:          cfg.BrowserPath,
			NoSandbox:         cfg.NoSandbox,
			UserAgent:         cfg.UserAgent,
			Headers:           site.Headers,
			Cookie:            site.Cookie,
			Transport:         transport,
			NavigationTimeout: cfg.NavigationTimeout,
			Logger:            logger,
		})
	}
}

// CrawlStep runs the crawl engine over the result's start URL.
// Each Do opens its own browser and closes it when the run ends.
type CrawlStep struct {
	cfg    *config.Config
	open   BrowserFactory
	logger *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a crawl step using cfg for timeouts and limits and
// open to start the browser.
func NewCrawlStep(cfg *config.Config, open BrowserFactory, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		cfg:    cfg,
		open:   open,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do executes the crawl.
func (s *CrawlStep) Do(ctx context.Context, result *model.CrawlResult) error {
	site := s.cfg.Site(result.Origin)
	logger := s.logger.With("origin", result.Origin)
	result.Renderer = s.cfg.Renderer

	b, err := s.open(ctx, site)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = fmt.Errorf("%w: start browser: %v", crawler.ErrSessionFatal, err)
		result.AddFailure(model.FailureSessionFatal, result.StartURL, "", err.Error())
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Debug("failed to close browser", "error", err)
		}
	}()

	driver := crawler.NewDriver(
		crawler.WithClickAttributes(site.ClickAttributes),
		crawler.WithSettleDelay(s.cfg.SettleDelay),
		crawler.WithRestoreTimeout(s.cfg.NavigationTimeout),
		crawler.WithMaxActionsPerPage(s.cfg.MaxActionsPerPage),
		crawler.WithDriverLogger(logger),
	)
	engine := crawler.NewEngine(b,
		crawler.WithDriver(driver),
		crawler.WithNavigationTimeout(s.cfg.NavigationTimeout),
		crawler.WithLoadSettleDelay(s.cfg.SettleDelay),
		crawler.WithMaxPages(site.MaxPages),
		crawler.WithRateLimit(s.cfg.RateLimit),
		crawler.WithPatterns(site.IgnorePatterns, site.FollowPatterns),
		crawler.WithEngineLogger(logger),
	)

	return engine.Run(ctx, result)
}

// ArtifactStep writes the provenance map to <dir>/<host>.json.
type ArtifactStep struct {
	dir    string
	logger *slog.Logger
}

// NewArtifactStep creates an artifact step writing into dir.
func NewArtifactStep(dir string, logger *slog.Logger) *ArtifactStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArtifactStep{dir: dir, logger: logger}
}

// Name returns the step name.
func (s *ArtifactStep) Name() string {
	return "artifact"
}

// Do writes the artifact. Runs that never reached the start URL have
// nothing to write and are skipped.
func (s *ArtifactStep) Do(_ context.Context, result *model.CrawlResult) error {
	if len(result.Provenance) == 0 {
		s.logger.Debug("no provenance to write", "start_url", result.StartURL)
		return nil
	}

	path, err := report.WriteArtifact(s.dir, result)
	if err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	result.Artifacts["artifact"] = path
	s.logger.Info("artifact written", "path", path)
	return nil
}

// ReportStep renders the configured report formats into a directory.
type ReportStep struct {
	dir     string
	formats []string
	version string
	logger  *slog.Logger
}

// ReportStepOption configures a ReportStep.
type ReportStepOption func(*ReportStep)

// WithReportVersion stamps the clickcrawl version into JSON reports.
func WithReportVersion(version string) ReportStepOption {
	return func(s *ReportStep) {
		s.version = version
	}
}

// WithReportLogger sets a custom logger for the report step.
func WithReportLogger(logger *slog.Logger) ReportStepOption {
	return func(s *ReportStep) {
		s.logger = logger
	}
}

// NewReportStep creates a report step writing formats into dir.
func NewReportStep(dir string, formats []string, opts ...ReportStepOption) *ReportStep {
	s := &ReportStep{
		dir:     dir,
		formats: formats,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return "report"
}

// Do writes every format, continuing past failures, and returns the first
// error.
func (s *ReportStep) Do(_ context.Context, result *model.CrawlResult) error {
	if len(result.Visited) == 0 {
		s.logger.Debug("nothing visited, no report written", "start_url", result.StartURL)
		return nil
	}

	var firstErr error
	for _, format := range s.formats {
		path, err := s.write(format, result)
		if err != nil {
			s.logger.Error("failed to write report", "format", format, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		result.Artifacts[format] = path
		s.logger.Info("report written", "format", format, "path", path)
	}
	return firstErr
}

func (s *ReportStep) write(format string, result *model.CrawlResult) (string, error) {
	switch format {
	case config.FormatHTML:
		return report.WriteHTML(s.dir, result)
	case config.FormatMarkdown:
		return report.WriteFile(s.dir, ".md", result, func(out io.Writer) report.Writer {
			return report.NewMarkdownWriter(out)
		})
	case config.FormatJSON:
		return report.WriteFile(s.dir, ".json", result, func(out io.Writer) report.Writer {
			return report.NewJSONWriter(out, report.WithPrettyPrint(), report.WithVersion(s.version))
		})
	default:
		return "", fmt.Errorf("unknown report format %q", format)
	}
}

// SummaryStep prints the visited URL / parent URL table of a run.
type SummaryStep struct {
	output    io.Writer
	showPaths bool
	logger    *slog.Logger
}

// NewSummaryStep creates a summary step printing to output.
func NewSummaryStep(output io.Writer, showPaths bool, logger *slog.Logger) *SummaryStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &SummaryStep{output: output, showPaths: showPaths, logger: logger}
}

// Name returns the step name.
func (s *SummaryStep) Name() string {
	return "summary"
}

// Do logs the run totals and prints the table.
func (s *SummaryStep) Do(_ context.Context, result *model.CrawlResult) error {
	s.logger.Info("crawl finished",
		"origin", result.Origin,
		"status", result.Status(),
		"visited", len(result.Visited),
		"actions", len(result.Actions),
		"failures", len(result.Failures),
		"pending", len(result.Pending),
		"elapsed", result.Duration(),
	)

	if len(result.Visited) == 0 {
		return nil
	}
	if _, err := report.NewTableWriter(s.output, report.WithPaths(s.showPaths)).Write(result); err != nil {
		return fmt.Errorf("print summary: %w", err)
	}
	return nil
}

// DatabaseStep saves the run to the history database.
type DatabaseStep struct {
	db     *database.CrawlDB
	logger *slog.Logger
}

// NewDatabaseStep creates a step saving runs into db.
func NewDatabaseStep(db *database.CrawlDB, logger *slog.Logger) *DatabaseStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &DatabaseStep{db: db, logger: logger}
}

// Name returns the step name.
func (s *DatabaseStep) Name() string {
	return "database"
}

// Do saves the run.
func (s *DatabaseStep) Do(ctx context.Context, result *model.CrawlResult) error {
	if result.FinishedAt.IsZero() {
		s.logger.Debug("run never started, not saved", "start_url", result.StartURL)
		return nil
	}
	if err := s.db.SaveRun(ctx, result); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	s.logger.Debug("run saved", "run_id", result.RunID, "db", s.db.Path())
	return nil
}
