package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/clickcrawl/internal/config"
	"github.com/nao1215/clickcrawl/internal/database"
	clicklog "github.com/nao1215/clickcrawl/internal/log"
	"github.com/nao1215/clickcrawl/internal/model"
	"github.com/nao1215/clickcrawl/internal/pipeline"
	"github.com/nao1215/clickcrawl/internal/tor"
)

// errAllRunsFailed is returned when no start URL produced a usable run.
var errAllRunsFailed = errors.New("all crawls failed")

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [start-url...]",
		Short: "Crawl a single-page application and record how each URL was found",
		Long: `Crawl loads each start URL in a browser and explores its origin.

Every page is searched for same-origin links, and every element carrying a
click attribute (ng-click, onclick, @click, ...) is clicked once per distinct
handler. URLs reached this way are queued and crawled in turn. For each URL the
page that led to it is recorded, and the run is written as:
- <data-dir>/<host>.json, the URL to parent URL map
- <report-dir>/<host>.html, a report with the discovery graph
- a visited URL / parent URL table on standard output

Examples:
  # Crawl a local application
  clickcrawl crawl http://localhost:8080

  # Show the browser while crawling
  clickcrawl crawl --headless=false http://localhost:8080

  # Crawl two applications at once, stopping each after 100 pages
  clickcrawl crawl -P 2 -p 100 https://a.example.com https://b.example.com

  # Crawl without JavaScript (links and data-href only)
  clickcrawl crawl -r static https://example.com

  # Route traffic through Tor
  clickcrawl crawl --proxy tor http://exampleonion.onion

Configuration file (.clickcrawl) example:
  start_urls:
    - http://localhost:8080
  settle_delay: 2s
  sites:
    localhost:8080:
      cookie: "session=abc123"
      ignore_patterns:
        - "/logout"`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .clickcrawl in current or home directory)")

	// Browser flags
	cmd.Flags().Bool("headless", true, "Run the browser without a window")
	cmd.Flags().String("browser-path", "", "Chrome executable (default: looked up on PATH)")
	cmd.Flags().StringP("renderer", "r", config.DefaultRenderer, "Renderer: chrome or static")
	cmd.Flags().Bool("no-sandbox", false, "Disable the Chrome sandbox")
	cmd.Flags().String("user-agent", "", "Override the User-Agent header")

	// Crawl behavior flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultNavigationTimeout,
		"Timeout for each page load")
	cmd.Flags().DurationP("settle", "s", config.DefaultSettleDelay,
		"Wait after every navigation and click")
	cmd.Flags().IntP("max-pages", "p", 0, "Maximum visited URLs per start URL (0: unlimited)")
	cmd.Flags().Int("max-actions", 0, "Maximum clicked handlers per page (0: unlimited)")
	cmd.Flags().Float64("rate", 0, "Maximum page loads per second (0: unlimited)")
	cmd.Flags().StringSlice("click-attr", nil, "Click attributes to inspect (replaces the defaults)")
	cmd.Flags().IntP("parallel", "P", config.DefaultParallel, "Number of start URLs crawled concurrently")

	// Proxy flags
	cmd.Flags().String("proxy", "", `SOCKS5 proxy address (host:port), or "tor" for an embedded Tor daemon`)
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout, "Timeout for embedded Tor startup")

	// Output flags
	cmd.Flags().String("data-dir", config.DefaultDataDir, "Directory for the JSON provenance artifacts")
	cmd.Flags().String("report-dir", config.DefaultReportDir, "Directory for the reports")
	cmd.Flags().StringSliceP("format", "f", []string{config.FormatHTML}, "Report formats: html, markdown, json")
	cmd.Flags().Bool("paths", false, "Show the discovery path of each URL in the summary table")
	cmd.Flags().Bool("no-db", false, "Do not record the run in the history database")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := clicklog.NewSecureLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	showPaths, err := cmd.Flags().GetBool("paths")
	if err != nil {
		return err
	}

	return runCrawl(ctx, cmd, cfg, showPaths, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from defaults, the config file and the
// flags that were set on the command line, in that order.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// A missing file is only an error when its path was given explicitly.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(file)
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	if len(args) > 0 {
		cfg.StartURLs = args
	}

	noDB, err := cmd.Flags().GetBool("no-db")
	if err != nil {
		return nil, err
	}
	switch {
	case noDB:
		cfg.SaveToDB = false
	case cfg.DBDir == "":
		cfg.DBDir = config.XDGDataDir()
		cfg.SaveToDB = true
	}

	return cfg, nil
}

// applyFlags copies the flags the user set onto cfg. Flags left at their
// defaults do not override the config file.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error

	if flags.Changed("headless") {
		if cfg.Headless, err = flags.GetBool("headless"); err != nil {
			return err
		}
	}
	if flags.Changed("browser-path") {
		if cfg.BrowserPath, err = flags.GetString("browser-path"); err != nil {
			return err
		}
	}
	if flags.Changed("renderer") {
		if cfg.Renderer, err = flags.GetString("renderer"); err != nil {
			return err
		}
	}
	if flags.Changed("no-sandbox") {
		if cfg.NoSandbox, err = flags.GetBool("no-sandbox"); err != nil {
			return err
		}
	}
	if flags.Changed("user-agent") {
		if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
			return err
		}
	}
	if flags.Changed("timeout") {
		if cfg.NavigationTimeout, err = flags.GetDuration("timeout"); err != nil {
			return err
		}
	}
	if flags.Changed("settle") {
		if cfg.SettleDelay, err = flags.GetDuration("settle"); err != nil {
			return err
		}
	}
	if flags.Changed("max-pages") {
		if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
			return err
		}
	}
	if flags.Changed("max-actions") {
		if cfg.MaxActionsPerPage, err = flags.GetInt("max-actions"); err != nil {
			return err
		}
	}
	if flags.Changed("rate") {
		if cfg.RateLimit, err = flags.GetFloat64("rate"); err != nil {
			return err
		}
	}
	if flags.Changed("click-attr") {
		if cfg.ClickAttributes, err = flags.GetStringSlice("click-attr"); err != nil {
			return err
		}
	}
	if flags.Changed("parallel") {
		if cfg.Parallel, err = flags.GetInt("parallel"); err != nil {
			return err
		}
	}
	if flags.Changed("proxy") {
		if cfg.Proxy, err = flags.GetString("proxy"); err != nil {
			return err
		}
	}
	if flags.Changed("tor-timeout") {
		if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
			return err
		}
	}
	if flags.Changed("data-dir") {
		if cfg.DataDir, err = flags.GetString("data-dir"); err != nil {
			return err
		}
	}
	if flags.Changed("report-dir") {
		if cfg.ReportDir, err = flags.GetString("report-dir"); err != nil {
			return err
		}
	}
	if flags.Changed("format") {
		if cfg.ReportFormats, err = flags.GetStringSlice("format"); err != nil {
			return err
		}
	}
	return nil
}

// runCrawl crawls every start URL and writes its outputs.
func runCrawl(ctx context.Context, cmd *cobra.Command, cfg *config.Config, showPaths bool, logger *slog.Logger) error {
	logger.Info("starting crawl",
		"start_urls", cfg.StartURLs,
		"renderer", cfg.Renderer,
		"parallel", cfg.Parallel,
		"save_to_db", cfg.SaveToDB,
	)

	var db *database.CrawlDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Debug("database opened", "path", db.Path())
	}

	transport, shutdown, err := connectProxy(ctx, cmd, cfg, logger)
	if err != nil {
		return err
	}
	defer shutdown()

	out := &syncWriter{w: cmd.OutOrStdout()}
	open := pipeline.NewBrowserFactory(cfg, transport, logger)

	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			p := pipeline.New(pipeline.WithLogger(logger))
			p.AddStep(pipeline.NewCrawlStep(cfg, open, pipeline.WithCrawlLogger(logger)))
			p.AddFinalizer(pipeline.NewArtifactStep(cfg.DataDir, logger))
			p.AddFinalizer(pipeline.NewReportStep(cfg.ReportDir, cfg.ReportFormats,
				pipeline.WithReportVersion(getVersion()),
				pipeline.WithReportLogger(logger),
			))
			p.AddFinalizer(pipeline.NewSummaryStep(out, showPaths, logger))
			if db != nil {
				p.AddFinalizer(pipeline.NewDatabaseStep(db, logger))
			}
			return p
		},
		pipeline.WithConcurrency(cfg.Parallel),
		pipeline.WithBatchLogger(logger),
	)

	results, err := bp.ProcessBatch(ctx, cfg.StartURLs)
	if err != nil {
		return fmt.Errorf("crawl interrupted: %w", err)
	}
	return summarize(results)
}

// connectProxy prepares the transport named by cfg.Proxy. The returned
// shutdown function must be called once the crawl is done.
func connectProxy(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) (*tor.Client, func(), error) {
	switch cfg.Proxy {
	case "":
		return nil, func() {}, nil
	case tor.EmbeddedProxy:
		return startEmbeddedTor(ctx, cmd, cfg, logger)
	}

	address, err := tor.ParseProxyAddress(cfg.Proxy)
	if err != nil {
		return nil, nil, err
	}
	client, err := tor.NewClient(address, cfg.NavigationTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create proxy client: %w", err)
	}

	if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
		return nil, nil, fmt.Errorf("proxy check failed: %w (make sure the proxy is running at %s)",
			status.Error(), address)
	}
	logger.Info("proxy connection verified", "address", address)

	return client, func() {}, nil
}

// startEmbeddedTor starts an embedded Tor daemon and returns a client using it.
func startEmbeddedTor(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) (*tor.Client, func(), error) {
	fmt.Fprintln(cmd.ErrOrStderr(), "Starting embedded Tor daemon...")
	fmt.Fprintf(cmd.ErrOrStderr(), "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embeddedTor := tor.NewEmbeddedTor(
		tor.WithStartupTimeout(cfg.TorStartupTimeout),
	)
	if err := embeddedTor.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}
	stop := func() {
		logger.Info("stopping embedded Tor daemon")
		if err := embeddedTor.Stop(); err != nil {
			logger.Error("failed to stop embedded Tor", "error", err)
		}
	}

	logger.Info("embedded Tor daemon started",
		"socks_addr", embeddedTor.SocksAddr(),
		"control_addr", embeddedTor.ControlAddr(),
	)

	client, err := embeddedTor.NewClient(cfg.NavigationTimeout)
	if err != nil {
		stop()
		return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
	}

	if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
		stop()
		return nil, nil, fmt.Errorf("embedded Tor proxy check failed: %w", status.Error())
	}

	return client, stop, nil
}

// summarize turns the batch outcome into the command's exit status: the
// command fails only when no start URL produced a usable run.
func summarize(results []*model.CrawlResult) error {
	failed := 0
	for _, r := range results {
		if r.Status() == "failed" && len(r.Visited) == 0 {
			failed++
		}
	}
	if len(results) > 0 && failed == len(results) {
		if len(results) == 1 {
			return fmt.Errorf("%w: %s", errAllRunsFailed, results[0].ErrorMessage)
		}
		return fmt.Errorf("%w (%d of %d)", errAllRunsFailed, failed, len(results))
	}
	return nil
}

// syncWriter serializes writes from concurrent runs.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
