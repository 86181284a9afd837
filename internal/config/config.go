package config

import (
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/clickcrawl/internal/crawler"
)

// Default configuration values.
const (
	// DefaultNavigationTimeout bounds a single page load.
	DefaultNavigationTimeout = 15 * time.Second

	// DefaultSettleDelay is waited after every navigation and click so that
	// client-side routers and renderers can finish.
	DefaultSettleDelay = 3 * time.Second

	// DefaultParallel is the number of start URLs crawled at the same time.
	// Every run opens its own browser, so this stays low.
	DefaultParallel = 1

	// DefaultRenderer drives a real browser so click handlers run.
	DefaultRenderer = "chrome"

	// AppName is the application name used for XDG directory paths.
	AppName = "clickcrawl"

	// DefaultDataDir is where per-origin JSON artifacts are written.
	DefaultDataDir = "data"

	// DefaultReportDir is where graph reports are written.
	DefaultReportDir = "reports"

	// DefaultUserAgent identifies the crawler. Empty keeps the browser's own.
	DefaultUserAgent = ""

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// Report format names.
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Config holds every option of a crawl invocation. It is populated from
// defaults, then the config file, then command-line flags, and is passed
// down explicitly rather than kept in global state.
type Config struct {
	// StartURLs are the origins to crawl; each one is an independent run.
	StartURLs []string

	// Headless runs the browser without a window.
	Headless bool

	// BrowserPath is the Chrome executable. Empty looks it up on PATH.
	BrowserPath string

	// Renderer selects the render collaborator: "chrome" or "static".
	Renderer string

	// NoSandbox disables the Chrome sandbox, needed in some containers.
	NoSandbox bool

	// NavigationTimeout bounds each page load.
	NavigationTimeout time.Duration

	// SettleDelay is waited after each navigation and click.
	SettleDelay time.Duration

	// ClickAttributes are the attributes checked for click handlers, in order.
	ClickAttributes []string

	// MaxPages stops a run after this many visited URLs. 0 means unlimited.
	MaxPages int

	// MaxActionsPerPage caps triggered click handlers per page. 0 means unlimited.
	MaxActionsPerPage int

	// RateLimit is the maximum number of page loads per second. 0 disables it.
	RateLimit float64

	// Parallel is the number of start URLs crawled concurrently.
	Parallel int

	// DataDir receives one JSON provenance artifact per origin.
	DataDir string

	// ReportDir receives the graph reports.
	ReportDir string

	// ReportFormats lists the report renderings to write.
	ReportFormats []string

	// Proxy routes browser traffic through a SOCKS5 proxy ("host:port"),
	// or through an embedded Tor daemon when set to "tor". Empty is direct.
	Proxy string

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// UserAgent overrides the User-Agent header when non-empty.
	UserAgent string

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the explicit config file path, if any.
	ConfigFilePath string

	// SiteConfigs holds per-host settings loaded from the config file.
	SiteConfigs *File

	// DBDir is the directory of the run history database. Empty disables it.
	DBDir string

	// SaveToDB records every run in the history database.
	SaveToDB bool
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Headless:          true,
		Renderer:          DefaultRenderer,
		NavigationTimeout: DefaultNavigationTimeout,
		SettleDelay:       DefaultSettleDelay,
		ClickAttributes:   slices.Clone(crawler.DefaultClickAttributes),
		Parallel:          DefaultParallel,
		DataDir:           DefaultDataDir,
		ReportDir:         DefaultReportDir,
		ReportFormats:     []string{FormatHTML},
		TorStartupTimeout: DefaultTorStartupTimeout,
		UserAgent:         DefaultUserAgent,
		SiteConfigs:       &File{Sites: make(map[string]SiteConfig)},
	}
}

// ApplyFile overlays the values set in f onto c. Unset keys leave the current
// value in place, so flags parsed afterwards still take precedence.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}

	if len(f.StartURLs) > 0 {
		c.StartURLs = slices.Clone(f.StartURLs)
	}
	if f.Headless != nil {
		c.Headless = bool(*f.Headless)
	}
	if path := f.BrowserExecutable(); path != "" {
		c.BrowserPath = path
	}
	if f.Renderer != "" {
		c.Renderer = f.Renderer
	}
	if f.NoSandbox != nil {
		c.NoSandbox = bool(*f.NoSandbox)
	}
	if f.NavigationTimeout != nil {
		c.NavigationTimeout = f.NavigationTimeout.Duration()
	}
	if f.SettleDelay != nil {
		c.SettleDelay = f.SettleDelay.Duration()
	}
	if len(f.ClickAttributes) > 0 {
		c.ClickAttributes = slices.Clone(f.ClickAttributes)
	}
	if f.MaxPages != nil {
		c.MaxPages = *f.MaxPages
	}
	if f.MaxActionsPerPage != nil {
		c.MaxActionsPerPage = *f.MaxActionsPerPage
	}
	if f.RateLimit != nil {
		c.RateLimit = *f.RateLimit
	}
	if f.Parallel != nil {
		c.Parallel = *f.Parallel
	}
	if f.DataDir != "" {
		c.DataDir = f.DataDir
	}
	if f.ReportDir != "" {
		c.ReportDir = f.ReportDir
	}
	if len(f.ReportFormats) > 0 {
		c.ReportFormats = slices.Clone(f.ReportFormats)
	}
	if f.Proxy != "" {
		c.Proxy = f.Proxy
	}
	if f.UserAgent != "" {
		c.UserAgent = f.UserAgent
	}
	if f.DBDir != "" {
		c.DBDir = f.DBDir
		c.SaveToDB = true
	}

	if f.Sites == nil {
		f.Sites = make(map[string]SiteConfig)
	}
	c.SiteConfigs = f
}

// Site returns the effective settings for one host, falling back to the
// global click attributes and page limit when the site sets none.
func (c *Config) Site(host string) SiteConfig {
	var site SiteConfig
	if c.SiteConfigs != nil {
		site = c.SiteConfigs.GetSiteConfig(host)
	}
	if len(site.ClickAttributes) == 0 {
		site.ClickAttributes = c.ClickAttributes
	}
	if site.MaxPages == 0 {
		site.MaxPages = c.MaxPages
	}
	return site
}

// WantsFormat reports whether the named report format is enabled.
func (c *Config) WantsFormat(format string) bool {
	return slices.Contains(c.ReportFormats, format)
}

// XDGDataDir returns the XDG data directory for clickcrawl.
// On Linux: ~/.local/share/clickcrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for clickcrawl.
// On Linux: ~/.config/clickcrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for clickcrawl.
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
// It runs once after flags are parsed, before any browser is started.
func (c *Config) Validate() error {
	if len(c.StartURLs) == 0 {
		return ErrNoStartURL
	}

	if c.NavigationTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.SettleDelay < 0 {
		return ErrInvalidSettleDelay
	}

	if c.Parallel <= 0 {
		return ErrInvalidParallel
	}

	if c.MaxPages < 0 || c.MaxActionsPerPage < 0 {
		return ErrInvalidLimit
	}

	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}

	switch c.Renderer {
	case "chrome", "static":
	default:
		return ErrInvalidRenderer
	}

	for _, format := range c.ReportFormats {
		switch format {
		case FormatHTML, FormatMarkdown, FormatJSON:
		default:
			return ErrInvalidReportFormat
		}
	}

	return nil
}
