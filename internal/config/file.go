package config

// File is the on-disk configuration. It is read as YAML, which also accepts
// the JSON config.json layout:
//
//	{"start_urls": ["https://app.example.com"], "headless": "true", "chrome_path": "/usr/bin/chromium"}
//
// Pointer fields distinguish "not set" from a zero value so that ApplyFile
// only overrides what the file actually names.
type File struct {
	StartURLs   []string `yaml:"start_urls,omitempty"`
	Headless    *Bool    `yaml:"headless,omitempty"`
	BrowserPath string   `yaml:"browser_path,omitempty"`

	// ChromePath is the older spelling of BrowserPath.
	ChromePath string `yaml:"chrome_path,omitempty"`

	Renderer          string    `yaml:"renderer,omitempty"`
	NoSandbox         *Bool     `yaml:"no_sandbox,omitempty"`
	NavigationTimeout *Duration `yaml:"navigation_timeout,omitempty"`
	SettleDelay       *Duration `yaml:"settle_delay,omitempty"`
	ClickAttributes   []string  `yaml:"click_attributes,omitempty"`
	MaxPages          *int      `yaml:"max_pages,omitempty"`
	MaxActionsPerPage *int      `yaml:"max_actions_per_page,omitempty"`
	RateLimit         *float64  `yaml:"rate_limit,omitempty"`
	Parallel          *int      `yaml:"parallel,omitempty"`
	DataDir           string    `yaml:"data_dir,omitempty"`
	ReportDir         string    `yaml:"report_dir,omitempty"`
	ReportFormats     []string  `yaml:"report_formats,omitempty"`
	Proxy             string    `yaml:"proxy,omitempty"`
	UserAgent         string    `yaml:"user_agent,omitempty"`
	DBDir             string    `yaml:"db_dir,omitempty"`

	// Sites maps a host (with port, if any) to its site-specific settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every site unless the site overrides them.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// BrowserExecutable returns browser_path, or chrome_path when only the
// older key is set.
func (f *File) BrowserExecutable() string {
	if f.BrowserPath != "" {
		return f.BrowserPath
	}
	return f.ChromePath
}
