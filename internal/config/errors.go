package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoStartURL is returned when neither the config file nor the
	// command line names a start URL.
	ErrNoStartURL = errors.New("no start URL specified: pass a URL or set start_urls in the config file")

	// ErrInvalidTimeout is returned when the navigation timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid navigation timeout: must be positive")

	// ErrInvalidSettleDelay is returned when the settle delay is negative.
	ErrInvalidSettleDelay = errors.New("invalid settle delay: must be non-negative")

	// ErrInvalidParallel is returned when the number of parallel runs is not positive.
	ErrInvalidParallel = errors.New("invalid parallel: must be positive")

	// ErrInvalidLimit is returned when max_pages or max_actions_per_page is negative.
	ErrInvalidLimit = errors.New("invalid limit: max pages and max actions must be non-negative")

	// ErrInvalidRateLimit is returned when the rate limit is negative.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")

	// ErrInvalidRenderer is returned for a renderer other than chrome or static.
	ErrInvalidRenderer = errors.New("invalid renderer: must be chrome or static")

	// ErrInvalidReportFormat is returned for an unknown report format.
	ErrInvalidReportFormat = errors.New("invalid report format: must be html, markdown or json")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
