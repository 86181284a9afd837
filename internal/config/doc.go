// Package config provides the crawl configuration: defaults, the YAML or
// JSON config file with per-site settings, and validation.
package config
