package config

import "maps"

// SiteConfig holds settings for a single host.
type SiteConfig struct {
	// Cookie is sent with every request to this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers sent with every request to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// IgnorePatterns are glob patterns of paths that are never enqueued.
	IgnorePatterns []string `yaml:"ignore_patterns,omitempty"`

	// FollowPatterns, when set, restrict the frontier to matching paths.
	FollowPatterns []string `yaml:"follow_patterns,omitempty"`

	// ClickAttributes replace the global click attributes for this site.
	ClickAttributes []string `yaml:"click_attributes,omitempty"`

	// MaxPages overrides the global page limit. 0 keeps the global value.
	MaxPages int `yaml:"max_pages,omitempty"`
}

// GetSiteConfig returns the configuration for host merged over the defaults.
// Headers are merged key by key; every other non-empty site value replaces
// the default.
func (f *File) GetSiteConfig(host string) SiteConfig {
	result := f.Defaults
	result.Headers = maps.Clone(f.Defaults.Headers)

	site, ok := f.Sites[host]
	if !ok {
		return result
	}

	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(result.Headers, site.Headers)
	}
	if len(site.IgnorePatterns) > 0 {
		result.IgnorePatterns = site.IgnorePatterns
	}
	if len(site.FollowPatterns) > 0 {
		result.FollowPatterns = site.FollowPatterns
	}
	if len(site.ClickAttributes) > 0 {
		result.ClickAttributes = site.ClickAttributes
	}
	if site.MaxPages != 0 {
		result.MaxPages = site.MaxPages
	}

	return result
}
