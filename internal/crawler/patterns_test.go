package crawler

import "testing"

// TestMatchPattern tests glob matching of URL paths.
func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		// Prefix patterns with /*
		{"admin prefix match", "/admin/*", "/admin/dashboard", true},
		{"admin prefix exact", "/admin/*", "/admin", true},
		{"admin prefix no match", "/admin/*", "/user/profile", false},
		{"admin prefix partial no match", "/admin/*", "/administrator", false},
		{"nested admin", "/admin/*", "/admin/users/edit", true},

		// Extension patterns with *.
		{"pdf extension", "*.pdf", "/docs/file.pdf", true},
		{"pdf extension no match", "*.pdf", "/docs/file.txt", false},

		// Exact and single-character wildcards
		{"exact match", "/logout", "/logout", true},
		{"exact no match", "/logout", "/login", false},
		{"wildcard middle", "/api/v?/users", "/api/v1/users", true},
		{"wildcard middle no match", "/api/v?/users", "/api/v10/users", false},

		// Bare segment patterns
		{"bare segment prefix", "logout*", "/account/logout-all", true},

		// Root path
		{"root path", "/", "/", true},
		{"root no match prefix", "/admin/*", "/", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := matchPattern(tt.pattern, tt.path); got != tt.want {
				t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}
}

// TestPathFilter tests ignore and follow pattern handling.
func TestPathFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		filter *PathFilter
		url    string
		want   bool
	}{
		{"nil filter allows everything", nil, "https://a.com/admin", true},
		{"empty filter allows everything", NewPathFilter(nil, nil), "https://a.com/x", true},
		{"ignored path", NewPathFilter([]string{"/logout"}, nil), "https://a.com/logout", false},
		{"not ignored path", NewPathFilter([]string{"/logout"}, nil), "https://a.com/home", true},
		{"ignored hash route", NewPathFilter([]string{"/logout"}, nil), "https://a.com/#/logout", false},
		{"followed path", NewPathFilter(nil, []string{"/app/*"}), "https://a.com/app/users", true},
		{"not followed path", NewPathFilter(nil, []string{"/app/*"}), "https://a.com/blog", false},
		{"followed hash route", NewPathFilter(nil, []string{"/app/*"}), "https://a.com/#/app/users?tab=1", true},
		{"ignore wins over follow", NewPathFilter([]string{"/app/admin*"}, []string{"/app/*"}), "https://a.com/app/admin", false},
		{"empty path is root", NewPathFilter(nil, []string{"/"}), "https://a.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.filter.Allow(tt.url); got != tt.want {
				t.Errorf("Allow(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}
