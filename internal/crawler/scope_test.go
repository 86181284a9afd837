package crawler

import (
	"errors"
	"testing"
)

// TestScope tests same-origin decisions.
func TestScope(t *testing.T) {
	t.Parallel()

	scope, err := NewScope("https://app.example.com:8443/start")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"same authority", "https://app.example.com:8443/other", true},
		{"scheme is ignored", "http://app.example.com:8443/", true},
		{"host case is ignored", "https://APP.example.com:8443/x", true},
		{"different port", "https://app.example.com/x", false},
		{"different host", "https://other.com:8443/x", false},
		{"subdomain", "https://api.app.example.com:8443/x", false},
		{"relative URL has no host", "/x", false},
		{"javascript URL", "javascript:void(0)", false},
		{"unparseable URL", "http://[::1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := scope.InScope(tt.url); got != tt.want {
				t.Errorf("InScope(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}

	t.Run("authority is lower-cased", func(t *testing.T) {
		t.Parallel()

		s, err := NewScope("https://App.Example.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.Authority() != "app.example.com" {
			t.Errorf("expected authority 'app.example.com', got %q", s.Authority())
		}
	})

	t.Run("start URL without host is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := NewScope("/relative/only")
		if !errors.Is(err, ErrInvalidStartURL) {
			t.Errorf("expected ErrInvalidStartURL, got %v", err)
		}
	})
}
