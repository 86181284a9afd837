package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/clickcrawl/internal/crawler"
	"github.com/nao1215/clickcrawl/internal/tor"
)

// Renderer names accepted by Open.
const (
	RendererChrome = "chrome"
	RendererStatic = "static"
)

// ErrUnknownRenderer is returned by Open for an unsupported renderer name.
var ErrUnknownRenderer = errors.New("unknown renderer")

// Settings selects and configures a render collaborator for one run.
type Settings struct {
	// Renderer is RendererChrome or RendererStatic.
	Renderer string

	// Headless runs Chrome without a window.
	Headless bool

	// ExecPath is the Chrome executable; empty looks it up on PATH.
	ExecPath string

	// NoSandbox disables the Chrome sandbox.
	NoSandbox bool

	// UserAgent overrides the User-Agent when non-empty.
	UserAgent string

	// Headers and Cookie are sent with every request.
	Headers map[string]string
	Cookie  string

	// Transport routes traffic through a proxy; nil means direct.
	Transport *tor.Client

	// NavigationTimeout bounds link navigations of the static renderer.
	NavigationTimeout time.Duration

	Logger *slog.Logger
}

// Open creates the render collaborator described by s. Every run should open
// its own so sessions are never shared.
func Open(ctx context.Context, s Settings) (crawler.Browser, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	transport := s.Transport
	if transport == nil {
		transport = tor.NewDirectClient(s.NavigationTimeout)
	}

	switch s.Renderer {
	case RendererChrome, "":
		b, err := NewChrome(ctx,
			WithHeadless(s.Headless),
			WithExecPath(s.ExecPath),
			WithNoSandbox(s.NoSandbox),
			WithProxyURL(transport.ProxyURL()),
			WithChromeUserAgent(s.UserAgent),
			WithChromeHeaders(s.Headers, s.Cookie),
			WithChromeLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		return b, nil
	case RendererStatic:
		return NewStatic(
			WithHTTPClient(transport.HTTPClientWithConfig(s.Cookie, s.Headers)),
			WithStaticUserAgent(s.UserAgent),
			WithClickTimeout(s.NavigationTimeout),
			WithStaticLogger(logger),
		), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRenderer, s.Renderer)
	}
}
