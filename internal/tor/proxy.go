package tor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// checkProxyTimeout bounds the SOCKS5 handshake done by CheckConnection.
const checkProxyTimeout = 2 * time.Second

// maxRedirects is the redirect limit of clients built by NewHTTPClient.
const maxRedirects = 10

// Client routes crawler traffic through a SOCKS5 proxy (usually Tor) or, when
// no proxy is configured, directly.
type Client struct {
	// proxyAddress is the SOCKS5 proxy in "host:port" form; empty for direct.
	proxyAddress string

	// dialer opens connections through the proxy, or directly.
	dialer proxy.Dialer

	// timeout is the overall timeout of HTTP clients built from this client.
	timeout time.Duration
}

// NewClient creates a client for the given proxy. The address may be
// "host:port" or a "socks5://host:port" URL. An empty address yields a
// direct client.
//
// The proxy is not contacted here; call CheckConnection for that.
func NewClient(proxyAddress string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(proxyAddress) == "" {
		return NewDirectClient(timeout), nil
	}

	address, err := ParseProxyAddress(proxyAddress)
	if err != nil {
		return nil, err
	}

	dialer, err := proxy.SOCKS5("tcp", address, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	return &Client{
		proxyAddress: address,
		dialer:       dialer,
		timeout:      timeout,
	}, nil
}

// NewDirectClient creates a client that does not use a proxy.
func NewDirectClient(timeout time.Duration) *Client {
	return &Client{
		dialer:  proxy.Direct,
		timeout: timeout,
	}
}

// ParseProxyAddress validates a proxy setting and returns its "host:port"
// form. A "socks5://" or "socks5h://" scheme prefix is accepted.
func ParseProxyAddress(raw string) (string, error) {
	address := strings.TrimSpace(raw)
	for _, prefix := range []string{"socks5://", "socks5h://"} {
		if strings.HasPrefix(strings.ToLower(address), prefix) {
			address = address[len(prefix):]
			break
		}
	}
	address = strings.TrimSuffix(address, "/")

	if !isValidProxyAddress(address) {
		return "", fmt.Errorf("%w: %q", ErrInvalidProxyAddress, raw)
	}
	return address, nil
}

// isValidProxyAddress reports whether address is "host:port" with a non-empty
// host and a port in 1-65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" || port == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// SOCKS5 protocol constants
const (
	socks5Version       = 0x05
	socks5AuthNone      = 0x00
	socks5AuthNoAccept  = 0xFF
	socks5CmdConnect    = 0x01
	socks5AddrTypeDomID = 0x03

	// socks5CheckHost is the CONNECT target of the handshake check. Any
	// reply, success or failure, proves the proxy processes requests.
	socks5CheckHost = "example.com"
)

// CheckConnection verifies that the proxy speaks SOCKS5 without
// authentication and answers a CONNECT request. A direct client is always OK.
func (c *Client) CheckConnection(ctx context.Context) ProxyStatus {
	if !c.IsProxied() {
		return ProxyStatusOK
	}

	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.proxyAddress)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	// Greeting: version, one method, no authentication.
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}

	authResp := make([]byte, 2)
	if _, err := io.ReadFull(conn, authResp); err != nil {
		if isTimeout(err) {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}
	if authResp[0] != socks5Version {
		return ProxyStatusWrongType
	}
	if authResp[1] == socks5AuthNoAccept || authResp[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}

	// CONNECT: version, command, reserved, domain type, domain, port.
	checkPort := uint16(80)
	connectReq := []byte{
		socks5Version,
		socks5CmdConnect,
		0x00,
		socks5AddrTypeDomID,
		byte(len(socks5CheckHost)),
	}
	connectReq = append(connectReq, []byte(socks5CheckHost)...)
	connectReq = append(connectReq, byte(checkPort>>8), byte(checkPort&0xFF))

	if _, err := conn.Write(connectReq); err != nil {
		return ProxyStatusCannotConnect
	}

	connectResp := make([]byte, 4)
	if _, err := io.ReadFull(conn, connectResp); err != nil {
		if isTimeout(err) {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}
	if connectResp[0] != socks5Version {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}

// isTimeout reports whether err is a network timeout.
func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsProxied reports whether traffic goes through a proxy.
func (c *Client) IsProxied() bool {
	return c.proxyAddress != ""
}

// ProxyAddress returns the proxy "host:port", or "" for a direct client.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// ProxyURL returns the proxy as a "socks5://host:port" URL suitable for a
// browser's proxy-server switch, or "" for a direct client.
func (c *Client) ProxyURL() string {
	if !c.IsProxied() {
		return ""
	}
	return "socks5://" + c.proxyAddress
}

// NewHTTPClient creates an HTTP client that routes through the proxy and
// keeps cookies across requests.
func (c *Client) NewHTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext:         c.DialContext,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
	}
	if !c.IsProxied() {
		transport.Proxy = http.ProxyFromEnvironment
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	return &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// HTTPClientWithConfig creates an HTTP client that adds cookie and headers to
// every request, redirects included. Site-specific credentials are passed
// this way.
func (c *Client) HTTPClientWithConfig(cookie string, headers map[string]string) *http.Client {
	client := c.NewHTTPClient()
	if cookie == "" && len(headers) == 0 {
		return client
	}

	client.Transport = &headerInjectingTransport{
		base:    client.Transport,
		cookie:  cookie,
		headers: headers,
	}
	return client
}

// DialContext opens a connection through the proxy, honoring ctx.
func (c *Client) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if cd, ok := c.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)

	go func() {
		conn, err := c.dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case result := <-resultCh:
		return result.conn, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// headerInjectingTransport adds a cookie and fixed headers to every request.
type headerInjectingTransport struct {
	base    http.RoundTripper
	cookie  string
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}

	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
