// Package tor provides the network transport used by the crawler.
//
// A Client either dials directly or routes every connection through a SOCKS5
// proxy, typically a Tor daemon. The static renderer uses the HTTP clients it
// builds, and the Chrome renderer receives its ProxyURL as a browser flag.
// Setting the proxy to "tor" starts an EmbeddedTor through tornago instead of
// relying on an external daemon.
package tor
