// Package log provides secure logging built on top of the standard slog
// package.
//
// The SecureHandler masks sensitive information before it reaches the
// underlying text or JSON handler:
//   - values of sensitive keys (cookie, authorization, token, password, ...)
//   - header maps from site configuration, value by value
//   - values that look like secrets (JWTs, bearer and basic credentials)
//   - userinfo and secret query parameters of every URL in a message or
//     string attribute, including the "a -> b -> c" discovery paths
//
// Crawled URLs are logged on every visit, so even verbose output stays safe
// to share.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//
//	logger.Info("visited URL",
//	    "url", "https://app.example.com/reset?token=abc", // token=REDACTED
//	    "cookie", "session=abc123",                      // ***REDACTED***
//	)
package log
