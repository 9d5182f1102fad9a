// Package log provides secure logging built on top of the standard slog package.
//
// The SecureHandler masks sensitive information before it reaches the
// underlying handler:
//   - HTTP headers (Authorization, Cookie, X-Goog-Api-Key)
//   - fields of a Google service-account key (private_key, client_secret)
//   - OAuth access tokens, JWT assertions and API keys found by pattern
//
// Even in verbose mode these values are masked, so logs from scheduled runs
// can be shared without leaking the upload credentials.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("token refreshed", "access_token", tok) // masked
//	slog.SetDefault(logger)
package log
