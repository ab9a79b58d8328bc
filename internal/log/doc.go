// Package log provides secure logging with automatic sanitization of
// credentials, built on top of the standard slog package.
//
// The .mdimg configuration file can carry cookies, Referer values, and
// custom headers used to satisfy hotlink-protected image hosts. Those
// values flow through the downloader and would otherwise end up in
// verbose log output. The SecureHandler masks attribute values whose
// keys or contents look like credentials before they reach the
// underlying handler.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Info("request prepared",
//	    "cookie", "session=abc123", // masked in output
//	    "url", "https://img.example.com/a.png",
//	)
package log
