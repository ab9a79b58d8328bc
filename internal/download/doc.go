// Package download fetches remote images to a local directory.
//
// Downloads are written to a ".part" temporary file, verified against
// the server's Content-Length, and committed with an atomic rename so
// a partial download never looks complete at the final path. Transient
// failures are retried a bounded number of times with exponential
// backoff; exhausted URLs are reported failed and processing continues.
//
// The HTTP client applies per-host request settings from the .mdimg
// configuration (Referer, cookies, extra headers), which is how
// hotlink-protected hosts are satisfied, and gates requests with a
// per-host rate limiter.
package download
