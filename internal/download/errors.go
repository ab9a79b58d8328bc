package download

import (
	"errors"
	"fmt"
)

// Verification errors. These mark responses that arrived but cannot be
// committed. They are treated as transient: hotlink guards and CDNs
// sometimes serve an error body once and the real image on retry.
var (
	// ErrEmptyBody is returned when the response body was zero bytes.
	ErrEmptyBody = errors.New("empty response body")

	// ErrSizeMismatch is returned when the number of bytes received
	// differs from the server's Content-Length.
	ErrSizeMismatch = errors.New("incomplete download: size mismatch")

	// ErrHTMLBody is returned when the server answered an image request
	// with an HTML page. Hotlink walls often do this with status 200.
	ErrHTMLBody = errors.New("server returned an HTML page instead of an image")
)

// ErrBodyTooLarge is returned when the response body exceeds the
// configured size limit. Unlike the verification errors above it is
// not transient: the image will not shrink on retry.
var ErrBodyTooLarge = errors.New("response body exceeds size limit")

// HTTPError reports a non-200 response for an image request.
type HTTPError struct {
	// StatusCode is the HTTP response status.
	StatusCode int

	// URL is the requested URL.
	URL string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

// Retryable reports whether the status indicates a transient server
// problem. Only the classic gateway/overload statuses are retried;
// 4xx responses will not change on retry.
func (e *HTTPError) Retryable() bool {
	switch e.StatusCode {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
