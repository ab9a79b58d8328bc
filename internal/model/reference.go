package model

import (
	"crypto/sha1" //nolint:gosec // Used for stable fallback filenames, not security
	"encoding/hex"
	"net/url"
	"path"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ImageReference represents a single remote image referenced by a
// Markdown document. The filename is inferred from the URL's last path
// segment and is reused both for the local copy under the images
// directory and for the rewritten destination link.
type ImageReference struct {
	// URL is the remote image URL exactly as it appears in the document.
	// It may carry a query string or fragment after the extension.
	URL string `json:"url"`

	// Filename is the sanitized basename derived from the URL path.
	// This is the name the downloaded file is committed under.
	Filename string `json:"filename"`

	// Extension is the lowercased image extension including the dot
	// (".png", ".jpg", ".jpeg", ".gif").
	Extension string `json:"extension"`
}

// extensionPattern matches a supported raster image extension at the
// end of a URL path.
var extensionPattern = regexp.MustCompile(`(?i)\.(png|jpe?g|gif)$`)

// hostileChars matches characters that are unsafe in filenames on
// common filesystems (Windows reserved characters plus control bytes).
var hostileChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// NewImageReference creates an ImageReference for the given remote URL.
// The filename is derived with SafeBasename and the extension is taken
// from the URL path.
func NewImageReference(rawURL string) ImageReference {
	name := SafeBasename(rawURL)
	return ImageReference{
		URL:       rawURL,
		Filename:  name,
		Extension: strings.ToLower(path.Ext(name)),
	}
}

// SafeBasename derives a filesystem-safe filename from a remote URL.
//
// The query string and fragment are dropped, the last path segment is
// percent-decoded and NFC-normalized, and characters that are invalid
// in filenames are replaced with underscores. If the path has no
// usable basename (for example a URL ending in "/"), a stable name is
// generated from the host and a truncated SHA-1 of the full URL so
// that repeated runs map the same URL to the same file.
func SafeBasename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fallbackName(rawURL, "")
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" {
		name = ""
	}
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	name = norm.NFC.String(name)

	if name == "" {
		ext := ""
		if m := extensionPattern.FindString(u.Path); m != "" {
			ext = strings.ToLower(m)
		}
		host := strings.ReplaceAll(u.Host, ":", "_")
		return host + "_" + fallbackName(rawURL, ext)
	}

	return hostileChars.ReplaceAllString(name, "_")
}

// fallbackName builds a hash-based filename for URLs without a usable
// basename. The extension defaults to ".img" when none can be inferred.
func fallbackName(rawURL, ext string) string {
	if ext == "" {
		ext = ".img"
	}
	sum := sha1.Sum([]byte(rawURL)) //nolint:gosec // Naming only
	return hex.EncodeToString(sum[:])[:12] + ext
}

// RequestURL returns the URL to use for the HTTP request. Fragments
// are never sent to servers, and a stray "#" inside a Markdown link
// would otherwise end up percent-encoded in the request path.
func (r ImageReference) RequestURL() string {
	raw, _, _ := strings.Cut(r.URL, "#")
	return strings.TrimSpace(raw)
}
