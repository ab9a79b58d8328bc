package model

import "fmt"

// DownloadStatus describes the outcome of a single download attempt
// sequence for one URL.
type DownloadStatus int

const (
	// StatusDownloaded means the file was fetched, verified, and
	// committed to its final path.
	StatusDownloaded DownloadStatus = iota

	// StatusSkipped means the final file already existed with a size
	// matching the server's Content-Length, so no fetch was performed.
	StatusSkipped

	// StatusFailed means all retry attempts were exhausted or the
	// response failed verification. The URL is left untouched in the
	// rewritten document so the user can re-run later.
	StatusFailed
)

// String returns a human-readable representation of the status.
func (s DownloadStatus) String() string {
	switch s {
	case StatusDownloaded:
		return "downloaded"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so the status appears
// as a readable string in JSON reports and the history database.
func (s DownloadStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so serialized
// results can be read back.
func (s *DownloadStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "downloaded":
		*s = StatusDownloaded
	case "skipped":
		*s = StatusSkipped
	case "failed":
		*s = StatusFailed
	default:
		return fmt.Errorf("unknown download status %q", text)
	}
	return nil
}

// DownloadResult records the outcome of downloading one image URL.
type DownloadResult struct {
	// URL is the original remote URL from the document.
	URL string `json:"url"`

	// Filename is the basename the file was (or would have been)
	// committed under.
	Filename string `json:"filename"`

	// LocalPath is the final path of the committed file.
	// Empty when the download failed.
	LocalPath string `json:"local_path,omitempty"`

	// ByteSize is the size of the committed file in bytes.
	ByteSize int64 `json:"byte_size"`

	// Status is the download outcome.
	Status DownloadStatus `json:"status"`

	// Attempts is the number of HTTP attempts made, including the
	// successful one. Zero for skipped downloads.
	Attempts int `json:"attempts"`

	// Error holds the final error message for failed downloads.
	Error string `json:"error,omitempty"`
}

// OK reports whether the local file exists and the reference can be
// rewritten to the destination prefix.
func (r DownloadResult) OK() bool {
	return r.Status == StatusDownloaded || r.Status == StatusSkipped
}
