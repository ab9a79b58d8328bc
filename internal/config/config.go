package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultImagesDir is the directory downloaded images are committed to,
	// relative to the current working directory.
	DefaultImagesDir = "images"

	// DefaultSuffix is appended to the input base name to form the
	// rewritten document's filename ("notes.md" -> "notes_new.md").
	DefaultSuffix = "_new"

	// DefaultTimeout is the per-request HTTP timeout. Image hosts are
	// ordinary clearnet servers, so 10 seconds covers slow responses
	// without stalling a batch for long on a dead host.
	DefaultTimeout = 10 * time.Second

	// DefaultRetries is the number of retries after the first failed
	// attempt. Combined with backoff this tolerates brief outages
	// without hammering a struggling server.
	DefaultRetries = 3

	// DefaultBackoff is the base backoff duration. The wait before
	// retry n is DefaultBackoff * 2^(n-1), so 500ms yields
	// 0.5s, 1s, 2s for the default three retries.
	DefaultBackoff = 500 * time.Millisecond

	// DefaultDelay is the minimum interval between requests to the
	// same host. A politeness setting: hotlink-protected hosts are
	// quick to rate limit unfamiliar clients.
	DefaultDelay = 1 * time.Second

	// DefaultBatchSize is the number of documents processed
	// concurrently. Downloads within one document stay sequential;
	// this only parallelizes across input files.
	DefaultBatchSize = 4

	// DefaultUserAgent identifies mdimg in HTTP requests.
	DefaultUserAgent = "mdimg/1.0 (+https://github.com/nao1215/mdimg)"

	// DefaultMaxBodySize limits the response body size read per image.
	// 50MB is generous for raster images while preventing memory and
	// disk exhaustion from a misbehaving server.
	DefaultMaxBodySize = 50 * 1024 * 1024 // 50MB

	// AppName is the application name used for XDG directory paths.
	AppName = "mdimg"
)

// Config holds all options for one mdimg invocation.
// It is populated from CLI flags and the optional .mdimg file and
// passed through the application via dependency injection rather than
// global state.
type Config struct {
	// Patterns are the input file globs. A pattern without the ".md"
	// extension has it appended before glob expansion.
	Patterns []string

	// Prefix is the destination prefix substituted for the original
	// URL, e.g. "https://cdn.example.com/blog/". Normalized to end
	// with "/" before use.
	Prefix string

	// ImagesDir is where downloaded files are committed.
	ImagesDir string

	// Suffix is appended to the input base name for the output file.
	Suffix string

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// Retries is the number of retries after the first failed attempt.
	Retries int

	// Backoff is the base backoff duration between retries.
	Backoff time.Duration

	// Delay is the minimum interval between requests to the same host.
	Delay time.Duration

	// BatchSize is the number of documents processed concurrently.
	BatchSize int

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes.
	MaxBodySize int64

	// ConfigFilePath is an explicit path to the .mdimg file. If empty,
	// the current directory and then the home directory are searched.
	ConfigFilePath string

	// Hosts holds per-host settings loaded from the config file.
	Hosts *File

	// DryRun extracts and reports without downloading or writing.
	DryRun bool

	// NoAudit disables the EXIF metadata audit of committed images.
	NoAudit bool

	// JSONReport selects JSON report output.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown report output.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile writes the report to this path instead of stdout.
	ReportFile string

	// Verbose enables slog.LevelDebug output.
	Verbose bool

	// DBDir is the directory holding the SQLite history database.
	// Defaults to the XDG data directory.
	DBDir string

	// SaveHistory indicates whether completed runs are recorded in the
	// history database.
	SaveHistory bool
}

// NewConfig creates a Config with default values. Many defaults are
// non-zero, so a constructor documents them in one place instead of
// relying on zero values.
func NewConfig() *Config {
	return &Config{
		ImagesDir:   DefaultImagesDir,
		Suffix:      DefaultSuffix,
		Timeout:     DefaultTimeout,
		Retries:     DefaultRetries,
		Backoff:     DefaultBackoff,
		Delay:       DefaultDelay,
		BatchSize:   DefaultBatchSize,
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
	}
}

// XDGDataDir returns the XDG data directory for mdimg.
// On Linux: ~/.local/share/mdimg
// On macOS: ~/Library/Application Support/mdimg
// On Windows: %LOCALAPPDATA%\mdimg
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// NormalizePrefix guarantees the destination prefix ends with "/".
// An empty prefix stays empty; validation rejects it separately.
func NormalizePrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	if !strings.HasSuffix(prefix, "/") {
		return prefix + "/"
	}
	return prefix
}

// Validate checks the configuration and returns the first problem
// found. Called once after flag parsing, before any processing, so
// errors surface with a clear message up front.
func (c *Config) Validate() error {
	if len(c.Patterns) == 0 {
		return ErrNoPattern
	}

	if c.Prefix == "" {
		return ErrNoPrefix
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Retries < 0 {
		return ErrInvalidRetries
	}

	if c.Backoff < 0 {
		return ErrInvalidBackoff
	}

	if c.Delay < 0 {
		return ErrInvalidDelay
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	return nil
}
