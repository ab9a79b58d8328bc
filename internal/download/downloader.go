package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/mdimg/internal/config"
	"github.com/nao1215/mdimg/internal/model"
)

// tempSuffix distinguishes in-progress downloads from committed files.
const tempSuffix = ".part"

// Downloader fetches image references into a local directory with
// bounded retries. Each reference is processed independently; a failed
// URL never aborts the run.
type Downloader struct {
	// client issues the HTTP requests.
	client *Client

	// dir is the directory committed files land in.
	dir string

	// retries is the number of retries after the first attempt.
	retries int

	// backoff is the base backoff duration. The wait before retry n is
	// backoff * 2^(n-1).
	backoff time.Duration

	// maxBodySize limits the bytes read per response.
	maxBodySize int64

	// logger for structured logging.
	logger *slog.Logger
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithRetries sets the number of retries after the first attempt.
func WithRetries(n int) Option {
	return func(d *Downloader) {
		if n >= 0 {
			d.retries = n
		}
	}
}

// WithBackoff sets the base backoff duration.
func WithBackoff(b time.Duration) Option {
	return func(d *Downloader) {
		if b >= 0 {
			d.backoff = b
		}
	}
}

// WithMaxBodySize sets the maximum response body size.
func WithMaxBodySize(size int64) Option {
	return func(d *Downloader) {
		if size > 0 {
			d.maxBodySize = size
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Downloader) {
		d.logger = logger
	}
}

// NewDownloader creates a Downloader committing files into dir.
func NewDownloader(client *Client, dir string, opts ...Option) *Downloader {
	d := &Downloader{
		client:      client,
		dir:         dir,
		retries:     config.DefaultRetries,
		backoff:     config.DefaultBackoff,
		maxBodySize: config.DefaultMaxBodySize,
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.logger == nil {
		d.logger = slog.Default()
	}

	return d
}

// Download fetches one image reference and returns its result.
// The result is always usable; errors are recorded on it rather than
// returned, except that a cancelled context surfaces as a failed
// result with the context error.
func (d *Downloader) Download(ctx context.Context, ref model.ImageReference) model.DownloadResult {
	result := model.DownloadResult{
		URL:      ref.URL,
		Filename: ref.Filename,
	}

	destPath := filepath.Join(d.dir, ref.Filename)
	tempPath := destPath + tempSuffix
	reqURL := ref.RequestURL()

	// Skip the fetch when the committed file already matches the
	// server's advertised size. Some servers don't support HEAD; in
	// that case the length is unknown and the file is re-fetched.
	expected := d.client.ContentLength(ctx, reqURL)
	if expected >= 0 {
		if info, err := os.Stat(destPath); err == nil && info.Size() == expected {
			result.Status = model.StatusSkipped
			result.LocalPath = destPath
			result.ByteSize = info.Size()
			d.logger.Debug("skipping download, size matches",
				"url", ref.URL,
				"filename", ref.Filename,
				"size", info.Size(),
			)
			return result
		}
	}

	if err := os.MkdirAll(d.dir, 0750); err != nil {
		result.Status = model.StatusFailed
		result.Error = fmt.Sprintf("failed to create images directory: %v", err)
		return result
	}

	var lastErr error
	for attempt := 1; attempt <= d.retries+1; attempt++ {
		result.Attempts = attempt

		size, err := d.fetchOnce(ctx, reqURL, tempPath, destPath, expected)
		if err == nil {
			result.Status = model.StatusDownloaded
			result.LocalPath = destPath
			result.ByteSize = size
			d.logger.Debug("downloaded",
				"url", ref.URL,
				"filename", ref.Filename,
				"size", size,
				"attempts", attempt,
			)
			return result
		}
		lastErr = err

		if !retryable(err) || attempt == d.retries+1 {
			break
		}

		wait := d.backoff << (attempt - 1)
		d.logger.Debug("retrying download",
			"url", ref.URL,
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
		select {
		case <-ctx.Done():
			result.Status = model.StatusFailed
			result.Error = ctx.Err().Error()
			return result
		case <-time.After(wait):
		}
	}

	result.Status = model.StatusFailed
	result.Error = lastErr.Error()
	d.logger.Warn("download failed",
		"url", ref.URL,
		"attempts", result.Attempts,
		"error", lastErr,
	)
	return result
}

// fetchOnce performs one GET attempt: stream to the temporary file,
// verify, and commit with an atomic rename. The temporary file is
// removed on any verification failure so a rejected body never
// survives an interrupted run.
func (d *Downloader) fetchOnce(ctx context.Context, reqURL, tempPath, destPath string, expected int64) (int64, error) {
	resp, err := d.client.Get(ctx, reqURL)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if isHTML(resp.Header.Get("Content-Type")) {
		return 0, ErrHTMLBody
	}

	// Prefer the GET's Content-Length when HEAD gave nothing.
	if expected < 0 && resp.ContentLength >= 0 {
		expected = resp.ContentLength
	}

	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // Path derives from sanitized filename
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	// Read one byte past the limit so an oversized body is detected
	// rather than silently truncated and committed.
	total, copyErr := io.Copy(f, io.LimitReader(resp.Body, d.maxBodySize+1))
	closeErr := f.Close()

	if copyErr != nil {
		d.discardTemp(tempPath)
		return 0, fmt.Errorf("failed to write %s: %w", tempPath, copyErr)
	}
	if closeErr != nil {
		d.discardTemp(tempPath)
		return 0, fmt.Errorf("failed to close %s: %w", tempPath, closeErr)
	}

	if total > d.maxBodySize {
		d.discardTemp(tempPath)
		return 0, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, d.maxBodySize)
	}
	if total == 0 {
		d.discardTemp(tempPath)
		return 0, ErrEmptyBody
	}
	if expected >= 0 && total != expected {
		d.discardTemp(tempPath)
		return 0, fmt.Errorf("%w: got %d, expected %d", ErrSizeMismatch, total, expected)
	}

	if err := os.Rename(tempPath, destPath); err != nil {
		d.discardTemp(tempPath)
		return 0, fmt.Errorf("failed to commit %s: %w", destPath, err)
	}

	return total, nil
}

// discardTemp removes a rejected temporary file. Best effort.
func (d *Downloader) discardTemp(tempPath string) {
	if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
		d.logger.Warn("failed to remove temporary file", "path", tempPath, "error", err)
	}
}

// retryable reports whether another attempt could succeed.
// Cancellation, filesystem failures, and oversized bodies are final;
// HTTP statuses delegate to HTTPError; the remaining verification
// failures and transport errors are considered transient.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrBodyTooLarge) {
		return false
	}

	// A full disk or unwritable directory won't clear up between
	// attempts.
	var pathErr *os.PathError
	var linkErr *os.LinkError
	if errors.As(err, &pathErr) || errors.As(err, &linkErr) {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Retryable()
	}

	return true
}

// isHTML reports whether a Content-Type header denotes an HTML page.
func isHTML(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}
