package download

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/mdimg/internal/model"
)

// newTestClient creates a Client without rate limiting for tests.
func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(5*time.Second, WithDelay(0))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

// TestDownload tests the fetch-verify-commit sequence.
func TestDownload(t *testing.T) {
	t.Parallel()

	t.Run("downloads and commits a file", func(t *testing.T) {
		t.Parallel()

		body := []byte("fake png bytes")
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(body)
		}))
		defer srv.Close()

		dir := t.TempDir()
		d := NewDownloader(newTestClient(t), dir, WithBackoff(time.Millisecond))

		ref := model.NewImageReference(srv.URL + "/photo.png")
		result := d.Download(context.Background(), ref)

		if result.Status != model.StatusDownloaded {
			t.Fatalf("expected downloaded, got %s (%s)", result.Status, result.Error)
		}
		if result.ByteSize != int64(len(body)) {
			t.Errorf("expected %d bytes, got %d", len(body), result.ByteSize)
		}

		got, err := os.ReadFile(filepath.Join(dir, "photo.png"))
		if err != nil {
			t.Fatalf("committed file missing: %v", err)
		}
		if string(got) != string(body) {
			t.Error("committed file content differs from served body")
		}
	})

	t.Run("no temporary file remains after success", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/gif")
			_, _ = w.Write([]byte("gif!"))
		}))
		defer srv.Close()

		dir := t.TempDir()
		d := NewDownloader(newTestClient(t), dir)

		ref := model.NewImageReference(srv.URL + "/anim.gif")
		if result := d.Download(context.Background(), ref); result.Status != model.StatusDownloaded {
			t.Fatalf("expected downloaded, got %s", result.Status)
		}

		if _, err := os.Stat(filepath.Join(dir, "anim.gif.part")); !os.IsNotExist(err) {
			t.Error("expected temporary file to be gone after commit")
		}
	})

	t.Run("retries transient server errors then succeeds", func(t *testing.T) {
		t.Parallel()

		var calls int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			calls++
			if calls <= 2 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte("jpeg"))
		}))
		defer srv.Close()

		dir := t.TempDir()
		d := NewDownloader(newTestClient(t), dir,
			WithRetries(3),
			WithBackoff(time.Millisecond),
		)

		ref := model.NewImageReference(srv.URL + "/retry.jpg")
		result := d.Download(context.Background(), ref)

		if result.Status != model.StatusDownloaded {
			t.Fatalf("expected downloaded after retries, got %s (%s)", result.Status, result.Error)
		}
		if result.Attempts != 3 {
			t.Errorf("expected 3 attempts, got %d", result.Attempts)
		}
	})

	t.Run("fails after exhausting retries", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		dir := t.TempDir()
		d := NewDownloader(newTestClient(t), dir,
			WithRetries(2),
			WithBackoff(time.Millisecond),
		)

		ref := model.NewImageReference(srv.URL + "/gone.png")
		result := d.Download(context.Background(), ref)

		if result.Status != model.StatusFailed {
			t.Fatalf("expected failed, got %s", result.Status)
		}
		if result.Attempts != 3 {
			t.Errorf("expected 3 attempts (1 + 2 retries), got %d", result.Attempts)
		}
		if !strings.Contains(result.Error, "503") {
			t.Errorf("expected error to mention status, got %q", result.Error)
		}

		// Neither the final file nor temp litter may exist.
		if _, err := os.Stat(filepath.Join(dir, "gone.png")); !os.IsNotExist(err) {
			t.Error("expected no committed file for failed download")
		}
		if _, err := os.Stat(filepath.Join(dir, "gone.png.part")); !os.IsNotExist(err) {
			t.Error("expected no temporary file for failed download")
		}
	})

	t.Run("does not retry 404", func(t *testing.T) {
		t.Parallel()

		var calls int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				calls++
			}
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		dir := t.TempDir()
		d := NewDownloader(newTestClient(t), dir,
			WithRetries(3),
			WithBackoff(time.Millisecond),
		)

		ref := model.NewImageReference(srv.URL + "/missing.png")
		result := d.Download(context.Background(), ref)

		if result.Status != model.StatusFailed {
			t.Fatalf("expected failed, got %s", result.Status)
		}
		if calls != 1 {
			t.Errorf("expected a single GET for 404, got %d", calls)
		}
	})

	t.Run("rejects zero-byte body", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/png")
			// 200 with empty body
		}))
		defer srv.Close()

		dir := t.TempDir()
		d := NewDownloader(newTestClient(t), dir,
			WithRetries(1),
			WithBackoff(time.Millisecond),
		)

		ref := model.NewImageReference(srv.URL + "/empty.png")
		result := d.Download(context.Background(), ref)

		if result.Status != model.StatusFailed {
			t.Fatalf("expected failed for empty body, got %s", result.Status)
		}
		if _, err := os.Stat(filepath.Join(dir, "empty.png")); !os.IsNotExist(err) {
			t.Error("zero-byte download must not be committed")
		}
	})

	t.Run("rejects body exceeding size limit", func(t *testing.T) {
		t.Parallel()

		var gets int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				gets++
			}
			w.Header().Set("Content-Type", "image/png")
			// Flush between writes so the body goes out chunked,
			// without a Content-Length header.
			flusher := w.(http.Flusher)
			_, _ = w.Write([]byte("0123456789"))
			flusher.Flush()
			_, _ = w.Write([]byte("0123456789"))
			flusher.Flush()
		}))
		defer srv.Close()

		dir := t.TempDir()
		d := NewDownloader(newTestClient(t), dir,
			WithRetries(3),
			WithBackoff(time.Millisecond),
			WithMaxBodySize(10),
		)

		ref := model.NewImageReference(srv.URL + "/huge.png")
		result := d.Download(context.Background(), ref)

		if result.Status != model.StatusFailed {
			t.Fatalf("expected failed for oversized body, got %s", result.Status)
		}
		if !strings.Contains(result.Error, "size limit") {
			t.Errorf("expected error to mention the size limit, got %q", result.Error)
		}
		if gets != 1 {
			t.Errorf("expected a single GET for oversized body, got %d", gets)
		}
		if _, err := os.Stat(filepath.Join(dir, "huge.png")); !os.IsNotExist(err) {
			t.Error("oversized download must not be committed")
		}
		if _, err := os.Stat(filepath.Join(dir, "huge.png.part")); !os.IsNotExist(err) {
			t.Error("expected no temporary file for oversized download")
		}
	})

	t.Run("commits body exactly at size limit", func(t *testing.T) {
		t.Parallel()

		body := []byte("0123456789")
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(body)
		}))
		defer srv.Close()

		dir := t.TempDir()
		d := NewDownloader(newTestClient(t), dir, WithMaxBodySize(int64(len(body))))

		ref := model.NewImageReference(srv.URL + "/exact.png")
		result := d.Download(context.Background(), ref)

		if result.Status != model.StatusDownloaded {
			t.Fatalf("expected downloaded at limit, got %s (%s)", result.Status, result.Error)
		}
		if result.ByteSize != int64(len(body)) {
			t.Errorf("expected %d bytes, got %d", len(body), result.ByteSize)
		}
	})

	t.Run("rejects html body from hotlink wall", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html>403 hotlink denied</html>"))
		}))
		defer srv.Close()

		dir := t.TempDir()
		d := NewDownloader(newTestClient(t), dir,
			WithRetries(1),
			WithBackoff(time.Millisecond),
		)

		ref := model.NewImageReference(srv.URL + "/walled.png")
		result := d.Download(context.Background(), ref)

		if result.Status != model.StatusFailed {
			t.Fatalf("expected failed for html body, got %s", result.Status)
		}
		if !strings.Contains(result.Error, "HTML") {
			t.Errorf("expected error to mention HTML, got %q", result.Error)
		}
	})

	t.Run("skips when existing file matches content length", func(t *testing.T) {
		t.Parallel()

		body := []byte("already here")
		var gets int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/png")
			if r.Method == http.MethodGet {
				gets++
			}
			_, _ = w.Write(body)
		}))
		defer srv.Close()

		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "cached.png"), body, 0600); err != nil {
			t.Fatalf("failed to seed file: %v", err)
		}

		d := NewDownloader(newTestClient(t), dir)
		ref := model.NewImageReference(srv.URL + "/cached.png")
		result := d.Download(context.Background(), ref)

		if result.Status != model.StatusSkipped {
			t.Fatalf("expected skipped, got %s (%s)", result.Status, result.Error)
		}
		if gets != 0 {
			t.Errorf("expected no GET for skipped download, got %d", gets)
		}
		if result.ByteSize != int64(len(body)) {
			t.Errorf("expected size %d, got %d", len(body), result.ByteSize)
		}
	})

	t.Run("re-fetches when existing file size differs", func(t *testing.T) {
		t.Parallel()

		body := []byte("fresh content")
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(body)
		}))
		defer srv.Close()

		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "stale.png"), []byte("old"), 0600); err != nil {
			t.Fatalf("failed to seed file: %v", err)
		}

		d := NewDownloader(newTestClient(t), dir)
		ref := model.NewImageReference(srv.URL + "/stale.png")
		result := d.Download(context.Background(), ref)

		if result.Status != model.StatusDownloaded {
			t.Fatalf("expected downloaded, got %s (%s)", result.Status, result.Error)
		}
		got, err := os.ReadFile(filepath.Join(dir, "stale.png"))
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		if string(got) != string(body) {
			t.Error("expected stale file to be replaced")
		}
	})

	t.Run("strips fragment before requesting", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.URL.RawPath+r.URL.Path, "#") {
				t.Error("fragment must not reach the server")
			}
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("ok"))
		}))
		defer srv.Close()

		dir := t.TempDir()
		d := NewDownloader(newTestClient(t), dir)

		ref := model.NewImageReference(srv.URL + "/frag.png#center")
		result := d.Download(context.Background(), ref)
		if result.Status != model.StatusDownloaded {
			t.Fatalf("expected downloaded, got %s (%s)", result.Status, result.Error)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		dir := t.TempDir()
		d := NewDownloader(newTestClient(t), dir, WithRetries(5), WithBackoff(time.Second))

		ref := model.NewImageReference(srv.URL + "/cancelled.png")
		result := d.Download(ctx, ref)

		if result.Status != model.StatusFailed {
			t.Fatalf("expected failed for cancelled context, got %s", result.Status)
		}
	})
}

// TestRetryable tests the retry classification.
func TestRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"server error 503", &HTTPError{StatusCode: 503}, true},
		{"server error 500", &HTTPError{StatusCode: 500}, true},
		{"not found", &HTTPError{StatusCode: 404}, false},
		{"forbidden", &HTTPError{StatusCode: 403}, false},
		{"empty body", ErrEmptyBody, true},
		{"size mismatch", ErrSizeMismatch, true},
		{"html body", ErrHTMLBody, true},
		{"body too large", fmt.Errorf("%w: more than 10 bytes", ErrBodyTooLarge), false},
		{"cancelled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{
			"temp file creation failure",
			fmt.Errorf("failed to create temporary file: %w",
				&os.PathError{Op: "open", Path: "x.png.part", Err: os.ErrPermission}),
			false,
		},
		{
			"rename failure",
			fmt.Errorf("failed to commit x.png: %w",
				&os.LinkError{Op: "rename", Old: "x.png.part", New: "x.png", Err: os.ErrPermission}),
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := retryable(tt.err); got != tt.want {
				t.Errorf("retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
