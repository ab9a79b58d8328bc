package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/mdimg/internal/model"
)

// testReport builds a report with one of each download outcome.
func testReport() *model.SyncReport {
	report := model.NewSyncReport("docs/guide.md")
	report.OutputPath = "docs/guide_new.md"
	report.Prefix = "https://cdn.example.com/images/"
	report.DateSynced = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	report.Elapsed = 1500 * time.Millisecond
	report.Rewritten = 3

	report.References = []model.ImageReference{
		model.NewImageReference("http://img.example.com/a.png"),
		model.NewImageReference("http://img.example.com/b.jpg"),
		model.NewImageReference("http://img.example.com/c.gif"),
	}
	report.Downloads = []model.DownloadResult{
		{URL: "http://img.example.com/a.png", Filename: "a.png", Status: model.StatusDownloaded, ByteSize: 1024, Attempts: 1},
		{URL: "http://img.example.com/b.jpg", Filename: "b.jpg", Status: model.StatusSkipped, ByteSize: 2048},
		{URL: "http://img.example.com/c.gif", Filename: "c.gif", Status: model.StatusFailed, Attempts: 4, Error: "HTTP 503 for http://img.example.com/c.gif"},
	}
	report.Findings = []model.Finding{
		{
			Type:     "exif_gps",
			Title:    "GPS Coordinates in Image EXIF",
			Severity: model.SeverityHigh,
			Value:    "GPSLatitude: 35/1",
			File:     "images/a.png",
		},
	}
	return report
}

// TestSimpleWriter tests the human-readable text output.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("includes header and summary", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		n, err := w.Write(testReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("expected %d bytes reported, got %d", buf.Len(), n)
		}

		out := buf.String()
		for _, want := range []string{
			"MDIMG SYNC REPORT",
			"docs/guide.md",
			"DOWNLOAD SUMMARY",
			"IMAGES FOUND: 3",
			"DOWNLOADED:   1",
			"SKIPPED:      1",
			"FAILED:       1",
			"REWRITTEN:    3 link(s)",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("lists failed downloads", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		if _, err := w.Write(testReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out := buf.String()
		if !strings.Contains(out, "FAILED DOWNLOADS") {
			t.Error("expected failed downloads section")
		}
		if !strings.Contains(out, "http://img.example.com/c.gif") {
			t.Error("expected failed URL in output")
		}
		if !strings.Contains(out, "Attempts: 4") {
			t.Error("expected attempt count in output")
		}
	})

	t.Run("groups findings by severity", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		if _, err := w.Write(testReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out := buf.String()
		if !strings.Contains(out, "METADATA FINDINGS") {
			t.Error("expected findings section")
		}
		if !strings.Contains(out, "[!!] HIGH") {
			t.Error("expected high severity header")
		}
		if !strings.Contains(out, "GPS Coordinates in Image EXIF") {
			t.Error("expected finding title in output")
		}
	})

	t.Run("hides empty sections by default", func(t *testing.T) {
		t.Parallel()

		report := model.NewSyncReport("empty.md")
		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		if _, err := w.Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out := buf.String()
		if strings.Contains(out, "FAILED DOWNLOADS") {
			t.Error("expected failed section to be hidden when empty")
		}
		if strings.Contains(out, "METADATA FINDINGS") {
			t.Error("expected findings section to be hidden when empty")
		}
	})

	t.Run("verbose includes finding descriptions", func(t *testing.T) {
		t.Parallel()

		report := testReport()
		report.Findings[0].Description = "The image embeds GPS coordinates."

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf, WithVerbose(true))

		if _, err := w.Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !strings.Contains(buf.String(), "The image embeds GPS coordinates.") {
			t.Error("expected description in verbose output")
		}
	})

	t.Run("reports error status", func(t *testing.T) {
		t.Parallel()

		report := testReport()
		report.Error = errors.New("document not found")

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		if _, err := w.Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !strings.Contains(buf.String(), "ERROR - document not found") {
			t.Error("expected error status in output")
		}
	})
}

// TestJSONWriter tests the JSON output.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("produces valid JSON with summary", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf)

		if _, err := w.Write(testReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded struct {
			Report  *model.SyncReport `json:"report"`
			Summary model.Summary     `json:"summary"`
		}
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON output: %v", err)
		}

		if decoded.Report.Document != "docs/guide.md" {
			t.Errorf("expected document docs/guide.md, got %q", decoded.Report.Document)
		}
		if decoded.Summary.Total != 3 {
			t.Errorf("expected total 3, got %d", decoded.Summary.Total)
		}
		if decoded.Summary.Failed != 1 {
			t.Errorf("expected failed 1, got %d", decoded.Summary.Failed)
		}
	})

	t.Run("serializes error as message", func(t *testing.T) {
		t.Parallel()

		report := testReport()
		report.Error = errors.New("boom")

		var buf bytes.Buffer
		w := NewJSONWriter(&buf)

		if _, err := w.Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !strings.Contains(buf.String(), `"error":"boom"`) {
			t.Errorf("expected error message in JSON, got %s", buf.String())
		}
	})

	t.Run("pretty print indents output", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf, WithPrettyPrint())

		if _, err := w.Write(testReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !strings.Contains(buf.String(), "\n  ") {
			t.Error("expected indented JSON output")
		}
	})

	t.Run("ends with newline", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf)

		if _, err := w.Write(testReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !strings.HasSuffix(buf.String(), "\n") {
			t.Error("expected trailing newline")
		}
	})
}

// TestMarkdownWriter tests the Markdown output.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("includes tables and sections", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf)

		if _, err := w.Write(testReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out := buf.String()
		for _, want := range []string{
			"# Image Sync Report",
			"## Summary",
			"## Downloads",
			"## Metadata Findings",
			"`docs/guide.md`",
			"a.png",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("includes mermaid pie chart when images were found", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf)

		if _, err := w.Write(testReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out := buf.String()
		if !strings.Contains(out, "```mermaid") {
			t.Error("expected mermaid code block")
		}
		if !strings.Contains(out, "Download Outcomes") {
			t.Error("expected pie chart title")
		}
	})

	t.Run("warns about failures", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf)

		if _, err := w.Write(testReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !strings.Contains(buf.String(), "1 download(s) failed") {
			t.Error("expected failure warning")
		}
	})

	t.Run("handles empty report", func(t *testing.T) {
		t.Parallel()

		report := model.NewSyncReport("empty.md")
		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf)

		if _, err := w.Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out := buf.String()
		if !strings.Contains(out, "No remote images referenced.") {
			t.Error("expected empty downloads message")
		}
		if strings.Contains(out, "```mermaid") {
			t.Error("expected no pie chart for empty report")
		}
	})
}

// TestMultiWriter tests fan-out to multiple writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all writers", func(t *testing.T) {
		t.Parallel()

		var text, jsonBuf bytes.Buffer
		mw := NewMultiWriter(
			NewSimpleWriter(&text),
			NewJSONWriter(&jsonBuf),
		)

		n, err := mw.Write(testReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != text.Len()+jsonBuf.Len() {
			t.Errorf("expected total %d bytes, got %d", text.Len()+jsonBuf.Len(), n)
		}
		if text.Len() == 0 || jsonBuf.Len() == 0 {
			t.Error("expected both writers to receive output")
		}
	})
}

// TestTruncateString tests string truncation for table cells.
func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{"short string unchanged", "abc", 10, "abc"},
		{"exact length unchanged", "abcde", 5, "abcde"},
		{"long string truncated", "abcdefghij", 8, "abcde..."},
		{"tiny max has no ellipsis", "abcdef", 2, "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := truncateString(tt.in, tt.maxLen); got != tt.want {
				t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
			}
		})
	}
}
