package extract

import (
	"strings"
	"testing"
)

// TestImageURLs tests extraction of remote image references.
func TestImageURLs(t *testing.T) {
	t.Parallel()

	t.Run("extracts markdown image syntax", func(t *testing.T) {
		t.Parallel()

		text := `# Title

![diagram](https://img.example.com/a/diagram.png)
`
		refs := New().ImageURLs(text)
		if len(refs) != 1 {
			t.Fatalf("expected 1 reference, got %d", len(refs))
		}
		if refs[0].URL != "https://img.example.com/a/diagram.png" {
			t.Errorf("unexpected URL: %q", refs[0].URL)
		}
		if refs[0].Filename != "diagram.png" {
			t.Errorf("unexpected filename: %q", refs[0].Filename)
		}
	})

	t.Run("extracts plain link syntax", func(t *testing.T) {
		t.Parallel()

		text := `See [the screenshot](http://x.com/shot.jpg) for details.`
		refs := New().ImageURLs(text)
		if len(refs) != 1 {
			t.Fatalf("expected 1 reference, got %d", len(refs))
		}
		if refs[0].URL != "http://x.com/shot.jpg" {
			t.Errorf("unexpected URL: %q", refs[0].URL)
		}
	})

	t.Run("image syntax is not double-matched", func(t *testing.T) {
		t.Parallel()

		text := `![alt](https://x.com/one.png)`
		refs := New().ImageURLs(text)
		if len(refs) != 1 {
			t.Errorf("expected 1 reference, got %d", len(refs))
		}
	})

	t.Run("deduplicates preserving first-appearance order", func(t *testing.T) {
		t.Parallel()

		text := strings.Join([]string{
			"![a](https://x.com/second-seen.png)",
			"![b](https://x.com/first.gif)",
			"![a again](https://x.com/second-seen.png)",
		}, "\n")

		refs := New().ImageURLs(text)
		if len(refs) != 2 {
			t.Fatalf("expected 2 references, got %d", len(refs))
		}
		if refs[0].URL != "https://x.com/second-seen.png" {
			t.Errorf("expected first-appearance order, got %q first", refs[0].URL)
		}
		if refs[1].URL != "https://x.com/first.gif" {
			t.Errorf("unexpected second reference: %q", refs[1].URL)
		}
	})

	t.Run("filters unsupported extensions", func(t *testing.T) {
		t.Parallel()

		text := strings.Join([]string{
			"![doc](https://x.com/report.pdf)",
			"[site](https://x.com/page.html)",
			"![ok](https://x.com/photo.jpeg)",
			"![vector](https://x.com/logo.svg)",
		}, "\n")

		refs := New().ImageURLs(text)
		if len(refs) != 1 {
			t.Fatalf("expected 1 reference, got %d: %v", len(refs), refs)
		}
		if refs[0].URL != "https://x.com/photo.jpeg" {
			t.Errorf("unexpected URL: %q", refs[0].URL)
		}
	})

	t.Run("matches extensions case-insensitively", func(t *testing.T) {
		t.Parallel()

		refs := New().ImageURLs("![x](https://x.com/PHOTO.PNG)")
		if len(refs) != 1 {
			t.Errorf("expected 1 reference, got %d", len(refs))
		}
	})

	t.Run("URL stops at extension but match covers trailing parts", func(t *testing.T) {
		t.Parallel()

		refs := New().ImageURLs("![x](https://x.com/a.png?w=100#frag)")
		if len(refs) != 1 {
			t.Fatalf("expected 1 reference, got %d", len(refs))
		}
		if refs[0].URL != "https://x.com/a.png" {
			t.Errorf("expected URL to stop at extension, got %q", refs[0].URL)
		}
	})

	t.Run("ignores local and relative paths", func(t *testing.T) {
		t.Parallel()

		text := strings.Join([]string{
			"![local](./images/a.png)",
			"![relative](../b.jpg)",
			"![rooted](/static/c.gif)",
		}, "\n")

		refs := New().ImageURLs(text)
		if len(refs) != 0 {
			t.Errorf("expected no references for local paths, got %d", len(refs))
		}
	})

	t.Run("rewritten document with local prefix extracts nothing", func(t *testing.T) {
		t.Parallel()

		// A document already processed with a local destination prefix
		// must yield zero remote URLs on a second run.
		text := `![a](/static/images/a.png) and [b](/static/images/b.jpg)`
		refs := New().ImageURLs(text)
		if len(refs) != 0 {
			t.Errorf("expected zero references, got %d", len(refs))
		}
	})

	t.Run("empty text yields empty slice", func(t *testing.T) {
		t.Parallel()

		refs := New().ImageURLs("")
		if refs == nil {
			t.Fatal("expected non-nil empty slice")
		}
		if len(refs) != 0 {
			t.Errorf("expected 0 references, got %d", len(refs))
		}
	})

	t.Run("tolerates whitespace after opening paren", func(t *testing.T) {
		t.Parallel()

		refs := New().ImageURLs("![x]( https://x.com/a.png)")
		if len(refs) != 1 {
			t.Errorf("expected 1 reference, got %d", len(refs))
		}
	})
}
