package extract

import (
	"regexp"

	"github.com/nao1215/mdimg/internal/model"
)

// linkPattern matches the URL part of a Markdown image or link whose
// target ends in a supported raster extension. The URL group stops at
// the extension; a query string or fragment may follow inside the
// parentheses and is matched by the trailing [^)]* so the whole
// occurrence can be rewritten later.
var linkPattern = regexp.MustCompile(`(?i)\]\(\s*(https?://[^\s)]+?\.(?:png|jpe?g|gif))[^)]*\)`)

// Extractor scans document text for remote image references.
// The zero value is not usable; use New.
type Extractor struct {
	pattern *regexp.Regexp
}

// New creates an Extractor with the default link pattern.
func New() *Extractor {
	return &Extractor{pattern: linkPattern}
}

// ImageURLs returns the unique remote image URLs referenced by the
// text, in order of first appearance. Absence of matches yields an
// empty slice, never an error.
func (e *Extractor) ImageURLs(text string) []model.ImageReference {
	refs := make([]model.ImageReference, 0)
	seen := make(map[string]bool)

	for _, m := range e.pattern.FindAllStringSubmatch(text, -1) {
		raw := m[1]
		if seen[raw] {
			continue
		}
		seen[raw] = true
		refs = append(refs, model.NewImageReference(raw))
	}

	return refs
}

// Pattern exposes the compiled link pattern so the rewriter can apply
// replacements against the exact same matches.
func (e *Extractor) Pattern() *regexp.Regexp {
	return e.pattern
}
