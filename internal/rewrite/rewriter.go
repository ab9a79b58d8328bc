package rewrite

import (
	"regexp"
	"strings"
)

// Rewriter replaces image URLs in document text using the same link
// pattern the extractor matched with, so extraction and rewriting
// always agree on what counts as an image reference.
type Rewriter struct {
	pattern *regexp.Regexp
}

// New creates a Rewriter from a compiled link pattern. The pattern
// must capture the URL in its first submatch.
func New(pattern *regexp.Regexp) *Rewriter {
	return &Rewriter{pattern: pattern}
}

// Rewrite replaces every occurrence of a mapped URL with its
// replacement and returns the new text and the number of occurrences
// replaced. A URL appearing several times is replaced at each
// occurrence; URLs absent from the mapping are left untouched,
// including any query string or fragment they carry. Only the URL
// itself is substituted inside a match, so a link title after the URL
// survives; a query string or fragment glued to the URL is dropped,
// since it has no meaning at the local destination.
func (r *Rewriter) Rewrite(text string, mapping map[string]string) (string, int) {
	if len(mapping) == 0 {
		return text, 0
	}

	count := 0
	rewritten := r.pattern.ReplaceAllStringFunc(text, func(match string) string {
		sub := r.pattern.FindStringSubmatch(match)
		if len(sub) < 2 {
			return match
		}

		replacement, ok := mapping[sub[1]]
		if !ok {
			return match
		}

		count++
		idx := strings.Index(match, sub[1])
		tail := match[idx+len(sub[1]):]
		return match[:idx] + replacement + trimQuery(tail)
	})

	return rewritten, count
}

// trimQuery drops a query string or fragment glued to the end of a
// rewritten URL. Anything else, such as a link title, is kept.
func trimQuery(tail string) string {
	if !strings.HasPrefix(tail, "?") && !strings.HasPrefix(tail, "#") {
		return tail
	}
	for i, c := range tail {
		if c == ' ' || c == '\t' || c == ')' {
			return tail[i:]
		}
	}
	return ""
}
