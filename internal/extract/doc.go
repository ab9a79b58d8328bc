// Package extract finds remote image references in Markdown text.
//
// Both Markdown image syntax ![alt](url) and plain link syntax
// [text](url) share the "](url)" tail, so a single pattern over that
// tail covers both forms without double-matching. Only http/https URLs
// whose path ends in a common raster image extension are returned.
package extract
