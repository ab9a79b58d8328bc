// Package main provides the entry point for the mdimg CLI.
//
// mdimg downloads the remote images referenced by Markdown documents,
// commits them to a local directory, and rewrites the references to a
// destination prefix. Hotlink-protected hosts can be handled with
// per-host referer, cookie, and header settings.
//
// Usage:
//
//	mdimg sync --prefix https://cdn.example.com/img/ docs/*.md
//	mdimg history docs/guide.md
//
// See --help for all available options.
package main

// main is the entry point for mdimg.
func main() {
	Execute()
}
