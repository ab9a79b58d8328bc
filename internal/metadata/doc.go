// Package metadata audits downloaded image files for embedded EXIF
// metadata before they are committed to a public destination. GPS
// coordinates, serial numbers, and author fields survive a plain
// download and would otherwise be re-published verbatim.
package metadata
