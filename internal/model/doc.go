// Package model defines the core data structures shared across mdimg.
// It contains the image reference and download result types produced by
// the pipeline, metadata findings raised for committed images, and the
// sync report that accumulates everything for output and persistence.
package model
