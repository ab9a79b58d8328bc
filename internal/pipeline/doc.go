// Package pipeline provides a framework for executing sync steps in sequence.
//
// A document moves through multiple stages: reading, link extraction,
// downloading, metadata auditing, link rewriting, and output writing.
// Each stage is implemented as a Step that receives the current report
// and can modify it.
//
// The pipeline supports both individual documents and batch processing
// with concurrency control using errgroup.
package pipeline
