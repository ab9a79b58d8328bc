package config

import "errors"

// Configuration validation errors returned by Config.Validate().
// Package-level sentinel errors let callers use errors.Is() while
// still carrying human-readable messages.
var (
	// ErrNoPattern is returned when no input file pattern is specified.
	ErrNoPattern = errors.New("no input pattern specified: provide one or more markdown file patterns")

	// ErrNoPrefix is returned when no destination prefix is available
	// from either the --prefix flag or the config file.
	ErrNoPrefix = errors.New("no destination prefix specified: use --prefix or set it in .mdimg")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidRetries is returned when the retry count is negative.
	// Zero retries means a single attempt per URL.
	ErrInvalidRetries = errors.New("invalid retries: must be non-negative")

	// ErrInvalidBackoff is returned when the backoff duration is negative.
	ErrInvalidBackoff = errors.New("invalid backoff: must be non-negative")

	// ErrInvalidDelay is returned when the per-host delay is negative.
	// Use 0 to disable the politeness interval.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 to apply the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are specified. Only one output format can be used.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
