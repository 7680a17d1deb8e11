package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// Callers match them with errors.Is.
var (
	// ErrNoTarget is returned when no URL to mirror was given.
	ErrNoTarget = errors.New("no target specified: provide a URL to mirror")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidConcurrency is returned when the fetch limit is negative.
	// Use 0 for an unbounded fan-out.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrConflictingProxies is returned when both --tor and --proxy are specified.
	ErrConflictingProxies = errors.New("conflicting proxies: --tor and --proxy cannot be used together")

	// ErrInvalidRenderTimeout is returned when --render is set with a non-positive render timeout.
	ErrInvalidRenderTimeout = errors.New("invalid render timeout: must be positive")

	// ErrNoOutDir is returned when files are to be written but no output directory is set.
	ErrNoOutDir = errors.New("no output directory: use --out-dir or --simulate")
)
