package migrate

import (
	"fmt"
	"time"
)

const (
	// DefaultSmokeQuery is the query issued after all tables are migrated.
	DefaultSmokeQuery = "vergi mükellefi kimdir"

	// DefaultSmokeMode is the retrieval mode of the smoke query.
	DefaultSmokeMode = "hybrid"

	// DefaultPreviewChars bounds the printed smoke query answer.
	DefaultPreviewChars = 500
)

// Config holds configuration for a migration run.
type Config struct {
	// BatchSize is the number of documents joined into one payload.
	BatchSize int

	// PageSize is the number of rows fetched from the source per round trip.
	PageSize int

	// BatchDelay is the pause after every full-batch flush.
	BatchDelay time.Duration

	// Pacing selects the fixed sleep or the token bucket.
	Pacing Pacing

	// MaxRetries is the number of submission attempts per batch. 1 disables retries.
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff between attempts.
	RetryDelay time.Duration

	// SmokeQuery is issued once after all tables. Empty disables it.
	SmokeQuery string
	SmokeMode  string

	// PreviewChars bounds how much of the smoke query answer is printed.
	PreviewChars int
}

// DefaultConfig returns a Config matching the reference migration run.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:    DefaultBatchSize,
		PageSize:     100,
		BatchDelay:   DefaultBatchDelay,
		Pacing:       PacingFixed,
		MaxRetries:   1,
		RetryDelay:   time.Second,
		SmokeQuery:   DefaultSmokeQuery,
		SmokeMode:    DefaultSmokeMode,
		PreviewChars: DefaultPreviewChars,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidConfig, c.BatchSize)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("%w: page size must be positive, got %d", ErrInvalidConfig, c.PageSize)
	}
	if c.BatchDelay < 0 {
		return fmt.Errorf("%w: batch delay must not be negative", ErrInvalidConfig)
	}
	switch c.Pacing {
	case PacingFixed, PacingToken:
	default:
		return fmt.Errorf("%w: unknown pacing %q", ErrInvalidConfig, c.Pacing)
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("%w: max retries must be at least 1", ErrInvalidConfig)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("%w: retry delay must not be negative", ErrInvalidConfig)
	}
	if c.PreviewChars < 0 {
		return fmt.Errorf("%w: preview chars must not be negative", ErrInvalidConfig)
	}
	return nil
}
