package migrate

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBatchDelay is the pause after every full batch.
const DefaultBatchDelay = 500 * time.Millisecond

// Pacing selects how the migrator spaces batch submissions.
type Pacing string

const (
	// PacingFixed sleeps a fixed delay after every full-batch flush.
	PacingFixed Pacing = "fixed"

	// PacingToken allows at most one full batch per delay, counting the
	// time spent submitting.
	PacingToken Pacing = "token"
)

// Pacer blocks between full-batch submissions.
type Pacer interface {
	Wait(ctx context.Context) error
}

type fixedPacer struct {
	delay time.Duration
}

// NewFixedPacer returns a pacer that always sleeps delay.
func NewFixedPacer(delay time.Duration) Pacer {
	return &fixedPacer{delay: delay}
}

func (p *fixedPacer) Wait(ctx context.Context) error {
	if p.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(p.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type tokenPacer struct {
	limiter *rate.Limiter
}

// NewTokenPacer returns a token-bucket pacer that refills one token per
// interval. The first Wait never blocks.
func NewTokenPacer(interval time.Duration) Pacer {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &tokenPacer{limiter: rate.NewLimiter(limit, 1)}
}

func (p *tokenPacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// NewPacer builds the pacer named by pacing.
func NewPacer(pacing Pacing, delay time.Duration) Pacer {
	if pacing == PacingToken {
		return NewTokenPacer(delay)
	}
	return NewFixedPacer(delay)
}
