// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package migrate

import (
	"context"
	"log/slog"
	"time"
)

// maxBackoff caps a single retry delay.
const maxBackoff = time.Minute

// Backoff is an exponential retry schedule.
type Backoff struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the delay before the second attempt. It doubles on each retry.
	BaseDelay time.Duration
}

// Delay returns the pause after the given failed attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	delay := b.BaseDelay
	for i := 1; i < attempt && delay < maxBackoff; i++ {
		delay *= 2
	}
	return min(delay, maxBackoff)
}

// RetryWithBackoff runs operation until it succeeds, retryable reports an
// error as permanent, or the schedule runs out of attempts.
// A nil retryable treats every error as transient.
// Returns the error from the last attempt if all attempts fail.
func RetryWithBackoff(ctx context.Context, b Backoff, retryable func(error) bool, operation func(attempt int) error) error {
	if b.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= b.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation(attempt)
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}

		if attempt == b.MaxAttempts || (retryable != nil && !retryable(lastErr)) {
			break
		}

		slog.Debug("operation failed, will retry", "attempt", attempt, "maxAttempts", b.MaxAttempts, "error", lastErr)

		timer := time.NewTimer(b.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}
