// Copyright 2025 The senseai Authors
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


package ingestion

import (
	"context"
	"log/slog"
	"time"
)

// RetryPolicy controls how provider calls are retried.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration // doubles after every failed attempt
	MaxDelay    time.Duration // zero means uncapped
}

// DefaultRetryPolicy returns 3 attempts starting at 500ms, capped at 5s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second}
}

// delay returns the wait before the attempt following the given one.
func (r RetryPolicy) delay(attempt int) time.Duration {
	d := r.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if r.MaxDelay > 0 && d >= r.MaxDelay {
			return r.MaxDelay
		}
	}
	if r.MaxDelay > 0 && d > r.MaxDelay {
		return r.MaxDelay
	}
	return d
}

// Do runs operation until it succeeds, attempts run out, or ctx ends.
// The error of the last attempt is returned when every attempt fails.
func (r RetryPolicy) Do(ctx context.Context, logger *slog.Logger, operation func(ctx context.Context) error) error {
	if r.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation(ctx)
		if lastErr == nil {
			if attempt > 1 {
				logger.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if attempt == r.MaxAttempts {
			break
		}

		wait := r.delay(attempt)
		logger.Debug("operation failed, will retry", "attempt", attempt, "maxAttempts", r.MaxAttempts, "wait", wait, "err", lastErr)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
