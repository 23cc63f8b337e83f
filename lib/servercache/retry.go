// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package servercache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harm-foundation/harm/lib/clock"
)

// RetryPolicy bounds the retries of one fetch.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first.
	// Values below 1 are treated as 1.
	Attempts int

	// Backoff is the wait before the second try. It doubles after
	// every further failure.
	Backoff time.Duration
}

// DefaultRetryPolicy tries three times, waiting 1s and then 2s.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Backoff: time.Second}

// permanentError marks a failure that retrying cannot fix: a 4xx
// status or a body that does not decode.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return &permanentError{err: err} }

// retry runs operation until it succeeds, returns a permanent error,
// or the policy is exhausted. Waits go through clk so tests can drive
// them with a fake clock.
func retry[T any](ctx context.Context, clk clock.Clock, policy RetryPolicy, onRetry func(attempt int, err error, wait time.Duration), operation func() (T, error)) (T, error) {
	attempts := max(policy.Attempts, 1)
	wait := policy.Backoff

	for attempt := 1; ; attempt++ {
		value, err := operation()
		if err == nil {
			return value, nil
		}

		var zero T
		var stop *permanentError
		if errors.As(err, &stop) {
			return zero, err
		}
		if attempt >= attempts {
			if attempts == 1 {
				return zero, err
			}
			return zero, fmt.Errorf("after %d attempts: %w", attempts, err)
		}

		if onRetry != nil {
			onRetry(attempt, err, wait)
		}
		if sleepErr := clock.Sleep(ctx, clk, wait); sleepErr != nil {
			return zero, fmt.Errorf("waiting to retry: %w (last error: %w)", sleepErr, err)
		}
		wait *= 2
	}
}
