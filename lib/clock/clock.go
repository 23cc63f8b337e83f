// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"context"
	"time"
)

// Clock reads the time and produces timer channels.
type Clock interface {
	Now() time.Time

	// After delivers the time on the returned channel once d has
	// elapsed, immediately when d <= 0.
	After(d time.Duration) <-chan time.Time
}

// Real returns the wall clock.
func Real() Clock { return wallClock{} }

type wallClock struct{}

func (wallClock) Now() time.Time                         { return time.Now() }
func (wallClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Sleep waits d on c, returning ctx.Err() if ctx ends first.
func Sleep(ctx context.Context, c Clock, d time.Duration) error {
	select {
	case <-c.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
