// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"slices"
	"sync"
	"time"
)

// FakeClock only moves when Advance is called. Safe for concurrent
// use.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []timer
	// armed is signalled whenever a timer is registered.
	armed *sync.Cond
}

type timer struct {
	due  time.Time
	fire chan time.Time
}

// Fake returns a FakeClock reading start.
func Fake(start time.Time) *FakeClock {
	c := &FakeClock{now: start}
	c.armed = sync.NewCond(&c.mu)
	return c
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	fire := make(chan time.Time, 1)
	if d <= 0 {
		fire <- c.now
		return fire
	}
	c.timers = append(c.timers, timer{due: c.now.Add(d), fire: fire})
	c.armed.Broadcast()
	return fire
}

// Advance moves the clock by d. Timers that come due fire in due
// order, each receiving the advanced time.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
	slices.SortStableFunc(c.timers, func(a, b timer) int { return a.due.Compare(b.due) })
	fired := 0
	for _, t := range c.timers {
		if t.due.After(c.now) {
			break
		}
		t.fire <- c.now
		fired++
	}
	c.timers = slices.Delete(c.timers, 0, fired)
}

// WaitForTimers blocks until n timers are pending. Tests call it
// before Advance so the goroutine under test has armed its timer.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.timers) < n {
		c.armed.Wait()
	}
}

// Pending returns the number of timers that have not fired.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}
