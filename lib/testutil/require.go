// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"time"
)

// TestingT is the part of *testing.T the helpers use.
type TestingT interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive returns the next value from ch, failing the test if
// none arrives within timeout or ch is closed.
//
//	snapshot := testutil.RequireReceive(t, updates, 5*time.Second, "config snapshot")
func RequireReceive[T any](t TestingT, ch <-chan T, timeout time.Duration, what ...any) T {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var value T
	select {
	case received, open := <-ch:
		if !open {
			t.Fatalf("channel closed while waiting for %s", describe(what))
		}
		value = received
	case <-timer.C:
		t.Fatalf("no value within %v: %s", timeout, describe(what))
	}
	return value
}

// RequireClosed fails the test unless ch is closed (or yields) within
// timeout.
func RequireClosed(t TestingT, ch <-chan struct{}, timeout time.Duration, what ...any) {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
	case <-timer.C:
		t.Fatalf("not closed within %v: %s", timeout, describe(what))
	}
}

// Eventually polls condition every millisecond until it holds, failing
// the test after timeout.
func Eventually(t TestingT, timeout time.Duration, condition func() bool, what ...any) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %v: %s", timeout, describe(what))
		}
		time.Sleep(time.Millisecond)
	}
}

// describe renders the optional trailing arguments: a plain value, or
// a format string followed by its arguments.
func describe(what []any) string {
	switch {
	case len(what) == 0:
		return "(no description)"
	case len(what) == 1:
		return fmt.Sprint(what[0])
	}
	if format, ok := what[0].(string); ok {
		return fmt.Sprintf(format, what[1:]...)
	}
	return fmt.Sprint(what...)
}
