// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"context"
	"errors"
	"testing"
	"time"
)

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestFakeTimerFiresWhenDue(t *testing.T) {
	fake := Fake(start)
	fire := fake.After(2 * time.Second)

	fake.Advance(time.Second)
	select {
	case <-fire:
		t.Fatal("timer fired early")
	default:
	}

	fake.Advance(time.Second)
	select {
	case at := <-fire:
		if !at.Equal(start.Add(2 * time.Second)) {
			t.Errorf("fired with %v, want %v", at, start.Add(2*time.Second))
		}
	default:
		t.Fatal("timer did not fire when due")
	}
	if fake.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", fake.Pending())
	}
}

func TestFakeAdvanceFiresOnlyDueTimers(t *testing.T) {
	fake := Fake(start)
	late := fake.After(3 * time.Second)
	early := fake.After(time.Second)

	fake.Advance(2 * time.Second)
	select {
	case <-early:
	default:
		t.Fatal("due timer did not fire")
	}
	select {
	case <-late:
		t.Fatal("timer fired before due")
	default:
	}
	if fake.Pending() != 1 {
		t.Errorf("Pending = %d, want 1", fake.Pending())
	}
}

func TestFakeNonPositiveDurationIsReady(t *testing.T) {
	fake := Fake(start)
	select {
	case <-fake.After(0):
	default:
		t.Fatal("After(0) not ready")
	}
	if fake.Pending() != 0 {
		t.Error("After(0) armed a timer")
	}
}

func TestWaitForTimers(t *testing.T) {
	fake := Fake(start)
	done := make(chan struct{})
	go func() {
		<-fake.After(time.Minute)
		close(done)
	}()

	fake.WaitForTimers(1)
	fake.Advance(time.Minute)
	<-done
}

func TestSleepHonoursContext(t *testing.T) {
	fake := Fake(start)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, fake, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep = %v, want context.Canceled", err)
	}

	done := make(chan error, 1)
	go func() { done <- Sleep(context.Background(), fake, time.Second) }()
	// The cancelled sleep left its hour-long timer armed.
	fake.WaitForTimers(2)
	fake.Advance(time.Second)
	if err := <-done; err != nil {
		t.Errorf("Sleep = %v", err)
	}
}
