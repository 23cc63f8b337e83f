// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package readiness

import (
	"fmt"
	"sync"
)

// Transition is a state change recorded by a Machine.
type Transition struct {
	From State
	To   State
}

// Changed reports whether the transition moved to a different state.
func (t Transition) Changed() bool { return t.From != t.To }

func (t Transition) String() string {
	return fmt.Sprintf("%s -> %s", t.From, t.To)
}

// UnsupportedTransitionError is returned by Machine.Advance for a
// transition the console does not support. The machine stays in From.
type UnsupportedTransitionError struct {
	Transition
}

func (e *UnsupportedTransitionError) Error() string {
	return fmt.Sprintf("unsupported readiness transition %s", e.Transition)
}

// Machine holds the session's readiness state. Safe for concurrent
// use.
type Machine struct {
	mu    sync.Mutex
	state State
}

// NewMachine returns a Machine in Idle.
func NewMachine() *Machine {
	return &Machine{}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Advance moves the machine to next if the transition is allowed and
// returns the transition taken. Re-entering the current state is
// allowed and reported with Changed() == false.
//
// Leaving Ready is not supported: once the shell is up, clearing the
// reforger path does not send the console back to setup. Advance
// returns an *UnsupportedTransitionError and the machine stays Ready.
func (m *Machine) Advance(next State) (Transition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	transition := Transition{From: m.state, To: next}
	if !allowed(m.state, next) {
		return Transition{From: m.state, To: m.state}, &UnsupportedTransitionError{Transition: transition}
	}
	m.state = next
	return transition, nil
}

func allowed(from, to State) bool {
	if to == Idle {
		return from == Idle
	}
	switch from {
	case Idle, Loading:
		return true
	case NeedsSetup:
		return to == NeedsSetup || to == Ready
	case Ready:
		return to == Ready
	default:
		return false
	}
}
