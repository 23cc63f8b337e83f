// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

// Package backendtest provides an in-memory backend.Backend for tests
// of the console's state components.
package backendtest

import (
	"context"
	"sync"

	"github.com/harm-foundation/harm/lib/schema"
)

// Fake is an in-memory daemon. The zero value is not usable; call New.
//
// Failures are injected with the Set*Err methods. Calls can be held
// open with SetGetGate and SetUpdateGate: while a gate is set, calls
// block until it is closed (or ctx ends), which lets tests keep an
// update in flight.
type Fake struct {
	mu     sync.Mutex
	config schema.AppConfig

	getErr    error
	updateErr error
	startErr  error

	updateGate chan struct{}
	getGate    chan struct{}

	getCalls    int
	updateCalls int
	startCalls  int

	// updateStarted receives once per UpdateConfig call, before the
	// gate is consulted.
	updateStarted chan struct{}

	// apiStarted receives once per StartAPI call.
	apiStarted chan struct{}
}

// New returns a Fake holding config.
func New(config schema.AppConfig) *Fake {
	return &Fake{
		config:        config.Clone(),
		updateStarted: make(chan struct{}, 16),
		apiStarted:    make(chan struct{}, 16),
	}
}

// GetConfig returns the config stored when the call began, like a
// daemon that read its state before a slow response went out.
func (f *Fake) GetConfig(ctx context.Context) (schema.AppConfig, error) {
	f.mu.Lock()
	f.getCalls++
	gate := f.getGate
	config, err := f.config.Clone(), f.getErr
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return schema.AppConfig{}, ctx.Err()
		}
	}

	if err != nil {
		return schema.AppConfig{}, err
	}
	return config, nil
}

// UpdateConfig stores config unless UpdateConfigErr is set.
func (f *Fake) UpdateConfig(ctx context.Context, config schema.AppConfig) (schema.AppConfig, error) {
	f.mu.Lock()
	f.updateCalls++
	gate := f.updateGate
	f.mu.Unlock()

	select {
	case f.updateStarted <- struct{}{}:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return schema.AppConfig{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return schema.AppConfig{}, f.updateErr
	}
	f.config = config.Clone()
	return f.config.Clone(), nil
}

// StartAPI counts calls.
func (f *Fake) StartAPI(ctx context.Context) error {
	f.mu.Lock()
	f.startCalls++
	err := f.startErr
	f.mu.Unlock()

	select {
	case f.apiStarted <- struct{}{}:
	default:
	}
	return err
}

// APIStarted receives once for every StartAPI call.
func (f *Fake) APIStarted() <-chan struct{} { return f.apiStarted }

// UpdateStarted receives once for every UpdateConfig call as soon as
// the call begins.
func (f *Fake) UpdateStarted() <-chan struct{} { return f.updateStarted }

// Set replaces the stored config, as if changed by another client.
func (f *Fake) Set(config schema.AppConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.config = config.Clone()
}

// SetGetGate sets the gate consulted by subsequent GetConfig calls.
func (f *Fake) SetGetGate(gate chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getGate = gate
}

// SetUpdateGate sets the gate consulted by subsequent UpdateConfig
// calls.
func (f *Fake) SetUpdateGate(gate chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateGate = gate
}

// SetUpdateConfigErr sets the error returned by UpdateConfig.
func (f *Fake) SetUpdateConfigErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateErr = err
}

// SetStartAPIErr sets the error returned by StartAPI.
func (f *Fake) SetStartAPIErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startErr = err
}

// SetGetConfigErr sets the error returned by GetConfig.
func (f *Fake) SetGetConfigErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr = err
}

// Stored returns the stored config.
func (f *Fake) Stored() schema.AppConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.config.Clone()
}

// GetCalls returns the number of GetConfig calls.
func (f *Fake) GetCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls
}

// UpdateCalls returns the number of UpdateConfig calls.
func (f *Fake) UpdateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updateCalls
}

// StartCalls returns the number of StartAPI calls.
func (f *Fake) StartCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startCalls
}
