// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package configstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/zeebo/blake3"

	"github.com/harm-foundation/harm/lib/backend"
	"github.com/harm-foundation/harm/lib/codec"
	"github.com/harm-foundation/harm/lib/schema"
)

// ErrUpdateInProgress is returned by Update while another update has
// not finished.
var ErrUpdateInProgress = errors.New("config update already in progress")

// ErrClosed is returned by operations on a closed Store.
var ErrClosed = errors.New("config store closed")

// Fingerprint identifies the content of an AppConfig.
type Fingerprint [32]byte

// Snapshot is an immutable view of the store. Loaded is false until
// the first successful fetch; Config is the zero value until then.
type Snapshot struct {
	Config      schema.AppConfig
	Loaded      bool
	Fingerprint Fingerprint
}

// Store caches the daemon's AppConfig. Safe for concurrent use.
type Store struct {
	backend backend.Backend
	logger  *slog.Logger

	// updating guards the single in-flight update.
	updating atomic.Bool

	mu      sync.Mutex
	current Snapshot
	// generation increments every time current changes. A Load that
	// started under an older generation does not overwrite a newer
	// value.
	generation  uint64
	loadErr     error
	subscribers map[int]chan Snapshot
	nextID      int
	closed      bool
}

// New returns a Store that fetches from b. Nothing is fetched until
// Load is called.
func New(b backend.Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		backend:     b,
		logger:      logger,
		subscribers: make(map[int]chan Snapshot),
	}
}

// Read returns the cached config and true, or the zero value and false
// while no fetch has completed.
func (s *Store) Read() (schema.AppConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current.Loaded {
		return schema.AppConfig{}, false
	}
	return s.current.Config.Clone(), true
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// LoadError returns the error from the most recent failed Load, or
// nil once a Load has succeeded.
func (s *Store) LoadError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

// Updating reports whether an update is in flight.
func (s *Store) Updating() bool {
	return s.updating.Load()
}

// Load fetches the authoritative config and caches it. On failure the
// cache keeps its previous value and the error is also recorded for
// LoadError.
func (s *Store) Load(ctx context.Context) (schema.AppConfig, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return schema.AppConfig{}, ErrClosed
	}
	generation := s.generation
	s.mu.Unlock()

	config, err := s.backend.GetConfig(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.loadErr = err
		s.logger.Warn("config fetch failed", "error", err)
		return schema.AppConfig{}, fmt.Errorf("loading config: %w", err)
	}
	s.loadErr = nil

	if generation != s.generation {
		// An update landed while this fetch was in flight; its value
		// is newer than ours.
		s.logger.Debug("discarding config fetch superseded by update")
		return s.current.Config.Clone(), nil
	}
	s.applyLocked(config)
	return config.Clone(), nil
}

// Update writes config to the daemon and, on success, re-fetches it so
// that Read returns the daemon's value. On failure the cache is left
// untouched.
//
// Returns ErrUpdateInProgress if another Update has not returned yet.
// Cancelling ctx does not abort a write that has been started.
func (s *Store) Update(ctx context.Context, config schema.AppConfig) (schema.AppConfig, error) {
	if !s.updating.CompareAndSwap(false, true) {
		return schema.AppConfig{}, ErrUpdateInProgress
	}
	defer s.updating.Store(false)

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return schema.AppConfig{}, ErrClosed
	}

	ctx = context.WithoutCancel(ctx)

	stored, err := s.backend.UpdateConfig(ctx, config.Clone())
	if err != nil {
		s.logger.Warn("config update failed", "error", err)
		return schema.AppConfig{}, fmt.Errorf("updating config: %w", err)
	}

	// Invalidate and re-fetch. The update response is already the
	// daemon's value, so a failed re-fetch falls back to it rather
	// than leaving the pre-update value in place.
	confirmed, err := s.backend.GetConfig(ctx)
	if err != nil {
		s.logger.Warn("config re-fetch after update failed, using update response",
			"error", err,
		)
		confirmed = stored
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(confirmed)
	s.loadErr = nil
	return confirmed.Clone(), nil
}

// Subscribe returns a channel that receives the latest Snapshot after
// every change, and a function that ends the subscription. If a value
// is already loaded, it is delivered immediately.
//
// The channel holds at most one pending snapshot; a slow consumer sees
// only the most recent one.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	channel := make(chan Snapshot, 1)
	if s.closed {
		close(channel)
		return channel, func() {}
	}

	id := s.nextID
	s.nextID++
	s.subscribers[id] = channel
	if s.current.Loaded {
		channel <- s.snapshotLocked()
	}

	var once sync.Once
	return channel, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if existing, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(existing)
			}
		})
	}
}

// Close ends all subscriptions. Later Loads and Updates fail with
// ErrClosed.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, channel := range s.subscribers {
		delete(s.subscribers, id)
		close(channel)
	}
}

// applyLocked installs config as the current value and notifies
// subscribers if the content changed. Must be called with s.mu held.
func (s *Store) applyLocked(config schema.AppConfig) {
	fingerprint, err := FingerprintOf(config)
	if err != nil {
		s.logger.Error("fingerprinting config", "error", err)
	}

	changed := !s.current.Loaded || fingerprint != s.current.Fingerprint || err != nil
	s.current = Snapshot{
		Config:      config.Clone(),
		Loaded:      true,
		Fingerprint: fingerprint,
	}
	s.generation++
	if !changed {
		return
	}

	snapshot := s.snapshotLocked()
	for _, channel := range s.subscribers {
		select {
		case channel <- snapshot:
		default:
			// Replace the unread snapshot with the newer one.
			select {
			case <-channel:
			default:
			}
			channel <- snapshot
		}
	}
}

func (s *Store) snapshotLocked() Snapshot {
	snapshot := s.current
	snapshot.Config = s.current.Config.Clone()
	return snapshot
}

// FingerprintOf hashes the deterministic CBOR encoding of config.
func FingerprintOf(config schema.AppConfig) (Fingerprint, error) {
	data, err := codec.Marshal(config)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("encoding config: %w", err)
	}
	return Fingerprint(blake3.Sum256(data)), nil
}
