// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/harm-foundation/harm/lib/backend"
	"github.com/harm-foundation/harm/lib/configstore"
	"github.com/harm-foundation/harm/lib/readiness"
	"github.com/harm-foundation/harm/lib/schema"
	"github.com/harm-foundation/harm/lib/servercache"
)

var (
	// ErrNotLoaded is returned by the setters while no config has
	// been loaded.
	ErrNotLoaded = errors.New("config not loaded yet")

	// ErrEmptyPath is returned by SaveReforgerPath for a blank path.
	ErrEmptyPath = errors.New("reforger path is empty")
)

// View is everything the UI renders, captured at one instant.
type View struct {
	State  readiness.State
	Config schema.AppConfig

	// LoadErr is the error of the last failed config fetch. With
	// State == Loading it means the console is stuck rather than
	// still waiting.
	LoadErr error

	// Updating is true while a config write is in flight.
	Updating bool

	// APIStarted is true once StartAPI has been called; APIErr holds
	// its failure, if any.
	APIStarted bool
	APIErr     error

	Servers       schema.ServerListPage
	ServersStatus servercache.Status
	ServersErr    error
}

// Stuck reports whether the initial config load failed and nothing
// has been loaded since.
func (v View) Stuck() bool {
	return v.State == readiness.Loading && v.LoadErr != nil
}

// Options configures a Session.
type Options struct {
	Cache  servercache.Options
	Logger *slog.Logger
}

// Session is one run of the console.
type Session struct {
	store     *configstore.Store
	cache     *servercache.Cache
	machine   *readiness.Machine
	bootstrap *readiness.Bootstrap
	logger    *slog.Logger

	changes chan struct{}

	mu     sync.Mutex
	apiErr error
	// lastPort is the api_port of the last applied loaded snapshot. It
	// is meaningful only once seenPort is set.
	lastPort int
	seenPort bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  bool
}

// New returns a Session talking to b. Nothing happens until Start.
func New(b backend.Backend, options Options) *Session {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if options.Cache.Logger == nil {
		options.Cache.Logger = logger.With("component", "servercache")
	}

	session := &Session{
		logger:  logger,
		machine: readiness.NewMachine(),
		changes: make(chan struct{}, 1),
	}
	session.store = configstore.New(b, logger.With("component", "configstore"))
	session.cache = servercache.New(session.store, options.Cache)
	session.bootstrap = readiness.NewBootstrap(b, logger.With("component", "bootstrap"), session.recordAPIResult)
	return session
}

// Store returns the session's config store.
func (s *Session) Store() *configstore.Store { return s.store }

// Cache returns the session's server list cache.
func (s *Session) Cache() *servercache.Cache { return s.cache }

// Changes receives after every change visible in View. Notifications
// coalesce: a slow reader sees one pending signal.
func (s *Session) Changes() <-chan struct{} { return s.changes }

// Start subscribes to the config store and issues the initial load.
// Background work stops when ctx is cancelled or Close is called.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	if _, err := s.machine.Advance(readiness.Loading); err != nil {
		s.logger.Error("entering loading state", "error", err)
	}
	s.notify()

	updates, unsubscribe := s.store.Subscribe()
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		defer unsubscribe()
		for {
			select {
			case snapshot, ok := <-updates:
				if !ok {
					return
				}
				s.apply(ctx, snapshot)
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		defer s.wg.Done()
		s.Reload(ctx)
	}()
}

// Close stops background work and closes the store. Safe to call more
// than once.
func (s *Session) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.store.Close()
	s.wg.Wait()
}

// Reload fetches the config again. Used for the initial load and for
// retrying after the console got stuck.
func (s *Session) Reload(ctx context.Context) error {
	_, err := s.store.Load(ctx)
	s.notify()
	return err
}

// SaveReforgerPath stores path as the reforger path, keeping every
// other config field.
func (s *Session) SaveReforgerPath(ctx context.Context, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return ErrEmptyPath
	}
	config, loaded := s.store.Read()
	if !loaded {
		return ErrNotLoaded
	}
	return s.update(ctx, config.WithReforgerPath(path))
}

// SetAPIPort stores port as the api_port, keeping every other config
// field. The server list is refetched from the new port.
func (s *Session) SetAPIPort(ctx context.Context, port int) error {
	config, loaded := s.store.Read()
	if !loaded {
		return ErrNotLoaded
	}
	config.APIPort = port
	if err := config.Validate(); err != nil {
		return err
	}
	return s.update(ctx, config)
}

func (s *Session) update(ctx context.Context, config schema.AppConfig) error {
	_, err := s.store.Update(ctx, config)
	s.notify()
	if err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	return nil
}

// RefreshServers refetches the server list.
func (s *Session) RefreshServers(ctx context.Context) error {
	_, err := s.cache.Refresh(ctx)
	s.notify()
	if errors.Is(err, servercache.ErrSuperseded) {
		return nil
	}
	return err
}

// View captures the current state for rendering.
func (s *Session) View() View {
	snapshot := s.store.Snapshot()
	page, status, serversErr := s.cache.Read()

	s.mu.Lock()
	apiErr := s.apiErr
	s.mu.Unlock()

	return View{
		State:         s.machine.State(),
		Config:        snapshot.Config,
		LoadErr:       s.store.LoadError(),
		Updating:      s.store.Updating(),
		APIStarted:    s.bootstrap.Fired(),
		APIErr:        apiErr,
		Servers:       page,
		ServersStatus: status,
		ServersErr:    serversErr,
	}
}

// apply runs on the subscription goroutine for every config change.
func (s *Session) apply(ctx context.Context, snapshot configstore.Snapshot) {
	next := readiness.Decide(snapshot.Config, snapshot.Loaded)
	transition, err := s.machine.Advance(next)
	if err != nil {
		s.logger.Warn("ignoring readiness change", "error", err)
	} else if transition.Changed() {
		s.logger.Info("readiness changed", "from", transition.From, "to", transition.To)
	}

	portChanged := s.observePort(snapshot)
	if portChanged {
		s.logger.Info("api port changed, invalidating server list", "port", snapshot.Config.APIPort)
		s.cache.Invalidate()
	}

	if s.machine.State() == readiness.Ready {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			fired := s.bootstrap.Observe(ctx, transition.From, transition.To)
			if fired || portChanged {
				s.RefreshServers(ctx)
			}
		}()
	}
	s.notify()
}

// observePort records the api_port of a loaded snapshot and reports
// whether it differs from the previous loaded one. Unloaded snapshots
// are ignored.
func (s *Session) observePort(snapshot configstore.Snapshot) bool {
	if !snapshot.Loaded {
		return false
	}
	port := snapshot.Config.APIPort
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.seenPort && s.lastPort != port
	s.lastPort = port
	s.seenPort = true
	return changed
}

func (s *Session) recordAPIResult(err error) {
	s.mu.Lock()
	s.apiErr = err
	s.mu.Unlock()
	s.notify()
}

func (s *Session) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}
