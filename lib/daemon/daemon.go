// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/harm-foundation/harm/lib/appconfig"
	"github.com/harm-foundation/harm/lib/backend"
	"github.com/harm-foundation/harm/lib/codec"
	"github.com/harm-foundation/harm/lib/service"
)

// ErrNoReforgerPath is returned by start_api while no reforger path is
// configured.
var ErrNoReforgerPath = errors.New("reforger_path is not configured")

// Config holds the daemon's dependencies.
type Config struct {
	// SocketPath is the control socket. Required.
	SocketPath string

	// AppConfig is the persisted AppConfig. Required.
	AppConfig *appconfig.File

	// Registry backs the HTTP API. Required.
	Registry Registry

	// APIHost is the interface the HTTP API binds. Defaults to
	// 127.0.0.1.
	APIHost string

	// ShutdownTimeout bounds draining the HTTP API.
	ShutdownTimeout time.Duration

	// Logger defaults to a discard logger.
	Logger *slog.Logger
}

// Daemon serves the control socket and owns the HTTP API lifecycle.
type Daemon struct {
	socketPath      string
	file            *appconfig.File
	registry        Registry
	apiHost         string
	shutdownTimeout time.Duration
	logger          *slog.Logger

	socket *service.SocketServer

	// configMu serializes update_config so the file and the API port
	// move together. Taken before apiMu.
	configMu sync.Mutex

	apiMu sync.Mutex
	api   *apiRun
}

// apiRun is one running HTTP API.
type apiRun struct {
	port   int
	server *service.HTTPServer
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// New builds a daemon and registers its socket actions.
func New(config Config) (*Daemon, error) {
	if config.SocketPath == "" {
		return nil, errors.New("daemon: SocketPath is required")
	}
	if config.AppConfig == nil {
		return nil, errors.New("daemon: AppConfig is required")
	}
	if config.Registry == nil {
		return nil, errors.New("daemon: Registry is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	host := config.APIHost
	if host == "" {
		host = "127.0.0.1"
	}

	d := &Daemon{
		socketPath:      config.SocketPath,
		file:            config.AppConfig,
		registry:        config.Registry,
		apiHost:         host,
		shutdownTimeout: config.ShutdownTimeout,
		logger:          logger,
		socket:          service.NewSocketServer(config.SocketPath, logger),
	}
	d.socket.Handle(backend.ActionGetConfig, d.handleGetConfig)
	d.socket.Handle(backend.ActionUpdateConfig, d.handleUpdateConfig)
	d.socket.Handle(backend.ActionStartAPI, d.handleStartAPI)
	d.socket.Handle(backend.ActionStopAPI, d.handleStopAPI)
	return d, nil
}

// Ready returns a channel closed once the control socket listens.
func (d *Daemon) Ready() <-chan struct{} {
	return d.socket.Ready()
}

// APIAddr returns the bound address of the running HTTP API, or nil.
func (d *Daemon) APIAddr() net.Addr {
	d.apiMu.Lock()
	defer d.apiMu.Unlock()
	if d.api == nil || d.api.finished() {
		return nil
	}
	return d.api.server.Addr()
}

// Serve runs the control socket until ctx is cancelled, then stops the
// HTTP API.
func (d *Daemon) Serve(ctx context.Context) error {
	err := d.socket.Serve(ctx)

	d.apiMu.Lock()
	d.stopAPILocked()
	d.apiMu.Unlock()
	return err
}

func (d *Daemon) handleGetConfig(ctx context.Context, raw []byte) (any, error) {
	config, err := d.file.Load()
	if err != nil {
		return nil, err
	}
	return config, nil
}

func (d *Daemon) handleUpdateConfig(ctx context.Context, raw []byte) (any, error) {
	var request backend.UpdateConfigRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid update_config request: %w", err)
	}
	config := request.Config
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.HasReforgerPath() {
		if _, err := os.Stat(config.Path()); err != nil {
			return nil, fmt.Errorf("reforger_path %q: %w", config.Path(), err)
		}
	}

	d.configMu.Lock()
	defer d.configMu.Unlock()
	d.apiMu.Lock()
	defer d.apiMu.Unlock()

	// A running API on another port moves with the config. The new
	// listener is bound before anything is written so a busy port
	// leaves both the file and the old API as they were.
	var moved *apiRun
	if d.api != nil && !d.api.finished() && d.api.port != config.APIPort {
		run, err := d.bindAPI(config.APIPort)
		if err != nil {
			return nil, fmt.Errorf("api_port %d: %w", config.APIPort, err)
		}
		moved = run
	}

	if err := d.file.Save(config); err != nil {
		if moved != nil {
			moved.stop()
		}
		return nil, err
	}
	d.logger.Info("app config updated",
		"reforger_path", config.Path(),
		"api_port", config.APIPort,
	)

	if moved != nil {
		d.logger.Info("moving http api", "from", d.api.port, "to", moved.port)
		d.stopAPILocked()
		d.api = moved
	}
	return config, nil
}

func (d *Daemon) handleStartAPI(ctx context.Context, raw []byte) (any, error) {
	config, err := d.file.Load()
	if err != nil {
		return nil, err
	}
	if !config.HasReforgerPath() {
		return nil, ErrNoReforgerPath
	}

	d.apiMu.Lock()
	defer d.apiMu.Unlock()
	if d.api != nil && !d.api.finished() {
		return nil, nil
	}
	return nil, d.startAPILocked(config.APIPort)
}

func (d *Daemon) handleStopAPI(ctx context.Context, raw []byte) (any, error) {
	d.apiMu.Lock()
	defer d.apiMu.Unlock()
	d.stopAPILocked()
	return nil, nil
}

// startAPILocked binds the HTTP API on port and records it as the
// running API. Caller holds apiMu.
func (d *Daemon) startAPILocked(port int) error {
	run, err := d.bindAPI(port)
	if err != nil {
		return err
	}
	d.api = run
	return nil
}

// bindAPI starts an HTTP API on port and returns once it listens or
// fails to bind. The returned run is not recorded anywhere.
func (d *Daemon) bindAPI(port int) (*apiRun, error) {
	server := service.NewHTTPServer(service.HTTPServerConfig{
		Address:         net.JoinHostPort(d.apiHost, strconv.Itoa(port)),
		Handler:         NewAPIHandler(d.registry, d.logger),
		ShutdownTimeout: d.shutdownTimeout,
		Logger:          d.logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	run := &apiRun{port: port, server: server, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(run.done)
		run.err = server.Serve(ctx)
		if run.err != nil {
			d.logger.Error("http api stopped", "port", port, "error", run.err)
		}
	}()

	select {
	case <-server.Ready():
		return run, nil
	case <-run.done:
		cancel()
		return nil, run.err
	}
}

// stopAPILocked shuts the running API down and waits for it. Caller
// holds apiMu.
func (d *Daemon) stopAPILocked() {
	if d.api == nil {
		return
	}
	d.api.stop()
	d.api = nil
}

// stop shuts the API down and waits for it.
func (r *apiRun) stop() {
	r.cancel()
	<-r.done
}

func (r *apiRun) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}
