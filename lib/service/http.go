// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// HTTPServerConfig configures an HTTPServer.
type HTTPServerConfig struct {
	// Address is the TCP listen address, such as "127.0.0.1:10625".
	// Port 0 picks a free port; read it from Addr after Ready.
	Address string

	Handler http.Handler

	// ShutdownTimeout bounds draining requests on shutdown. Zero means
	// 10s.
	ShutdownTimeout time.Duration

	Logger *slog.Logger
}

// HTTPServer runs an http.Handler on a TCP listener for the lifetime
// of a context. The daemon runs one for the /servers API.
type HTTPServer struct {
	config HTTPServerConfig
	ready  chan struct{}
	addr   net.Addr
}

// NewHTTPServer returns a server for config. Address, Handler and
// Logger are required; a missing one panics.
func NewHTTPServer(config HTTPServerConfig) *HTTPServer {
	switch {
	case config.Address == "":
		panic("service: HTTPServerConfig.Address is required")
	case config.Handler == nil:
		panic("service: HTTPServerConfig.Handler is required")
	case config.Logger == nil:
		panic("service: HTTPServerConfig.Logger is required")
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 10 * time.Second
	}
	return &HTTPServer{config: config, ready: make(chan struct{})}
}

// Ready is closed once the listener is bound.
func (s *HTTPServer) Ready() <-chan struct{} {
	return s.ready
}

// Addr is the bound address. Valid once Ready is closed.
func (s *HTTPServer) Addr() net.Addr {
	return s.addr
}

// Serve binds the listener and serves until ctx ends, then shuts down
// gracefully. A bind failure is returned before Ready closes.
func (s *HTTPServer) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.config.Address, err)
	}
	s.addr = listener.Addr()
	close(s.ready)

	server := &http.Server{
		Handler:           s.config.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       time.Minute,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	shutdown := make(chan error, 1)
	stop := context.AfterFunc(ctx, func() {
		s.config.Logger.Info("http server shutting down", "address", s.addr.String())
		drainCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		shutdown <- server.Shutdown(drainCtx)
	})
	defer stop()

	s.config.Logger.Info("http server listening", "address", s.addr.String())
	if err := server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	if err := <-shutdown; err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.config.Logger.Info("http server stopped", "address", s.addr.String())
	return nil
}
