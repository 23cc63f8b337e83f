// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/harm-foundation/harm/lib/codec"
)

// ActionFunc handles one action. raw is the whole CBOR request,
// "action" field included, so handlers decode their own fields from
// it.
//
// The returned value becomes the response data (nil for none); a
// returned error becomes {ok: false, error: err.Error()}.
type ActionFunc func(ctx context.Context, raw []byte) (any, error)

// Response is the envelope of every socket response.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// Connection limits.
const (
	requestDeadline  = 30 * time.Second
	responseDeadline = 10 * time.Second

	// maxRequestSize is far above any AppConfig.
	maxRequestSize = 1 << 20
)

// SocketServer answers one CBOR request per connection on a Unix
// socket. Register every action before Serve.
type SocketServer struct {
	path    string
	actions map[string]ActionFunc
	logger  *slog.Logger

	ready    chan struct{}
	inflight sync.WaitGroup
}

// NewSocketServer returns a server for the socket at path.
func NewSocketServer(path string, logger *slog.Logger) *SocketServer {
	return &SocketServer{
		path:    path,
		actions: make(map[string]ActionFunc),
		logger:  logger,
		ready:   make(chan struct{}),
	}
}

// Handle registers handler for action. Registering an action twice
// panics.
func (s *SocketServer) Handle(action string, handler ActionFunc) {
	if _, taken := s.actions[action]; taken {
		panic(fmt.Sprintf("service: action %q registered twice", action))
	}
	s.actions[action] = handler
}

// Ready is closed once the socket accepts connections.
func (s *SocketServer) Ready() <-chan struct{} {
	return s.ready
}

// Serve listens on the socket until ctx ends, then waits for
// in-flight requests. A leftover socket file is replaced; the socket
// file is removed on return.
func (s *SocketServer) Serve(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing stale socket %s: %w", s.path, err)
	}
	listener, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.path, err)
	}
	defer os.Remove(s.path)
	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()

	s.logger.Info("control socket listening", "path", s.path)
	close(s.ready)

	for {
		conn, err := listener.Accept()
		if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
			break
		}
		if err != nil {
			s.logger.Error("accepting connection", "error", err)
			continue
		}
		s.inflight.Go(func() {
			defer conn.Close()
			s.respond(conn, s.dispatch(ctx, conn))
		})
	}
	listener.Close()
	s.inflight.Wait()
	return nil
}

// dispatch reads one request from conn and runs its action.
func (s *SocketServer) dispatch(ctx context.Context, conn net.Conn) *Response {
	conn.SetReadDeadline(time.Now().Add(requestDeadline))

	var raw codec.RawMessage
	err := codec.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&raw)
	if errors.Is(err, io.EOF) {
		// The peer connected and hung up.
		return nil
	}
	if err != nil {
		return failure("invalid request: %v", err)
	}

	var envelope struct {
		Action string `cbor:"action"`
	}
	if err := codec.Unmarshal(raw, &envelope); err != nil {
		return failure("invalid request: %v", err)
	}
	if envelope.Action == "" {
		return failure("missing required field: action")
	}
	handler, known := s.actions[envelope.Action]
	if !known {
		return failure("unknown action %q", envelope.Action)
	}

	result, err := handler(ctx, raw)
	if err != nil {
		s.logger.Debug("action failed", "action", envelope.Action, "error", err)
		return failure("%s", err)
	}
	if result == nil {
		return &Response{OK: true}
	}
	data, err := codec.Marshal(result)
	if err != nil {
		return failure("internal: encoding %s result: %v", envelope.Action, err)
	}
	return &Response{OK: true, Data: data}
}

func (s *SocketServer) respond(conn net.Conn, response *Response) {
	if response == nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(responseDeadline))
	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Debug("writing response", "error", err)
	}
}

func failure(format string, args ...any) *Response {
	return &Response{Error: fmt.Sprintf(format, args...)}
}
