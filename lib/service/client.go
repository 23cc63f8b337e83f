// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/harm-foundation/harm/lib/codec"
)

// dialTimeout covers only the connect phase.
const dialTimeout = 5 * time.Second

// responseReadTimeout is how long the client waits for a response
// after writing the request, matched to the server's read+write
// timeouts.
const responseReadTimeout = 45 * time.Second

// maxResponseSize mirrors maxRequestSize.
const maxResponseSize = 1024 * 1024

// ServiceError is returned by Call when the server answered with
// ok=false.
type ServiceError struct {
	Action  string
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service error on %q: %s", e.Action, e.Message)
}

// ServiceClient sends CBOR requests to a service socket. Each Call
// opens a new connection, matching the server's one-request-per-
// connection model.
type ServiceClient struct {
	socketPath string
}

// NewServiceClient returns a client for the socket at socketPath.
func NewServiceClient(socketPath string) *ServiceClient {
	return &ServiceClient{socketPath: socketPath}
}

// SocketPath returns the socket this client dials.
func (c *ServiceClient) SocketPath() string {
	return c.socketPath
}

// Call sends {action, ...fields} and decodes the response data into
// result when both are non-nil. The caller must not put an "action"
// key in fields.
//
// Handler failures return *ServiceError. Connection and encoding
// failures return plain wrapped errors.
func (c *ServiceClient) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	request := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		request[key] = value
	}
	request["action"] = action

	response, err := c.send(ctx, request)
	if err != nil {
		return fmt.Errorf("calling %q on %s: %w", action, c.socketPath, err)
	}

	if !response.OK {
		return &ServiceError{
			Action:  action,
			Message: response.Error,
		}
	}

	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding response data for %q: %w", action, err)
		}
	}

	return nil
}

func (c *ServiceClient) send(ctx context.Context, request any) (*Response, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close()

	// Closing the connection unblocks the read below when ctx ends
	// before the server answers.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}

	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	conn.SetReadDeadline(time.Now().Add(responseReadTimeout))
	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("reading response: %w", ctx.Err())
		}
		return nil, fmt.Errorf("reading response: %w", err)
	}

	return &response, nil
}
