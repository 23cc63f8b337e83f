// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/harm-foundation/harm/lib/schema"
	"github.com/harm-foundation/harm/lib/service"
)

// Control socket action names.
const (
	ActionGetConfig    = "get_config"
	ActionUpdateConfig = "update_config"
	ActionStartAPI     = "start_api"
	ActionStopAPI      = "stop_api"
)

var (
	// ErrUnreachable means the daemon could not be reached.
	ErrUnreachable = errors.New("backend unreachable")

	// ErrPersistFailed means the daemon refused to store a config.
	ErrPersistFailed = errors.New("backend rejected config write")
)

// Backend is the set of daemon operations the console consumes.
type Backend interface {
	// GetConfig returns the authoritative AppConfig.
	GetConfig(ctx context.Context) (schema.AppConfig, error)

	// UpdateConfig replaces the whole AppConfig and returns the value
	// the daemon persisted.
	UpdateConfig(ctx context.Context, config schema.AppConfig) (schema.AppConfig, error)

	// StartAPI asks the daemon to start its HTTP API. The daemon
	// treats repeated calls as no-ops.
	StartAPI(ctx context.Context) error
}

// UpdateConfigRequest is the update_config request body beyond the
// action field.
type UpdateConfigRequest struct {
	Config schema.AppConfig `cbor:"config"`
}

// SocketBackend implements Backend over the daemon's control socket.
type SocketBackend struct {
	client *service.ServiceClient
}

// NewSocketBackend returns a backend that dials socketPath per call.
func NewSocketBackend(socketPath string) *SocketBackend {
	return &SocketBackend{client: service.NewServiceClient(socketPath)}
}

// SocketPath returns the control socket path.
func (b *SocketBackend) SocketPath() string {
	return b.client.SocketPath()
}

// GetConfig implements Backend.
func (b *SocketBackend) GetConfig(ctx context.Context) (schema.AppConfig, error) {
	var config schema.AppConfig
	if err := b.client.Call(ctx, ActionGetConfig, nil, &config); err != nil {
		return schema.AppConfig{}, classify(err, nil)
	}
	return config, nil
}

// UpdateConfig implements Backend.
func (b *SocketBackend) UpdateConfig(ctx context.Context, config schema.AppConfig) (schema.AppConfig, error) {
	var stored schema.AppConfig
	fields := map[string]any{"config": config}
	if err := b.client.Call(ctx, ActionUpdateConfig, fields, &stored); err != nil {
		return schema.AppConfig{}, classify(err, ErrPersistFailed)
	}
	return stored, nil
}

// StartAPI implements Backend.
func (b *SocketBackend) StartAPI(ctx context.Context) error {
	if err := b.client.Call(ctx, ActionStartAPI, nil, nil); err != nil {
		return classify(err, nil)
	}
	return nil
}

// StopAPI asks the daemon to stop its HTTP API.
func (b *SocketBackend) StopAPI(ctx context.Context) error {
	if err := b.client.Call(ctx, ActionStopAPI, nil, nil); err != nil {
		return classify(err, nil)
	}
	return nil
}

// classify wraps err with ErrUnreachable when the daemon never
// answered, or with rejected (if non-nil) when it answered ok=false.
func classify(err error, rejected error) error {
	var serviceError *service.ServiceError
	if errors.As(err, &serviceError) {
		if rejected != nil {
			return fmt.Errorf("%w: %w", rejected, err)
		}
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnreachable, err)
}
