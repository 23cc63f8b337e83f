// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package readiness

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Starter starts the daemon's HTTP API. backend.Backend satisfies it.
type Starter interface {
	StartAPI(ctx context.Context) error
}

// Bootstrap calls StartAPI on the first entry into Ready. One
// Bootstrap lives for one console session.
type Bootstrap struct {
	starter Starter
	logger  *slog.Logger

	// onResult, if set, receives the StartAPI result.
	onResult func(error)

	fired atomic.Bool
}

// NewBootstrap returns a Bootstrap that starts the API through
// starter. onResult may be nil.
func NewBootstrap(starter Starter, logger *slog.Logger, onResult func(error)) *Bootstrap {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bootstrap{
		starter:  starter,
		logger:   logger,
		onResult: onResult,
	}
}

// Fired reports whether StartAPI has been called in this session.
func (b *Bootstrap) Fired() bool {
	return b.fired.Load()
}

// Observe is called with every readiness evaluation. It calls
// StartAPI, synchronously, iff current is Ready and StartAPI has not
// been called before in this session, and reports whether it did.
//
// The fired flag is set before the call, so concurrent observers
// cannot both fire and a failure is not retried. The error is logged
// and passed to the result callback; it is not returned because the
// console proceeds to the shell either way.
func (b *Bootstrap) Observe(ctx context.Context, previous, current State) bool {
	if current != Ready {
		return false
	}
	if !b.fired.CompareAndSwap(false, true) {
		return false
	}

	b.logger.Info("starting daemon API", "transition", Transition{From: previous, To: current})
	err := b.starter.StartAPI(ctx)
	if err != nil {
		b.logger.Error("starting daemon API failed", "error", err)
	} else {
		b.logger.Info("daemon API started")
	}
	if b.onResult != nil {
		b.onResult(err)
	}
	return true
}
