// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewCommandLogger returns a logger on stderr at level: text when
// stderr is a terminal, JSON otherwise.
func NewCommandLogger(level slog.Level) *slog.Logger {
	return newLogger(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())), level)
}

func newLogger(w io.Writer, terminal bool, level slog.Level) *slog.Logger {
	options := &slog.HandlerOptions{Level: level}
	if terminal {
		return slog.New(slog.NewTextHandler(w, options))
	}
	return slog.New(slog.NewJSONHandler(w, options))
}

// OpenFileLogHandler creates or truncates path and returns a JSON
// handler writing every record to it, plus the function that closes
// the file.
func OpenFileLogHandler(path string) (slog.Handler, func() error, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})
	return handler, file.Close, nil
}

// FanoutHandler sends each record to every handler enabled for its
// level.
type FanoutHandler []slog.Handler

func (handlers FanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (handlers FanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range handlers {
		if handler.Enabled(ctx, record.Level) {
			if err := handler.Handle(ctx, record.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (handlers FanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := make(FanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithAttrs(attrs)
	}
	return derived
}

func (handlers FanoutHandler) WithGroup(name string) slog.Handler {
	derived := make(FanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithGroup(name)
	}
	return derived
}
