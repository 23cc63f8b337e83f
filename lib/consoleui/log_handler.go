// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package consoleui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// logRecordMsg carries a log record to the status bar.
type logRecordMsg struct {
	Summary string
	Level   slog.Level
}

// logRecordFadeMsg clears the status bar message. Sequence matches the
// message it was scheduled for, so an older fade does not clear a
// newer message.
type logRecordFadeMsg struct {
	Sequence int
}

const logRecordFadeDelay = 5 * time.Second

// TUILogHandler is a slog.Handler that shows records in the console's
// status bar. Records at or above level are sent to the program set by
// SetProgram; records arriving before that are dropped from the status
// bar. Every record is also passed to next, if non-nil, so a file log
// keeps the full stream.
//
// Handlers derived with WithAttrs and WithGroup share the program
// pointer with their parent.
type TUILogHandler struct {
	level   slog.Level
	program *atomic.Pointer[tea.Program]
	next    slog.Handler
	attrs   []slog.Attr
	prefix  string
}

// NewTUILogHandler returns a handler delivering records at or above
// level to the status bar. next may be nil.
func NewTUILogHandler(level slog.Level, next slog.Handler) *TUILogHandler {
	return &TUILogHandler{
		level:   level,
		program: &atomic.Pointer[tea.Program]{},
		next:    next,
	}
}

// SetProgram sets the program that receives status bar records.
func (handler *TUILogHandler) SetProgram(program *tea.Program) {
	handler.program.Store(program)
}

// Enabled implements slog.Handler.
func (handler *TUILogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level >= handler.level {
		return true
	}
	return handler.next != nil && handler.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (handler *TUILogHandler) Handle(ctx context.Context, record slog.Record) error {
	var nextErr error
	if handler.next != nil && handler.next.Enabled(ctx, record.Level) {
		nextErr = handler.next.Handle(ctx, record)
	}
	if record.Level < handler.level {
		return nextErr
	}
	program := handler.program.Load()
	if program == nil {
		return nextErr
	}
	program.Send(logRecordMsg{
		Summary: handler.summary(record),
		Level:   record.Level,
	})
	return nextErr
}

// summary formats "message (key=value, ...)".
func (handler *TUILogHandler) summary(record slog.Record) string {
	var parts []string
	for _, attr := range handler.attrs {
		parts = append(parts, fmt.Sprintf("%s=%s", attr.Key, attr.Value))
	}
	record.Attrs(func(attr slog.Attr) bool {
		parts = append(parts, fmt.Sprintf("%s%s=%s", handler.prefix, attr.Key, attr.Value))
		return true
	})
	if len(parts) == 0 {
		return record.Message
	}
	return record.Message + " (" + strings.Join(parts, ", ") + ")"
}

// WithAttrs implements slog.Handler.
func (handler *TUILogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := handler.derive()
	for _, attr := range attrs {
		attr.Key = handler.prefix + attr.Key
		derived.attrs = append(derived.attrs, attr)
	}
	if handler.next != nil {
		derived.next = handler.next.WithAttrs(attrs)
	}
	return derived
}

// WithGroup implements slog.Handler.
func (handler *TUILogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return handler
	}
	derived := handler.derive()
	derived.prefix = handler.prefix + name + "."
	if handler.next != nil {
		derived.next = handler.next.WithGroup(name)
	}
	return derived
}

func (handler *TUILogHandler) derive() *TUILogHandler {
	return &TUILogHandler{
		level:   handler.level,
		program: handler.program,
		next:    handler.next,
		attrs:   append([]slog.Attr(nil), handler.attrs...),
		prefix:  handler.prefix,
	}
}

// errorSummary renders an error for the status bar, keeping only the
// outermost joined error on one line.
func errorSummary(err error) string {
	if err == nil {
		return ""
	}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		if errs := joined.Unwrap(); len(errs) > 0 {
			return errs[0].Error()
		}
	}
	return strings.ReplaceAll(err.Error(), "\n", " ")
}
