// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package consoleui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestTUILogHandlerForwardsToNext(t *testing.T) {
	var buffer bytes.Buffer
	next := slog.NewJSONHandler(&buffer, &slog.HandlerOptions{Level: slog.LevelDebug})
	handler := NewTUILogHandler(slog.LevelWarn, next)
	logger := slog.New(handler).With("component", "servercache")

	logger.Debug("fetching server list", "url", "http://127.0.0.1:8080/servers")
	logger.Warn("server list refresh failed", "port", 8080)

	lines := strings.Split(strings.TrimSpace(buffer.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("next handler got %d records, want 2:\n%s", len(lines), buffer.String())
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &record); err != nil {
		t.Fatal(err)
	}
	if record["component"] != "servercache" || record["msg"] != "server list refresh failed" {
		t.Errorf("record = %v", record)
	}
}

func TestTUILogHandlerEnabled(t *testing.T) {
	handler := NewTUILogHandler(slog.LevelWarn, nil)
	if handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info enabled without a next handler")
	}
	if !handler.Enabled(context.Background(), slog.LevelError) {
		t.Error("error not enabled")
	}
}

func TestTUILogHandlerSummary(t *testing.T) {
	handler := NewTUILogHandler(slog.LevelWarn, nil)
	derived := handler.WithAttrs([]slog.Attr{slog.String("component", "bootstrap")}).WithGroup("api").(*TUILogHandler)

	record := slog.NewRecord(time.Now(), slog.LevelError, "starting daemon API failed", 0)
	record.AddAttrs(slog.String("error", "address in use"))

	got := derived.summary(record)
	want := "starting daemon API failed (component=bootstrap, api.error=address in use)"
	if got != want {
		t.Errorf("summary = %q, want %q", got, want)
	}
	if derived.program != handler.program {
		t.Error("derived handler does not share the program pointer")
	}
}

func TestErrorSummary(t *testing.T) {
	joined := errors.Join(errors.New("first problem"), errors.New("second problem"))
	if got := errorSummary(joined); got != "first problem" {
		t.Errorf("errorSummary(joined) = %q", got)
	}
	if got := errorSummary(nil); got != "" {
		t.Errorf("errorSummary(nil) = %q", got)
	}
}
