// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"log/slog"
	"os"
	"testing"
)

// SocketDir creates a temporary directory suitable for Unix domain
// sockets. It is removed when the test completes.
func SocketDir(t *testing.T) string {
	t.Helper()
	directory, err := os.MkdirTemp("/tmp", "harm-test-*")
	if err != nil {
		t.Fatalf("creating socket directory: %v", err)
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(directory)
	})
	return directory
}

// DiscardLogger returns a logger that drops all records.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
