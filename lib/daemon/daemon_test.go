// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harm-foundation/harm/lib/appconfig"
	"github.com/harm-foundation/harm/lib/backend"
	"github.com/harm-foundation/harm/lib/schema"
	"github.com/harm-foundation/harm/lib/serverstore"
	"github.com/harm-foundation/harm/lib/service"
	"github.com/harm-foundation/harm/lib/testutil"
)

type harness struct {
	daemon  *Daemon
	client  *backend.SocketBackend
	file    *appconfig.File
	gameDir string
}

// freePort returns a TCP port that was free a moment ago.
func freePort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port
}

func startDaemon(t *testing.T) *harness {
	t.Helper()
	logger := testutil.DiscardLogger()
	stateDir := t.TempDir()

	store, err := serverstore.Open(context.Background(), filepath.Join(stateDir, "servers.db"), logger)
	if err != nil {
		t.Fatalf("serverstore.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	file := appconfig.New(filepath.Join(stateDir, "config.json"), freePort(t), logger)
	socketPath := filepath.Join(testutil.SocketDir(t), "harmd.sock")
	daemon, err := New(Config{
		SocketPath:      socketPath,
		AppConfig:       file,
		Registry:        store,
		ShutdownTimeout: time.Second,
		Logger:          logger,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- daemon.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Serve: %v", err)
		}
	})
	testutil.RequireClosed(t, daemon.Ready(), 5*time.Second, "control socket never listened")

	gameDir := filepath.Join(stateDir, "reforger")
	if err := os.Mkdir(gameDir, 0o755); err != nil {
		t.Fatal(err)
	}
	return &harness{
		daemon:  daemon,
		client:  backend.NewSocketBackend(socketPath),
		file:    file,
		gameDir: gameDir,
	}
}

func (h *harness) configure(t *testing.T, port int) schema.AppConfig {
	t.Helper()
	config := schema.AppConfig{APIPort: port}.WithReforgerPath(h.gameDir)
	stored, err := h.client.UpdateConfig(context.Background(), config)
	if err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}
	return stored
}

func listServers(t *testing.T, addr net.Addr) schema.ServerListPage {
	t.Helper()
	response, err := http.Get("http://" + addr.String() + "/servers")
	if err != nil {
		t.Fatalf("GET /servers: %v", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		t.Fatalf("GET /servers status = %d", response.StatusCode)
	}
	var page schema.ServerListPage
	if err := json.NewDecoder(response.Body).Decode(&page); err != nil {
		t.Fatalf("decoding page: %v", err)
	}
	return page
}

func TestGetConfigReturnsDefaults(t *testing.T) {
	h := startDaemon(t)

	config, err := h.client.GetConfig(context.Background())
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if config.HasReforgerPath() {
		t.Errorf("fresh daemon has reforger_path %q", config.Path())
	}
	if config.APIPort != h.file.Default().APIPort {
		t.Errorf("api_port = %d, want %d", config.APIPort, h.file.Default().APIPort)
	}
}

func TestUpdateConfigPersists(t *testing.T) {
	h := startDaemon(t)

	config := schema.AppConfig{
		APIPort: 8080,
		Extra:   map[string]any{"theme": "dark"},
	}.WithReforgerPath(h.gameDir)
	stored, err := h.client.UpdateConfig(context.Background(), config)
	if err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}
	if stored.Path() != h.gameDir || stored.APIPort != 8080 {
		t.Errorf("stored = %+v", stored)
	}

	onDisk, err := h.file.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if onDisk.Path() != h.gameDir || onDisk.Extra["theme"] != "dark" {
		t.Errorf("on disk = %+v", onDisk)
	}

	fetched, err := h.client.GetConfig(context.Background())
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if fetched.Path() != h.gameDir {
		t.Errorf("GetConfig path = %q", fetched.Path())
	}
}

func TestUpdateConfigRejectsMissingPath(t *testing.T) {
	h := startDaemon(t)

	config := schema.AppConfig{APIPort: 8080}.WithReforgerPath(filepath.Join(h.gameDir, "missing"))
	_, err := h.client.UpdateConfig(context.Background(), config)
	if !errors.Is(err, backend.ErrPersistFailed) {
		t.Fatalf("UpdateConfig = %v, want ErrPersistFailed", err)
	}
	var serviceError *service.ServiceError
	if !errors.As(err, &serviceError) {
		t.Errorf("error %v does not carry the daemon's message", err)
	}

	onDisk, err := h.file.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if onDisk.HasReforgerPath() {
		t.Errorf("rejected update reached disk: %+v", onDisk)
	}
}

func TestUpdateConfigRejectsInvalidPort(t *testing.T) {
	h := startDaemon(t)

	_, err := h.client.UpdateConfig(context.Background(), schema.AppConfig{APIPort: 0})
	if !errors.Is(err, backend.ErrPersistFailed) {
		t.Fatalf("UpdateConfig = %v, want ErrPersistFailed", err)
	}
}

func TestStartAPIRequiresReforgerPath(t *testing.T) {
	h := startDaemon(t)

	err := h.client.StartAPI(context.Background())
	if err == nil {
		t.Fatal("StartAPI succeeded without a reforger path")
	}
	if errors.Is(err, backend.ErrUnreachable) {
		t.Errorf("StartAPI = %v, want a daemon rejection", err)
	}
	if h.daemon.APIAddr() != nil {
		t.Error("API is running")
	}
}

func TestStartAPIIsIdempotent(t *testing.T) {
	h := startDaemon(t)
	port := freePort(t)
	h.configure(t, port)
	ctx := context.Background()

	if err := h.client.StartAPI(ctx); err != nil {
		t.Fatalf("StartAPI: %v", err)
	}
	first := h.daemon.APIAddr()
	if first == nil {
		t.Fatal("API not running after StartAPI")
	}
	if first.(*net.TCPAddr).Port != port {
		t.Errorf("API on port %d, want %d", first.(*net.TCPAddr).Port, port)
	}

	if err := h.client.StartAPI(ctx); err != nil {
		t.Fatalf("second StartAPI: %v", err)
	}
	if second := h.daemon.APIAddr(); second == nil || second.String() != first.String() {
		t.Errorf("second StartAPI moved the API from %v to %v", first, second)
	}

	if page := listServers(t, first); len(page.Data) != 0 || page.NextPage != "" {
		t.Errorf("empty registry page = %+v", page)
	}
}

func TestStopAPI(t *testing.T) {
	h := startDaemon(t)
	h.configure(t, freePort(t))
	ctx := context.Background()

	if err := h.client.StartAPI(ctx); err != nil {
		t.Fatalf("StartAPI: %v", err)
	}
	addr := h.daemon.APIAddr()

	if err := h.client.StopAPI(ctx); err != nil {
		t.Fatalf("StopAPI: %v", err)
	}
	if h.daemon.APIAddr() != nil {
		t.Error("API still reported running")
	}
	if _, err := http.Get("http://" + addr.String() + "/servers"); err == nil {
		t.Error("API still answering after StopAPI")
	}

	// Stopping a stopped API is a no-op.
	if err := h.client.StopAPI(ctx); err != nil {
		t.Fatalf("second StopAPI: %v", err)
	}
	if err := h.client.StartAPI(ctx); err != nil {
		t.Fatalf("StartAPI after stop: %v", err)
	}
}

func TestPortChangeMovesRunningAPI(t *testing.T) {
	h := startDaemon(t)
	h.configure(t, freePort(t))
	ctx := context.Background()

	if err := h.client.StartAPI(ctx); err != nil {
		t.Fatalf("StartAPI: %v", err)
	}

	newPort := freePort(t)
	h.configure(t, newPort)

	addr := h.daemon.APIAddr()
	if addr == nil {
		t.Fatal("API stopped by port change")
	}
	if addr.(*net.TCPAddr).Port != newPort {
		t.Fatalf("API on port %d, want %d", addr.(*net.TCPAddr).Port, newPort)
	}
	listServers(t, addr)
}

func TestUpdateConfigBusyPortLeavesStateUnchanged(t *testing.T) {
	h := startDaemon(t)
	oldPort := freePort(t)
	h.configure(t, oldPort)
	ctx := context.Background()

	if err := h.client.StartAPI(ctx); err != nil {
		t.Fatalf("StartAPI: %v", err)
	}
	oldAddr := h.daemon.APIAddr()
	if oldAddr == nil {
		t.Fatal("API not running after StartAPI")
	}

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer busy.Close()
	busyPort := busy.Addr().(*net.TCPAddr).Port

	config := schema.AppConfig{APIPort: busyPort}.WithReforgerPath(h.gameDir)
	_, err = h.client.UpdateConfig(ctx, config)
	if !errors.Is(err, backend.ErrPersistFailed) {
		t.Fatalf("UpdateConfig on busy port = %v, want ErrPersistFailed", err)
	}

	fetched, err := h.client.GetConfig(ctx)
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if fetched.APIPort != oldPort {
		t.Errorf("GetConfig api_port = %d, want %d", fetched.APIPort, oldPort)
	}
	onDisk, err := h.file.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if onDisk.APIPort != oldPort {
		t.Errorf("on-disk api_port = %d, want %d", onDisk.APIPort, oldPort)
	}

	addr := h.daemon.APIAddr()
	if addr == nil {
		t.Fatal("failed update stopped the running API")
	}
	if addr.String() != oldAddr.String() {
		t.Errorf("API moved from %v to %v", oldAddr, addr)
	}
	listServers(t, addr)

	// The port is usable again once released.
	busy.Close()
	h.configure(t, busyPort)
	if moved := h.daemon.APIAddr(); moved == nil || moved.(*net.TCPAddr).Port != busyPort {
		t.Errorf("API at %v after retry, want port %d", moved, busyPort)
	}
}

func TestUpdateConfigSamePortKeepsRunningAPI(t *testing.T) {
	h := startDaemon(t)
	port := freePort(t)
	h.configure(t, port)
	ctx := context.Background()

	if err := h.client.StartAPI(ctx); err != nil {
		t.Fatalf("StartAPI: %v", err)
	}
	before := h.daemon.APIAddr()

	config := schema.AppConfig{APIPort: port, Extra: map[string]any{"theme": "light"}}.WithReforgerPath(h.gameDir)
	if _, err := h.client.UpdateConfig(ctx, config); err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}
	if after := h.daemon.APIAddr(); after == nil || after.String() != before.String() {
		t.Errorf("API at %v after same-port update, want %v", after, before)
	}
}
