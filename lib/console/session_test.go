// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/harm-foundation/harm/lib/backend"
	"github.com/harm-foundation/harm/lib/backend/backendtest"
	"github.com/harm-foundation/harm/lib/configstore"
	"github.com/harm-foundation/harm/lib/readiness"
	"github.com/harm-foundation/harm/lib/schema"
	"github.com/harm-foundation/harm/lib/servercache"
	"github.com/harm-foundation/harm/lib/testutil"
)

// apiTransport answers every request with a fixed server list and
// records the hosts it was asked for, so tests can assert the port
// without binding it.
type apiTransport struct {
	mu    sync.Mutex
	hosts []string
	page  schema.ServerListPage
}

func (a *apiTransport) RoundTrip(request *http.Request) (*http.Response, error) {
	a.mu.Lock()
	a.hosts = append(a.hosts, request.URL.Host)
	page := a.page
	a.mu.Unlock()

	data, err := json.Marshal(page)
	if err != nil {
		return nil, err
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(data)),
		Request:    request,
	}, nil
}

func (a *apiTransport) requests() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.hosts...)
}

func newSession(t *testing.T, fake *backendtest.Fake) (*Session, *apiTransport) {
	t.Helper()
	transport := &apiTransport{page: schema.ServerListPage{Data: []schema.ServerSummary{
		{ID: "6f1c", Name: "Everon Conflict", Config: map[string]schema.ConfigValue{}},
	}}}
	session := New(fake, Options{
		Cache: servercache.Options{
			Client: &http.Client{Transport: transport},
			Retry:  servercache.RetryPolicy{Attempts: 1},
		},
		Logger: testutil.DiscardLogger(),
	})
	t.Cleanup(session.Close)
	return session, transport
}

func waitFor(t *testing.T, session *Session, what string, condition func(View) bool) View {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		view := session.View()
		if condition(view) {
			return view
		}
		select {
		case <-session.Changes():
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatalf("timed out waiting for %s; last view: %+v", what, view)
		}
	}
}

func TestSetupScenario(t *testing.T) {
	fake := backendtest.New(schema.AppConfig{APIPort: 8080})
	session, transport := newSession(t, fake)
	session.Start(context.Background())

	waitFor(t, session, "setup screen", func(v View) bool {
		return v.State == readiness.NeedsSetup
	})
	if fake.StartCalls() != 0 {
		t.Errorf("StartAPI called %d times before setup", fake.StartCalls())
	}
	if requests := transport.requests(); len(requests) != 0 {
		t.Errorf("server list fetched before setup: %v", requests)
	}

	if err := session.SaveReforgerPath(context.Background(), "  /opt/reforger/server  "); err != nil {
		t.Fatalf("SaveReforgerPath: %v", err)
	}
	view := waitFor(t, session, "shell with servers", func(v View) bool {
		return v.State == readiness.Ready && v.ServersStatus == servercache.Fresh
	})

	if got := fake.Stored().Path(); got != "/opt/reforger/server" {
		t.Errorf("stored path = %q", got)
	}
	if fake.StartCalls() != 1 {
		t.Errorf("StartAPI calls = %d, want 1", fake.StartCalls())
	}
	if len(view.Servers.Data) != 1 || view.Servers.Data[0].Name != "Everon Conflict" {
		t.Errorf("servers = %+v", view.Servers.Data)
	}
	for _, host := range transport.requests() {
		if host != "127.0.0.1:8080" {
			t.Errorf("fetched from %s, want 127.0.0.1:8080", host)
		}
	}

	// Saving again does not start the API a second time.
	if err := session.SaveReforgerPath(context.Background(), "/opt/reforger/other"); err != nil {
		t.Fatalf("second SaveReforgerPath: %v", err)
	}
	waitFor(t, session, "second path", func(v View) bool {
		return v.Config.Path() == "/opt/reforger/other"
	})
	if fake.StartCalls() != 1 {
		t.Errorf("StartAPI calls after second save = %d, want 1", fake.StartCalls())
	}
}

func TestAlreadyConfiguredStartsOnce(t *testing.T) {
	path := "/srv/reforger"
	fake := backendtest.New(schema.AppConfig{ReforgerPath: &path, APIPort: 8080})
	session, _ := newSession(t, fake)
	session.Start(context.Background())

	waitFor(t, session, "servers", func(v View) bool {
		return v.State == readiness.Ready && v.ServersStatus == servercache.Fresh
	})
	if err := session.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if fake.StartCalls() != 1 {
		t.Errorf("StartAPI calls = %d, want 1", fake.StartCalls())
	}
}

func TestStuckAndRetry(t *testing.T) {
	fake := backendtest.New(schema.AppConfig{APIPort: 8080})
	fake.SetGetConfigErr(fmt.Errorf("%w: dial unix: no such file", backend.ErrUnreachable))
	session, _ := newSession(t, fake)
	session.Start(context.Background())

	view := waitFor(t, session, "stuck", View.Stuck)
	if !errors.Is(view.LoadErr, backend.ErrUnreachable) {
		t.Errorf("LoadErr = %v", view.LoadErr)
	}

	fake.SetGetConfigErr(nil)
	if err := session.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	waitFor(t, session, "setup after retry", func(v View) bool {
		return v.State == readiness.NeedsSetup && !v.Stuck()
	})
}

func TestPortChangeRefetchesFromNewPort(t *testing.T) {
	path := "/srv/reforger"
	fake := backendtest.New(schema.AppConfig{ReforgerPath: &path, APIPort: 8080})
	session, transport := newSession(t, fake)
	session.Start(context.Background())

	waitFor(t, session, "servers", func(v View) bool {
		return v.ServersStatus == servercache.Fresh
	})

	if err := session.SetAPIPort(context.Background(), 9090); err != nil {
		t.Fatalf("SetAPIPort: %v", err)
	}
	waitFor(t, session, "servers from new port", func(v View) bool {
		port, ok := session.Cache().Port()
		return ok && port == 9090 && v.ServersStatus == servercache.Fresh
	})

	requests := transport.requests()
	if last := requests[len(requests)-1]; last != "127.0.0.1:9090" {
		t.Errorf("last fetch from %s, want 127.0.0.1:9090", last)
	}
	if fake.StartCalls() != 1 {
		t.Errorf("StartAPI calls = %d, want 1", fake.StartCalls())
	}

	if err := session.SetAPIPort(context.Background(), 70000); err == nil {
		t.Error("SetAPIPort accepted an out-of-range port")
	}
}

func TestObservePortTracksLoadedSnapshotsOnly(t *testing.T) {
	session, _ := newSession(t, backendtest.New(schema.AppConfig{APIPort: 8080}))
	snapshot := func(port int, loaded bool) configstore.Snapshot {
		return configstore.Snapshot{Config: schema.AppConfig{APIPort: port}, Loaded: loaded}
	}

	steps := []struct {
		name     string
		snapshot configstore.Snapshot
		want     bool
	}{
		{"unloaded before first load", snapshot(0, false), false},
		{"first loaded port", snapshot(8080, true), false},
		{"same port again", snapshot(8080, true), false},
		{"port moved", snapshot(9090, true), true},
		{"unloaded in between", snapshot(0, false), false},
		{"port unchanged after unloaded", snapshot(9090, true), false},
		{"port moved back", snapshot(8080, true), true},
	}
	for _, step := range steps {
		if got := session.observePort(step.snapshot); got != step.want {
			t.Errorf("%s: observePort = %v, want %v", step.name, got, step.want)
		}
	}
}

func TestClearedPathStaysInShell(t *testing.T) {
	path := "/srv/reforger"
	fake := backendtest.New(schema.AppConfig{ReforgerPath: &path, APIPort: 8080})
	session, _ := newSession(t, fake)
	session.Start(context.Background())
	waitFor(t, session, "ready", func(v View) bool { return v.State == readiness.Ready })

	fake.Set(schema.AppConfig{APIPort: 8080})
	if err := session.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	waitFor(t, session, "cleared path applied", func(v View) bool {
		return !v.Config.HasReforgerPath()
	})
	if state := session.View().State; state != readiness.Ready {
		t.Errorf("state = %s, want ready", state)
	}
}

func TestAPIStartFailureDoesNotBlockShell(t *testing.T) {
	path := "/srv/reforger"
	fake := backendtest.New(schema.AppConfig{ReforgerPath: &path, APIPort: 8080})
	fake.SetStartAPIErr(errors.New("address already in use"))
	session, _ := newSession(t, fake)
	session.Start(context.Background())

	view := waitFor(t, session, "api failure reported", func(v View) bool {
		return v.APIErr != nil && v.ServersStatus == servercache.Fresh
	})
	if view.State != readiness.Ready || !view.APIStarted {
		t.Errorf("view = %+v", view)
	}
}

func TestSettersRequireLoadedConfig(t *testing.T) {
	session, _ := newSession(t, backendtest.New(schema.AppConfig{APIPort: 8080}))

	if err := session.SaveReforgerPath(context.Background(), "/srv"); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("SaveReforgerPath before load = %v, want ErrNotLoaded", err)
	}
	if err := session.SaveReforgerPath(context.Background(), "   "); !errors.Is(err, ErrEmptyPath) {
		t.Errorf("SaveReforgerPath blank = %v, want ErrEmptyPath", err)
	}
	if err := session.SetAPIPort(context.Background(), 9000); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("SetAPIPort before load = %v, want ErrNotLoaded", err)
	}
}
