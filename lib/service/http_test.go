// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/harm-foundation/harm/lib/testutil"
)

func TestHTTPServerServeAndShutdown(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /servers", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"next_page":"","data":[]}`)
	})

	server := NewHTTPServer(HTTPServerConfig{
		Address: "127.0.0.1:0",
		Handler: mux,
		Logger:  testutil.DiscardLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()

	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "http server ready")

	response, err := http.Get(fmt.Sprintf("http://%s/servers", server.Addr()))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(response.Body)
	response.Body.Close()
	if response.StatusCode != http.StatusOK {
		t.Errorf("status = %d", response.StatusCode)
	}
	if string(body) != `{"next_page":"","data":[]}` {
		t.Errorf("body = %s", body)
	}

	cancel()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "serve return"); err != nil {
		t.Errorf("Serve returned %v", err)
	}
}

func TestNewHTTPServerPanicsWithoutAddress(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("missing Address did not panic")
		}
	}()
	NewHTTPServer(HTTPServerConfig{Handler: http.NewServeMux(), Logger: testutil.DiscardLogger()})
}
