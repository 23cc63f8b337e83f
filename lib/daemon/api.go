// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/harm-foundation/harm/lib/schema"
	"github.com/harm-foundation/harm/lib/serverstore"
)

// maxRequestBody bounds POST bodies.
const maxRequestBody = 64 << 10

// Registry is the server store the API serves.
type Registry interface {
	List(ctx context.Context, limit int, pageToken string) (schema.ServerListPage, error)
	Get(ctx context.Context, id string) (schema.ServerSummary, error)
	Create(ctx context.Context, name string) (schema.ServerSummary, error)
}

// CreateServerRequest is the body of POST /servers.
type CreateServerRequest struct {
	Name string `json:"name"`
}

// NewAPIHandler returns the HTTP handler for the /servers API.
func NewAPIHandler(registry Registry, logger *slog.Logger) http.Handler {
	api := &apiHandler{registry: registry, logger: logger}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /servers", api.listServers)
	mux.HandleFunc("GET /servers/{id}", api.getServer)
	mux.HandleFunc("POST /servers", api.createServer)
	return mux
}

type apiHandler struct {
	registry Registry
	logger   *slog.Logger
}

func (a *apiHandler) listServers(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	page, err := a.registry.List(r.Context(), limit, r.URL.Query().Get("page_token"))
	if err != nil {
		a.logger.Error("listing servers failed", "error", err)
		writeError(w, http.StatusInternalServerError, "listing servers failed")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *apiHandler) getServer(w http.ResponseWriter, r *http.Request) {
	server, err := a.registry.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, serverstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		a.logger.Error("getting server failed", "error", err)
		writeError(w, http.StatusInternalServerError, "getting server failed")
		return
	}
	writeJSON(w, http.StatusOK, server)
}

func (a *apiHandler) createServer(w http.ResponseWriter, r *http.Request) {
	var request CreateServerRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	request.Name = strings.TrimSpace(request.Name)
	if request.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	server, err := a.registry.Create(r.Context(), request.Name)
	if err != nil {
		a.logger.Error("creating server failed", "error", err)
		writeError(w, http.StatusInternalServerError, "creating server failed")
		return
	}
	writeJSON(w, http.StatusOK, server)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
