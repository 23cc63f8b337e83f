// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

// Package servercache holds the console's cached copy of the daemon's
// server list.
//
// The cache has a single entry, the first page of GET /servers, and it
// is gated on the config store: until a config has been loaded there
// is no api_port to talk to, so [Cache.Read] reports Pending and
// [Cache.Refresh] makes no request. Once a page has been fetched it is
// served stale while a refresh is in flight and kept, marked Stale,
// when a refresh fails.
//
// Each entry remembers the api_port it was fetched from. The console
// session calls [Cache.Invalidate] when the configured port changes;
// invalidation also discards the result of any fetch still in flight.
package servercache
