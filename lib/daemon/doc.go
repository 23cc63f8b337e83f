// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

// Package daemon implements harmd, the backend the console talks to.
//
// The daemon owns the authoritative AppConfig (persisted through
// appconfig) and answers four actions on its control socket:
// get_config, update_config, start_api, and stop_api. start_api
// brings up the HTTP API on 127.0.0.1:<api_port>, serving the server
// registry:
//
//	GET  /servers?limit=N&page_token=T   ServerListPage, id order
//	GET  /servers/{id}                   ServerSummary
//	POST /servers {"name": "..."}        ServerSummary, new id
//
// start_api is idempotent while the API runs. An update that changes
// api_port moves a running API to the new port.
//
// One daemon owns a state directory at a time; [AcquireLock] takes an
// exclusive flock on the configured lock file.
package daemon
