// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the transport scaffolding shared by the
// HARM daemon and the console.
//
//   - [SocketServer] serves a CBOR request/response protocol on a Unix
//     socket: one request per connection, routed by its "action" field
//     to a registered [ActionFunc]. The daemon exposes get_config,
//     update_config, start_api and stop_api this way.
//   - [ServiceClient] is the matching client. Transport failures come
//     back as plain wrapped errors; handler rejections come back as
//     [*ServiceError], so callers can tell "daemon unreachable" from
//     "daemon said no".
//   - [HTTPServer] owns a TCP listener and an http.Handler with
//     graceful shutdown, used for the daemon's /servers API.
//
// Every response has the envelope {ok, error, data}; data is the CBOR
// encoding of the handler's result.
package service
