// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the records exchanged between the HARM
// console and the HARM daemon.
//
//   - [AppConfig] is the process-wide configuration record. It travels
//     as CBOR on the control socket and is stored as JSON on disk.
//     Fields the console does not interpret are carried in
//     [AppConfig].Extra and survive every decode/encode cycle, so a
//     whole-record update never drops them.
//   - [ServerSummary] and [ServerListPage] are the JSON resources
//     served by the daemon's HTTP API on AppConfig.APIPort.
//
// This package depends only on lib/codec.
package schema
