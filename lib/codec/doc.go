// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides HARM's standard CBOR encoding configuration.
//
// HARM uses two serialization formats with a clear boundary:
//
//   - JSON for the daemon's HTTP API (GET /servers and friends) and
//     for the on-disk AppConfig file, which operators edit by hand.
//   - CBOR for the console↔daemon control socket (get_config,
//     update_config, start_api, stop_api) and for the canonical form
//     used to fingerprint an AppConfig.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2), so the
// same logical value always produces identical bytes. The config store
// relies on this: two AppConfig values with equal content hash equal.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For sockets:
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Types shared between the HTTP API and the socket carry `json` tags
// only; fxamacker/cbor falls back to them when `cbor` tags are absent.
// Socket-only envelopes carry `cbor` tags.
package codec
