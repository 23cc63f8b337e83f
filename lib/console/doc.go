// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

// Package console is the application root of the HARM console. A
// [Session] owns the config store, the server list cache, and the
// API bootstrap, and keeps them consistent with each other:
//
//   - every config change is run through readiness.Decide and the
//     session's readiness.Machine;
//   - the first entry into Ready starts the daemon API, then fetches
//     the server list;
//   - a change of api_port invalidates the cached server list and
//     refetches it from the new port.
//
// The terminal UI renders [Session.View] and re-renders whenever
// [Session.Changes] fires.
package console
