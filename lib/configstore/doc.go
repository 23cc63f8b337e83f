// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

// Package configstore holds the console's cached copy of the daemon's
// AppConfig.
//
// The [Store] is read-through and write-through: [Store.Load] fetches
// the authoritative record, [Store.Update] writes a whole record and
// then re-fetches it, and [Store.Read] only ever returns a value the
// daemon produced. Before the first successful fetch, Read reports
// "pending"; the store never invents a default.
//
// At most one update is in flight at a time. A second Update while the
// first is outstanding fails with [ErrUpdateInProgress] without
// contacting the daemon. Updates run on a context detached from the
// caller's cancellation: once a write is sent it either completes or
// fails explicitly.
//
// Consumers observe changes through [Store.Subscribe]. Each
// notification is a [Snapshot] carrying a BLAKE3 fingerprint of the
// record's deterministic CBOR encoding; a fetch that returns the same
// content does not notify.
package configstore
