// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the daemon's SQLite connection pool.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool. Callers
// [Pool.Take] a connection, perform work, and [Pool.Put] it back, or
// use [Pool.With] to do both. Connections are not safe for concurrent
// use; each goroutine holds its own for the duration of its work.
//
// Every connection is initialized with:
//
//   - journal_mode=WAL: readers never block the writer.
//   - synchronous=NORMAL: commits survive a daemon crash but not a
//     power failure. The registry only holds server definitions the
//     user can recreate.
//   - busy_timeout=5000: wait for the write lock instead of failing.
//   - foreign_keys=ON.
//
// Schema statements in [Config].Schema are executed once, inside a
// transaction, when the pool is opened.
package sqlitepool
