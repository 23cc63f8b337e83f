// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds the helpers shared by HARM's package tests:
// bounded channel waits ([RequireReceive], [RequireClosed]), polling
// ([Eventually]), short socket directories ([SocketDir]), and a
// [DiscardLogger].
//
// Unix socket paths are limited to 108 bytes, which t.TempDir() can
// exceed, so [SocketDir] creates its directory under /tmp.
package testutil
