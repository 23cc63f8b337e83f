// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

// Package backend is the console's view of the HARM daemon: the three
// control operations the console depends on, behind the [Backend]
// interface, plus [SocketBackend], which carries them over the
// daemon's CBOR control socket.
//
// Failures are classified with two sentinels so the console can tell
// them apart with errors.Is:
//
//   - [ErrUnreachable]: the socket could not be dialed, or the
//     exchange broke down before the daemon answered.
//   - [ErrPersistFailed]: the daemon answered update_config with a
//     rejection (for example a reforger path that does not exist).
package backend
