// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

// Package readiness decides which screen the console shows and starts
// the daemon's HTTP API the first time the console becomes ready.
//
// [Decide] is a pure function of the cached AppConfig: a pending
// config means Loading, a config without a reforger path means
// NeedsSetup, anything else is Ready. [Machine] tracks the session's
// state across re-evaluations and refuses to leave Ready once it has
// been reached. [Bootstrap] watches the machine's transitions and
// calls StartAPI exactly once per session, on the first entry into
// Ready. A failed StartAPI is reported and never retried; the console
// proceeds to the shell regardless.
package readiness
