// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the time source behind the server-list retry
// backoff. Production code passes [Real]; tests pass a [FakeClock] and
// step it with Advance, so backoff sequences run without sleeping.
package clock
