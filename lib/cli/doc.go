// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli holds the process-level plumbing shared by the harm
// binaries: categorized errors and exit codes for main, and the slog
// handlers the binaries log through.
//
// A binary's main calls run() and hands the error to [Exit], which
// prints it (with its hint, if any) and picks the exit code.
package cli
