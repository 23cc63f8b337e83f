// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the harm binaries.
//
// [GitCommit], [GitDirty], [BuildTime], and [Version] are injected with
// -ldflags -X at release time:
//
//	go build -ldflags "-X github.com/harm-foundation/harm/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// When they are not injected (go install, go run, tests), the VCS
// stamp that the toolchain embeds in the binary is used instead.
package version
