// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the HARM
// console and daemon.
//
// Configuration comes from a single file named by the --config flag
// or, failing that, the HARM_CONFIG environment variable (see
// [Resolve]). With neither set the built-in defaults are used; there
// is no search path.
//
// The file may carry development and production sections that
// override base values when [Config].Environment matches.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${HARM_ROOT}, and ${VAR:-default} patterns are expanded.
// No other environment variables override config values.
//
// This package depends on no other HARM packages.
package config
