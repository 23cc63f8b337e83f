// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

// Package consoleui is the terminal interface of the HARM console: a
// bubbletea model over a console session.
//
// The screen is chosen from the session's readiness on every render:
//
//   - Loading: no config yet; a spinner.
//   - Stuck: the config fetch failed and nothing is loaded. Shows the
//     error; "r" retries.
//   - Setup: the config has no reforger path. A text input for the
//     path; enter saves it. While the save is in flight further
//     submissions are ignored.
//   - Shell: the server list, with an fzf-style filter ("/"), manual
//     refresh ("r"), and an api_port editor ("p").
//
// Session changes arrive through a command that blocks on
// Session.Changes and re-arms itself, so the model re-renders from a
// fresh [console.View] each time something changes. Warnings and
// errors logged while the program runs are shown in the status bar
// through [TUILogHandler].
package consoleui
