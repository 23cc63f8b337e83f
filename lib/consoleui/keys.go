// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package consoleui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the console's key bindings. Bindings are screen
// specific; Setup and the text inputs consume printable keys, so only
// ForceQuit works there.
type KeyMap struct {
	Up   key.Binding
	Down key.Binding

	Retry   key.Binding // Stuck: reload config.
	Refresh key.Binding // Shell: refetch servers.
	Submit  key.Binding // Setup and editors: save.
	Cancel  key.Binding // Editors: discard.

	FilterActivate key.Binding
	FilterClear    key.Binding

	EditPort key.Binding

	Quit      key.Binding
	ForceQuit key.Binding
}

// DefaultKeyMap is the built-in key binding set.
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	Retry: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "retry"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "save"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	),
	FilterActivate: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "filter"),
	),
	FilterClear: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "clear filter"),
	),
	EditPort: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "api port"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q"),
		key.WithHelp("q", "quit"),
	),
	ForceQuit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("C-c", "quit"),
	),
}
