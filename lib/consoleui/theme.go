// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package consoleui

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme is the console's color palette. Colors are ANSI 256 codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color

	Fresh lipgloss.Color
	Stale lipgloss.Color
	Error lipgloss.Color

	MatchForeground lipgloss.Color
}

// DefaultTheme targets dark 256-color terminals.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),

	Fresh: lipgloss.Color("114"), // green
	Stale: lipgloss.Color("220"), // amber
	Error: lipgloss.Color("196"), // red

	MatchForeground: lipgloss.Color("75"),
}

// styles are the lipgloss styles derived from a Theme for one
// renderer.
type styles struct {
	header   lipgloss.Style
	normal   lipgloss.Style
	faint    lipgloss.Style
	selected lipgloss.Style
	help     lipgloss.Style
	fresh    lipgloss.Style
	stale    lipgloss.Style
	error    lipgloss.Style
	match    lipgloss.Style
	panel    lipgloss.Style
}

// NewRenderer returns a lipgloss renderer writing to w with a fixed
// color profile. Tests use termenv.Ascii to get plain text.
func NewRenderer(w io.Writer, profile termenv.Profile) *lipgloss.Renderer {
	renderer := lipgloss.NewRenderer(w, termenv.WithProfile(profile))
	renderer.SetColorProfile(profile)
	return renderer
}

func (theme Theme) styles(renderer *lipgloss.Renderer) styles {
	return styles{
		header:   renderer.NewStyle().Foreground(theme.HeaderForeground).Bold(true),
		normal:   renderer.NewStyle().Foreground(theme.NormalText),
		faint:    renderer.NewStyle().Foreground(theme.FaintText),
		selected: renderer.NewStyle().Foreground(theme.SelectedForeground).Background(theme.SelectedBackground),
		help:     renderer.NewStyle().Foreground(theme.HelpText),
		fresh:    renderer.NewStyle().Foreground(theme.Fresh),
		stale:    renderer.NewStyle().Foreground(theme.Stale),
		error:    renderer.NewStyle().Foreground(theme.Error),
		match:    renderer.NewStyle().Foreground(theme.MatchForeground).Bold(true),
		panel: renderer.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.BorderColor).
			Padding(0, 1),
	}
}
