// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package consoleui

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/harm-foundation/harm/lib/servercache"
)

const defaultWidth = 80

// View implements tea.Model.
func (m Model) View() string {
	var body string
	switch m.Screen() {
	case ScreenLoading:
		body = m.viewLoading()
	case ScreenStuck:
		body = m.viewStuck()
	case ScreenSetup:
		body = m.viewSetup()
	case ScreenShell:
		body = m.viewShell()
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, m.viewStatusBar())
}

func (m Model) contentWidth() int {
	if m.width <= 0 {
		return defaultWidth
	}
	return m.width
}

func (m Model) viewLoading() string {
	return m.styles.normal.Render(m.spinner.View() + " Loading configuration…")
}

func (m Model) viewStuck() string {
	lines := []string{
		m.styles.header.Render("Cannot reach the HARM daemon"),
		"",
		m.styles.error.Render(m.truncate(errorSummary(m.view.LoadErr), 4)),
		"",
		m.styles.faint.Render("Is harmd running? Check the socket path in your config."),
	}
	return m.styles.panel.Render(strings.Join(lines, "\n"))
}

func (m Model) viewSetup() string {
	lines := []string{
		m.styles.header.Render("Welcome to HARM"),
		"",
		m.styles.normal.Render("Enter the path to your Arma Reforger server binary:"),
		m.pathInput.View(),
	}
	switch {
	case m.saving || m.view.Updating:
		lines = append(lines, "", m.styles.stale.Render(m.spinner.View()+" Saving…"))
	case m.saveErr != nil:
		lines = append(lines, "", m.styles.error.Render(m.truncate(errorSummary(m.saveErr), 4)))
	}
	return m.styles.panel.Render(strings.Join(lines, "\n"))
}

func (m Model) viewShell() string {
	width := m.contentWidth()
	var builder strings.Builder

	header := fmt.Sprintf("HARM servers  %s", m.styles.faint.Render(fmt.Sprintf("api 127.0.0.1:%d", m.view.Config.APIPort)))
	builder.WriteString(m.styles.header.Render(header))
	builder.WriteString("  ")
	builder.WriteString(m.viewCacheStatus())
	builder.WriteString("\n")

	if m.view.APIErr != nil {
		builder.WriteString(m.styles.error.Render(m.truncate("API start failed: "+errorSummary(m.view.APIErr), 0)))
		builder.WriteString("\n")
	}

	if m.filtering || m.filterInput.Value() != "" {
		builder.WriteString(m.filterInput.View())
		builder.WriteString("\n")
	}
	if m.editingPort {
		builder.WriteString(m.portInput.View())
		if m.portErr != nil {
			builder.WriteString("  ")
			builder.WriteString(m.styles.error.Render(errorSummary(m.portErr)))
		}
		builder.WriteString("\n")
	}
	builder.WriteString("\n")

	rows := m.visibleServers()
	switch {
	case m.view.ServersStatus == servercache.Pending && len(rows) == 0:
		builder.WriteString(m.styles.faint.Render(m.spinner.View() + " Fetching servers…"))
	case len(m.view.Servers.Data) == 0:
		builder.WriteString(m.styles.faint.Render("No servers registered."))
	case len(rows) == 0:
		builder.WriteString(m.styles.faint.Render("No servers match the filter."))
	}
	for index, row := range rows {
		line := m.renderRow(row, width)
		if index == m.cursor {
			line = m.styles.selected.Render(line)
		}
		builder.WriteString(line)
		builder.WriteString("\n")
	}
	if m.view.Servers.NextPage != "" {
		builder.WriteString(m.styles.faint.Render("… more servers not shown"))
		builder.WriteString("\n")
	}
	return builder.String()
}

func (m Model) viewCacheStatus() string {
	switch m.view.ServersStatus {
	case servercache.Fresh:
		return m.styles.fresh.Render("● fresh")
	case servercache.Stale:
		if m.view.ServersErr != nil {
			return m.styles.error.Render("● stale: refresh failed")
		}
		return m.styles.stale.Render("● refreshing")
	default:
		if m.view.ServersErr != nil {
			return m.styles.error.Render("● unavailable")
		}
		return m.styles.faint.Render("● pending")
	}
}

// renderRow renders "name  id" with matched name runes highlighted,
// truncated to width.
func (m Model) renderRow(row serverRow, width int) string {
	matched := make(map[int]bool, len(row.positions))
	for _, position := range row.positions {
		matched[position] = true
	}
	var name strings.Builder
	for index, r := range []rune(row.server.Name) {
		if matched[index] {
			name.WriteString(m.styles.match.Render(string(r)))
		} else {
			name.WriteRune(r)
		}
	}
	line := fmt.Sprintf("  %s  %s", name.String(), m.styles.faint.Render(row.server.ID))
	return ansi.Truncate(line, width, "…")
}

func (m Model) viewStatusBar() string {
	if m.statusText != "" {
		style := m.styles.stale
		if m.statusLevel >= slog.LevelError {
			style = m.styles.error
		}
		return style.Render(m.truncate(m.statusText, 0))
	}
	return m.styles.help.Render(m.truncate(m.helpLine(), 0))
}

func (m Model) helpLine() string {
	var bindings []key.Binding
	switch m.Screen() {
	case ScreenLoading:
		bindings = []key.Binding{m.keys.Quit}
	case ScreenStuck:
		bindings = []key.Binding{m.keys.Retry, m.keys.Quit}
	case ScreenSetup:
		bindings = []key.Binding{m.keys.Submit, m.keys.ForceQuit}
	case ScreenShell:
		switch {
		case m.editingPort:
			bindings = []key.Binding{m.keys.Submit, m.keys.Cancel}
		case m.filtering:
			bindings = []key.Binding{m.keys.FilterClear}
		default:
			bindings = []key.Binding{m.keys.Up, m.keys.Down, m.keys.FilterActivate, m.keys.Refresh, m.keys.EditPort, m.keys.Quit}
		}
	}
	parts := make([]string, 0, len(bindings))
	for _, binding := range bindings {
		help := binding.Help()
		parts = append(parts, help.Key+" "+help.Desc)
	}
	return strings.Join(parts, " · ")
}

// truncate shortens text to the content width less margin.
func (m Model) truncate(text string, margin int) string {
	return ansi.Truncate(text, max(m.contentWidth()-margin, 1), "…")
}
