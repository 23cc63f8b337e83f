// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package consoleui

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/junegunn/fzf/src/util"

	"github.com/harm-foundation/harm/lib/console"
	"github.com/harm-foundation/harm/lib/readiness"
	"github.com/harm-foundation/harm/lib/schema"
)

// Session is the part of console.Session the model drives.
type Session interface {
	View() console.View
	Changes() <-chan struct{}
	Reload(ctx context.Context) error
	SaveReforgerPath(ctx context.Context, path string) error
	SetAPIPort(ctx context.Context, port int) error
	RefreshServers(ctx context.Context) error
}

// Screen is the top-level view the model renders.
type Screen int

const (
	ScreenLoading Screen = iota
	ScreenStuck
	ScreenSetup
	ScreenShell
)

func (s Screen) String() string {
	switch s {
	case ScreenLoading:
		return "loading"
	case ScreenStuck:
		return "stuck"
	case ScreenSetup:
		return "setup"
	case ScreenShell:
		return "shell"
	default:
		return fmt.Sprintf("Screen(%d)", int(s))
	}
}

// screenFor picks the screen for a session view.
func screenFor(view console.View) Screen {
	switch {
	case view.Stuck():
		return ScreenStuck
	case view.State == readiness.NeedsSetup:
		return ScreenSetup
	case view.State == readiness.Ready:
		return ScreenShell
	default:
		return ScreenLoading
	}
}

// Messages produced by the model's commands.
type (
	sessionChangedMsg struct{}
	reloadResultMsg   struct{ err error }
	saveResultMsg     struct{ err error }
	portResultMsg     struct{ err error }
	refreshResultMsg  struct{ err error }
)

// Options configures a Model.
type Options struct {
	Keys  KeyMap
	Theme Theme
	// Renderer defaults to lipgloss.DefaultRenderer().
	Renderer *lipgloss.Renderer
}

// Model is the bubbletea model of the console.
type Model struct {
	session Session
	keys    KeyMap
	styles  styles

	ctx  context.Context
	view console.View

	width  int
	height int

	spinner   spinner.Model
	pathInput textinput.Model

	// saving is true from a setup submission until its result
	// arrives.
	saving  bool
	saveErr error

	editingPort bool
	portInput   textinput.Model
	portErr     error

	filtering   bool
	filterInput textinput.Model
	slab        *util.Slab
	cursor      int

	refreshing bool

	statusText     string
	statusLevel    slog.Level
	statusSequence int
}

// NewModel returns a model over session. ctx bounds the commands the
// model issues.
func NewModel(ctx context.Context, session Session, options Options) Model {
	if options.Keys.Quit.Keys() == nil {
		options.Keys = DefaultKeyMap
	}
	if options.Theme == (Theme{}) {
		options.Theme = DefaultTheme
	}
	if options.Renderer == nil {
		options.Renderer = lipgloss.DefaultRenderer()
	}

	pathInput := textinput.New()
	pathInput.Placeholder = "/path/to/ArmaReforgerServer"
	pathInput.Prompt = "> "
	pathInput.CharLimit = 4096
	pathInput.Focus()

	portInput := textinput.New()
	portInput.Prompt = "port: "
	portInput.CharLimit = 5

	filterInput := textinput.New()
	filterInput.Prompt = "/"

	return Model{
		session:     session,
		keys:        options.Keys,
		styles:      options.Theme.styles(options.Renderer),
		ctx:         ctx,
		view:        session.View(),
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot)),
		pathInput:   pathInput,
		portInput:   portInput,
		filterInput: filterInput,
		slab:        util.MakeSlab(100*1024, 2048),
	}
}

// Screen returns the screen the model currently renders.
func (m Model) Screen() Screen {
	return screenFor(m.view)
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink, waitForChange(m.session.Changes()))
}

func waitForChange(changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return sessionChangedMsg{}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.pathInput.Width = max(msg.Width-6, 10)
		return m, nil

	case sessionChangedMsg:
		m.view = m.session.View()
		m.clampCursor()
		return m, waitForChange(m.session.Changes())

	case reloadResultMsg:
		m.view = m.session.View()
		return m, nil

	case saveResultMsg:
		m.saving = false
		m.saveErr = msg.err
		m.view = m.session.View()
		return m, nil

	case portResultMsg:
		m.view = m.session.View()
		if msg.err != nil {
			m.portErr = msg.err
			return m, nil
		}
		m.editingPort = false
		m.portErr = nil
		m.portInput.Blur()
		return m, nil

	case refreshResultMsg:
		m.refreshing = false
		m.view = m.session.View()
		m.clampCursor()
		return m, nil

	case logRecordMsg:
		m.statusSequence++
		m.statusText = msg.Summary
		m.statusLevel = msg.Level
		sequence := m.statusSequence
		return m, tea.Tick(logRecordFadeDelay, func(time.Time) tea.Msg {
			return logRecordFadeMsg{Sequence: sequence}
		})

	case logRecordFadeMsg:
		if msg.Sequence == m.statusSequence {
			m.statusText = ""
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.ForceQuit) {
			return m, tea.Quit
		}
		switch m.Screen() {
		case ScreenLoading:
			if key.Matches(msg, m.keys.Quit) {
				return m, tea.Quit
			}
			return m, nil
		case ScreenStuck:
			return m.updateStuck(msg)
		case ScreenSetup:
			return m.updateSetup(msg)
		case ScreenShell:
			return m.updateShell(msg)
		}
	}

	return m.updateInputs(msg)
}

// updateInputs forwards non-key messages such as cursor blinks to the
// focused text input.
func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case m.Screen() == ScreenSetup:
		m.pathInput, cmd = m.pathInput.Update(msg)
	case m.editingPort:
		m.portInput, cmd = m.portInput.Update(msg)
	case m.filtering:
		m.filterInput, cmd = m.filterInput.Update(msg)
	}
	return m, cmd
}

func (m Model) updateStuck(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Retry):
		session, ctx := m.session, m.ctx
		return m, func() tea.Msg {
			return reloadResultMsg{err: session.Reload(ctx)}
		}
	}
	return m, nil
}

func (m Model) updateSetup(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Submit) {
		if m.saving || m.view.Updating {
			return m, nil
		}
		m.saving = true
		m.saveErr = nil
		session, ctx, path := m.session, m.ctx, m.pathInput.Value()
		return m, func() tea.Msg {
			return saveResultMsg{err: session.SaveReforgerPath(ctx, path)}
		}
	}
	var cmd tea.Cmd
	m.pathInput, cmd = m.pathInput.Update(msg)
	return m, cmd
}

func (m Model) updateShell(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.editingPort {
		return m.updatePortEditor(msg)
	}
	if m.filtering {
		return m.updateFilter(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.visibleServers())-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.FilterActivate):
		m.filtering = true
		return m, m.filterInput.Focus()
	case key.Matches(msg, m.keys.FilterClear):
		m.filterInput.SetValue("")
		m.clampCursor()
	case key.Matches(msg, m.keys.Refresh):
		if m.refreshing {
			return m, nil
		}
		m.refreshing = true
		session, ctx := m.session, m.ctx
		return m, func() tea.Msg {
			return refreshResultMsg{err: session.RefreshServers(ctx)}
		}
	case key.Matches(msg, m.keys.EditPort):
		m.editingPort = true
		m.portErr = nil
		m.portInput.SetValue(strconv.Itoa(m.view.Config.APIPort))
		m.portInput.CursorEnd()
		return m, m.portInput.Focus()
	}
	return m, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.FilterClear):
		m.filtering = false
		m.filterInput.SetValue("")
		m.filterInput.Blur()
		m.clampCursor()
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		m.filtering = false
		m.filterInput.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	m.cursor = 0
	return m, cmd
}

func (m Model) updatePortEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.editingPort = false
		m.portErr = nil
		m.portInput.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		port, err := strconv.Atoi(strings.TrimSpace(m.portInput.Value()))
		if err != nil {
			m.portErr = fmt.Errorf("not a port number: %q", m.portInput.Value())
			return m, nil
		}
		session, ctx := m.session, m.ctx
		return m, func() tea.Msg {
			return portResultMsg{err: session.SetAPIPort(ctx, port)}
		}
	}
	var cmd tea.Cmd
	m.portInput, cmd = m.portInput.Update(msg)
	return m, cmd
}

// visibleServers returns the servers passing the filter, in the order
// the daemon returned them, with their match positions in Name.
func (m Model) visibleServers() []serverRow {
	pattern := []rune(strings.TrimSpace(m.filterInput.Value()))
	var rows []serverRow
	for _, server := range m.view.Servers.Data {
		if len(pattern) == 0 {
			rows = append(rows, serverRow{server: server})
			continue
		}
		match := fuzzyMatch(server.Name, pattern, m.slab)
		if match.Score == 0 {
			continue
		}
		rows = append(rows, serverRow{server: server, positions: match.Positions})
	}
	return rows
}

type serverRow struct {
	server    schema.ServerSummary
	positions []int
}

func (m *Model) clampCursor() {
	count := len(m.visibleServers())
	if m.cursor >= count {
		m.cursor = max(count-1, 0)
	}
}
