// Package app is the root Bubble Tea model for the terminal board.
package app

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/taskboard/dashboard/internal/orchestrator"
	"github.com/taskboard/dashboard/internal/tui/client"
	"github.com/taskboard/dashboard/internal/tui/theme"
	"github.com/taskboard/dashboard/internal/tui/views/board"
	"github.com/taskboard/dashboard/internal/tui/views/debug"
	"github.com/taskboard/dashboard/internal/tui/views/detail"
	"github.com/taskboard/dashboard/internal/tui/views/status"
)

type overlay int

const (
	overlayNone overlay = iota
	overlayDetail
	overlayDebug
)

// Options narrows what the board shows.
type Options struct {
	ProjectID string
	FeatureID string
}

// dataMsg carries one refetch. seq drops responses overtaken by a newer
// fetch.
type dataMsg struct {
	seq   int
	tasks []orchestrator.Task
	stats *orchestrator.Stats
	err   error
}

type depsMsg struct {
	id   orchestrator.ID
	deps []orchestrator.Dependency
	err  error
}

// Model is the root model.
type Model struct {
	ws   *client.WSClient
	http *client.HTTPClient
	ctx  context.Context
	opts Options
	keys KeyMap
	help help.Model

	width  int
	height int

	overlay overlay
	board   board.Model
	status  status.Model
	detail  detail.Model
	debug   debug.Model

	connected bool
	fetchSeq  int
	lastErr   string
}

// New creates the root model. ws or http may be nil, which disables that
// side of the client.
func New(ctx context.Context, ws *client.WSClient, http *client.HTTPClient, opts Options) Model {
	if ctx == nil {
		ctx = context.Background()
	}
	return Model{
		ws:     ws,
		http:   http,
		ctx:    ctx,
		opts:   opts,
		keys:   DefaultKeyMap(),
		help:   help.New(),
		board:  board.New(),
		status: status.New(),
		debug:  debug.New(),
	}
}

func (m Model) Init() tea.Cmd {
	var cmds []tea.Cmd
	if m.ws != nil {
		cmds = append(cmds, m.ws.Listen(m.ctx))
	}
	if m.http != nil {
		cmds = append(cmds, m.fetchCmd(m.fetchSeq))
	}
	return tea.Batch(cmds...)
}

// fetch re-issues the REST queries behind the board.
func (m *Model) fetch() tea.Cmd {
	if m.http == nil {
		return nil
	}
	m.fetchSeq++
	return m.fetchCmd(m.fetchSeq)
}

func (m Model) fetchCmd(seq int) tea.Cmd {
	ctx, hc, opts := m.ctx, m.http, m.opts
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		tasks, err := hc.Tasks(ctx, orchestrator.TaskFilter{ProjectID: opts.ProjectID, FeatureID: opts.FeatureID})
		if err != nil {
			return dataMsg{seq: seq, err: err}
		}
		stats, err := hc.Stats(ctx)
		if err != nil {
			return dataMsg{seq: seq, err: err}
		}
		return dataMsg{seq: seq, tasks: tasks, stats: stats}
	}
}

func (m Model) fetchDeps(id orchestrator.ID) tea.Cmd {
	if m.http == nil {
		return nil
	}
	ctx, hc := m.ctx, m.http
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		deps, err := hc.TaskDependencies(ctx, string(id))
		return depsMsg{id: id, deps: deps, err: err}
	}
}

func (m Model) readNext() tea.Cmd {
	if m.ws == nil {
		return nil
	}
	return m.ws.ReadLoop(m.ctx)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.status.Width = msg.Width - 4
		m.board.Width = msg.Width
		m.board.Height = msg.Height - 6
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case client.WSConnectedMsg:
		m.connected = true
		m.status.Connected = true
		m.debug.Add(debug.KindWS, "connected")
		// Changes may have been missed while disconnected.
		return m, tea.Batch(m.readNext(), m.fetch())

	case client.WSDisconnectedMsg:
		m.connected = false
		m.status.Connected = false
		if msg.Err != nil {
			m.debug.Add(debug.KindErr, "disconnected: %v", msg.Err)
		} else {
			m.debug.Add(debug.KindWS, "disconnected")
		}
		if m.ws == nil {
			return m, nil
		}
		return m, m.ws.Listen(m.ctx)

	case client.DatabaseUpdateMsg:
		wasFlashing := m.status.Flashing()
		at := msg.Update.ModifiedAt
		if at.IsZero() {
			at = time.Now()
		}
		m.status.Flash(at)
		m.debug.Add(debug.KindDB, "database_update seq=%d replaced=%t", msg.Seq, msg.Update.Replaced)
		cmds := []tea.Cmd{m.readNext(), m.fetch()}
		if !wasFlashing {
			cmds = append(cmds, status.Tick())
		}
		return m, tea.Batch(cmds...)

	case client.ConnectionCountMsg:
		m.status.Viewers = msg.Count
		return m, m.readNext()

	case client.WSErrorMsg:
		m.debug.Add(debug.KindErr, "server: %s", msg.Message)
		return m, m.readNext()

	case client.WSEventMsg:
		m.debug.Add(debug.KindWS, "%s seq=%d", msg.Event.Kind(), msg.Event.Seq)
		return m, m.readNext()

	case status.FlashTickMsg:
		if m.status.Step() {
			return m, status.Tick()
		}
		return m, nil

	case dataMsg:
		if msg.seq != m.fetchSeq {
			return m, nil
		}
		if msg.err != nil {
			m.lastErr = msg.err.Error()
			m.debug.Add(debug.KindErr, "fetch: %v", msg.err)
			return m, nil
		}
		m.lastErr = ""
		m.board.SetTasks(msg.tasks)
		m.status.Stats = msg.stats
		m.debug.Add(debug.KindHTTP, "loaded %d tasks", len(msg.tasks))
		if m.overlay == overlayDetail && m.detail.Task != nil {
			for _, t := range msg.tasks {
				if t.ID == m.detail.Task.ID {
					deps := m.detail.Deps
					m.detail = detail.New(t, m.width, m.height)
					m.detail.SetDependencies(deps, nil)
					return m, m.fetchDeps(t.ID)
				}
			}
		}
		return m, nil

	case depsMsg:
		if m.overlay == overlayDetail && m.detail.Task != nil && m.detail.Task.ID == msg.id {
			m.detail.SetDependencies(msg.deps, msg.err)
		}
		return m, nil
	}

	if m.overlay == overlayDetail {
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		if m.ws != nil {
			m.ws.Close()
		}
		return m, tea.Quit
	}

	switch m.overlay {
	case overlayDetail:
		if key.Matches(msg, m.keys.Escape) {
			m.overlay = overlayNone
			return m, nil
		}
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd

	case overlayDebug:
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Debug):
			m.overlay = overlayNone
		case key.Matches(msg, m.keys.Up):
			m.debug.ScrollUp(1)
		case key.Matches(msg, m.keys.Down):
			m.debug.ScrollDown(1)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		m.board.Move(0, -1)
	case key.Matches(msg, m.keys.Down):
		m.board.Move(0, 1)
	case key.Matches(msg, m.keys.Left):
		m.board.Move(-1, 0)
	case key.Matches(msg, m.keys.Right):
		m.board.Move(1, 0)
	case key.Matches(msg, m.keys.Enter):
		t := m.board.Selected()
		if t == nil {
			return m, nil
		}
		m.detail = detail.New(*t, m.width, m.height)
		m.overlay = overlayDetail
		return m, m.fetchDeps(t.ID)
	case key.Matches(msg, m.keys.Debug):
		m.overlay = overlayDebug
	case key.Matches(msg, m.keys.Refresh):
		m.debug.Add(debug.KindHTTP, "manual refresh")
		return m, m.fetch()
	}
	return m, nil
}

func (m Model) View() string {
	width, height := m.width, m.height
	if width == 0 {
		width, height = 80, 24
	}

	var body string
	switch m.overlay {
	case overlayDetail:
		body = m.detail.View()
	case overlayDebug:
		body = m.debug.View(width, height-4)
	default:
		body = m.board.View()
	}

	parts := []string{m.status.View()}
	if !m.connected {
		parts = append(parts, lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorDanger).
			Render("DISCONNECTED · Reconnecting to server..."))
	}
	if m.lastErr != "" {
		parts = append(parts, lipgloss.NewStyle().Foreground(theme.ColorWarning).Render("! "+m.lastErr))
	}
	parts = append(parts, body, m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
