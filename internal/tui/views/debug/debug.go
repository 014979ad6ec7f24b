// Package debug renders the scrollable event log overlay: WebSocket
// traffic, refetches and errors, newest at the bottom.
package debug

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/taskboard/dashboard/internal/tui/theme"
)

const maxEntries = 200

// Log kinds.
const (
	KindWS   = "ws"
	KindDB   = "db"
	KindHTTP = "http"
	KindErr  = "err"
)

type Entry struct {
	Time    time.Time
	Kind    string
	Message string
}

// Model is the event log. Offset counts lines scrolled up from the tail.
type Model struct {
	Entries []Entry
	Offset  int
	errors  int
}

func New() Model {
	return Model{}
}

// Add appends an entry, drops the oldest past maxEntries and snaps the
// view back to the tail.
func (m *Model) Add(kind, format string, args ...any) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	m.Entries = append(m.Entries, Entry{Time: time.Now(), Kind: kind, Message: msg})
	if over := len(m.Entries) - maxEntries; over > 0 {
		m.Entries = append(m.Entries[:0:0], m.Entries[over:]...)
	}
	if kind == KindErr {
		m.errors++
	}
	m.Offset = 0
}

// Errors is the number of error entries ever added.
func (m Model) Errors() int { return m.errors }

func (m *Model) ScrollUp(n int) {
	m.Offset = min(m.Offset+n, max(len(m.Entries)-1, 0))
}

func (m *Model) ScrollDown(n int) {
	m.Offset = max(m.Offset-n, 0)
}

// View renders the log inside a panel of the given outer size.
func (m Model) View(width, height int) string {
	innerW := max(width-4, 20)
	rows := max(height-6, 3)

	title := theme.StyleHeader.Render(" EVENT LOG ")
	help := theme.StyleDimmed.Render(fmt.Sprintf("j/k:scroll  esc:close  %d entries  %d errors", len(m.Entries), m.errors))

	if len(m.Entries) == 0 {
		body := theme.StyleDimmed.Render("  Nothing logged yet.")
		return theme.Panel(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help))
	}

	end := max(len(m.Entries)-m.Offset, 0)
	start := max(end-rows, 0)

	msgW := innerW - 20
	lines := make([]string, 0, end-start)
	for _, e := range m.Entries[start:end] {
		ts := theme.StyleDimmed.Render(e.Time.Format("15:04:05.000"))
		kind := lipgloss.NewStyle().Foreground(kindColor(e.Kind)).Width(5).Render(e.Kind)
		msg := e.Message
		if msgW > 3 && len(msg) > msgW {
			msg = msg[:msgW-3] + "..."
		}
		lines = append(lines, ts+" "+kind+" "+msg)
	}

	more := ""
	if m.Offset > 0 {
		more = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d newer", m.Offset))
	}
	return theme.Panel(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n"), more, help))
}

func kindColor(kind string) lipgloss.Color {
	switch kind {
	case KindWS:
		return theme.ColorInProgress
	case KindDB:
		return theme.ColorAccent
	case KindHTTP:
		return theme.ColorWarning
	case KindErr:
		return theme.ColorDanger
	default:
		return theme.ColorDimmed
	}
}
