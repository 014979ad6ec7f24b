// Package board renders tasks as a Kanban board with one column per
// normalized status.
package board

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/taskboard/dashboard/internal/orchestrator"
	"github.com/taskboard/dashboard/internal/tui/theme"
)

// Fixed columns, left to right. Tasks in any other status land in a
// trailing "other" column that only appears when it has cards.
var fixed = []struct{ status, title string }{
	{orchestrator.StatusPending, "PENDING"},
	{orchestrator.StatusInProgress, "IN PROGRESS"},
	{orchestrator.StatusBlocked, "BLOCKED"},
	{orchestrator.StatusCompleted, "COMPLETED"},
}

const otherStatus = "other"

type Column struct {
	Status string
	Title  string
	Tasks  []orchestrator.Task
}

// Model is the board state. Col and Row address the selected card.
type Model struct {
	Columns []Column
	Col     int
	Row     int
	Width   int
	Height  int
}

func New() Model {
	m := Model{}
	m.SetTasks(nil)
	return m
}

// SetTasks regroups tasks, keeping the current selection when the
// selected task is still present.
func (m *Model) SetTasks(tasks []orchestrator.Task) {
	var keep orchestrator.ID
	if t := m.Selected(); t != nil {
		keep = t.ID
	}

	cols := make([]Column, 0, len(fixed)+1)
	index := make(map[string]int, len(fixed))
	for i, f := range fixed {
		cols = append(cols, Column{Status: f.status, Title: f.title})
		index[f.status] = i
	}
	var other []orchestrator.Task
	for _, t := range tasks {
		if i, ok := index[orchestrator.NormalizeStatus(t.Status)]; ok {
			cols[i].Tasks = append(cols[i].Tasks, t)
		} else {
			other = append(other, t)
		}
	}
	if len(other) > 0 {
		cols = append(cols, Column{Status: otherStatus, Title: "OTHER", Tasks: other})
	}
	m.Columns = cols

	if keep != "" {
		for c, col := range cols {
			for r, t := range col.Tasks {
				if t.ID == keep {
					m.Col, m.Row = c, r
					return
				}
			}
		}
	}
	m.clamp()
}

// Move shifts the selection by dc columns and dr rows, clamped to the
// board.
func (m *Model) Move(dc, dr int) {
	if dc != 0 {
		m.Col += dc
		m.Row = 0
	}
	m.Row += dr
	m.clamp()
}

func (m *Model) clamp() {
	m.Col = min(max(m.Col, 0), max(len(m.Columns)-1, 0))
	n := 0
	if m.Col < len(m.Columns) {
		n = len(m.Columns[m.Col].Tasks)
	}
	m.Row = min(max(m.Row, 0), max(n-1, 0))
}

// Selected returns the selected task, or nil when its column is empty.
func (m Model) Selected() *orchestrator.Task {
	if m.Col >= len(m.Columns) {
		return nil
	}
	tasks := m.Columns[m.Col].Tasks
	if m.Row >= len(tasks) {
		return nil
	}
	t := tasks[m.Row]
	return &t
}

// Counts returns the number of cards per column status.
func (m Model) Counts() map[string]int {
	out := make(map[string]int, len(m.Columns))
	for _, c := range m.Columns {
		out[c.Status] = len(c.Tasks)
	}
	return out
}

func (m Model) View() string {
	if len(m.Columns) == 0 {
		return ""
	}
	colW := max(m.Width/len(m.Columns)-2, 16)
	rows := max(m.Height-4, 3)

	views := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		views[i] = m.renderColumn(i, c, colW, rows)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, views...)
}

func (m Model) renderColumn(idx int, c Column, width, rows int) string {
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.StatusColor(c.Status)).
		Render(fmt.Sprintf("%s (%d)", c.Title, len(c.Tasks)))

	// Scroll so the selected card stays visible.
	start := 0
	if idx == m.Col && m.Row >= rows {
		start = m.Row - rows + 1
	}
	end := min(start+rows, len(c.Tasks))

	lines := []string{header}
	for r := start; r < end; r++ {
		lines = append(lines, m.card(c.Tasks[r], width-2, idx == m.Col && r == m.Row))
	}
	if len(c.Tasks) == 0 {
		lines = append(lines, theme.StyleDimmed.Render("empty"))
	}
	if hidden := len(c.Tasks) - end; hidden > 0 {
		lines = append(lines, theme.StyleDimmed.Render(fmt.Sprintf("+%d more", hidden)))
	}

	border := theme.ColorBorder
	if idx == m.Col {
		border = theme.StatusColor(c.Status)
	}
	return theme.StyleBorder.
		BorderForeground(border).
		Width(width).
		Render(strings.Join(lines, "\n"))
}

func (m Model) card(t orchestrator.Task, width int, selected bool) string {
	glyph := lipgloss.NewStyle().Foreground(theme.StatusColor(t.Status)).Render(theme.StatusGlyph(t.Status))
	title := truncate(t.Title, max(width-6, 4))
	if selected {
		title = theme.StyleSelected.Render(title)
	}
	return glyph + " " + theme.PriorityBadge(t.Priority) + " " + title
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
