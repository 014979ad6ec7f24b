// Package detail renders the task overlay: metadata, the summary as
// terminal markdown, and the task's dependencies, in a scrollable viewport.
package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"

	"github.com/taskboard/dashboard/internal/orchestrator"
	"github.com/taskboard/dashboard/internal/tui/theme"
)

// Model holds the overlay state for one task.
type Model struct {
	Task *orchestrator.Task
	Deps []orchestrator.Dependency
	Err  string

	width int
	vp    viewport.Model
}

// New builds the overlay for task sized to fit width x height.
func New(task orchestrator.Task, width, height int) Model {
	innerW := max(width-8, 30)
	m := Model{
		Task:  &task,
		width: innerW,
		vp:    viewport.New(innerW, max(height-8, 5)),
	}
	m.render()
	return m
}

// SetDependencies attaches the task's edges and re-renders.
func (m *Model) SetDependencies(deps []orchestrator.Dependency, err error) {
	m.Deps = deps
	m.Err = ""
	if err != nil {
		m.Err = err.Error()
	}
	m.render()
}

// Markdown is the document shown in the viewport.
func (m Model) Markdown() string {
	if m.Task == nil {
		return ""
	}
	t := m.Task
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", t.Title)

	fields := []string{"**Status:** " + orDash(t.Status), "**Priority:** " + orDash(t.Priority)}
	if t.Complexity != nil {
		fields = append(fields, fmt.Sprintf("**Complexity:** %d", *t.Complexity))
	}
	b.WriteString(strings.Join(fields, " · ") + "\n\n")
	if t.ProjectName != "" || t.FeatureName != "" {
		fmt.Fprintf(&b, "**Project:** %s · **Feature:** %s\n\n", orDash(t.ProjectName), orDash(t.FeatureName))
	}
	fmt.Fprintf(&b, "`%s`\n\n", t.ID)

	if s := strings.TrimSpace(t.Summary); s != "" {
		b.WriteString(s + "\n\n")
	} else {
		b.WriteString("_No summary._\n\n")
	}

	b.WriteString("## Dependencies\n\n")
	switch {
	case m.Err != "":
		fmt.Fprintf(&b, "_Could not load: %s_\n", m.Err)
	case len(m.Deps) == 0:
		b.WriteString("_None._\n")
	default:
		for _, d := range m.Deps {
			fmt.Fprintf(&b, "- %s → %s (%s)\n", label(d.FromTaskTitle, d.FromTaskID), label(d.ToTaskTitle, d.ToTaskID), strings.ToLower(d.Type))
		}
	}
	return b.String()
}

func (m *Model) render() {
	md := m.Markdown()
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(styles.DarkStyle),
		glamour.WithWordWrap(m.width-2),
	)
	if err == nil {
		if out, rerr := r.Render(md); rerr == nil {
			md = out
		}
	}
	m.vp.SetContent(md)
}

// Update scrolls the viewport.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.Task == nil {
		return ""
	}
	title := theme.StyleHeader.Render(" TASK ") + " " +
		lipgloss.NewStyle().Foreground(theme.StatusColor(m.Task.Status)).Render(theme.StatusGlyph(m.Task.Status)+" "+m.Task.Status)
	help := theme.StyleDimmed.Render(fmt.Sprintf("j/k:scroll  esc:close  %3.0f%%", m.vp.ScrollPercent()*100))
	return theme.Panel(m.width).Render(lipgloss.JoinVertical(lipgloss.Left, title, m.vp.View(), help))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func label(title string, id orchestrator.ID) string {
	if title != "" {
		return title
	}
	return string(id)
}
