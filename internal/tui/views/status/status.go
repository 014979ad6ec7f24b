// Package status renders the top bar: connection state, viewer count,
// task totals and a short spring-driven flash when the database changes.
package status

import (
	"fmt"
	"math"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/taskboard/dashboard/internal/orchestrator"
	"github.com/taskboard/dashboard/internal/tui/theme"
)

const fps = 30

// FlashTickMsg advances the flash animation by one frame.
type FlashTickMsg struct{}

// Model holds the status bar state.
type Model struct {
	Connected  bool
	Viewers    int
	Stats      *orchestrator.Stats
	LastUpdate time.Time
	Updates    int
	Width      int

	spring   harmonica.Spring
	flash    float64
	velocity float64
}

func New() Model {
	return Model{spring: harmonica.NewSpring(harmonica.FPS(fps), 6.0, 1.0)}
}

// Flash starts the update highlight and records the change.
func (m *Model) Flash(at time.Time) {
	m.flash = 1
	m.velocity = 0
	m.LastUpdate = at
	m.Updates++
}

// Flashing reports whether the highlight is still visible.
func (m Model) Flashing() bool { return m.flash > 0 }

// Step moves the flash one frame toward rest. It returns false once the
// animation has settled.
func (m *Model) Step() bool {
	if m.flash == 0 {
		return false
	}
	m.flash, m.velocity = m.spring.Update(m.flash, m.velocity, 0)
	if math.Abs(m.flash) < 0.01 && math.Abs(m.velocity) < 0.01 {
		m.flash, m.velocity = 0, 0
		return false
	}
	return true
}

// Tick schedules the next animation frame.
func Tick() tea.Cmd {
	return tea.Tick(time.Second/fps, func(time.Time) tea.Msg { return FlashTickMsg{} })
}

func (m Model) View() string {
	width := max(m.Width, 40)

	var conn string
	if m.Connected {
		conn = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Live")
	} else {
		conn = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Connecting...")
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := conn + sep + fmt.Sprintf("%d viewing", m.Viewers)

	if s := m.Stats; s != nil {
		content += sep + fmt.Sprintf("%d projects  %d tasks  %d done  %.1f%%",
			s.Projects, s.Tasks.Total, s.Tasks.Completed, s.Tasks.CompletionRate)
	}

	if !m.LastUpdate.IsZero() {
		upd := fmt.Sprintf("updated %s", m.LastUpdate.Format("15:04:05"))
		style := theme.StyleDimmed
		switch {
		case m.flash > 0.5:
			style = lipgloss.NewStyle().Bold(true).Foreground(theme.ColorAccent)
		case m.flash > 0.1:
			style = lipgloss.NewStyle().Foreground(theme.ColorAccent)
		}
		content += sep + style.Render(upd)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
