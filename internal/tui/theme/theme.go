// Package theme holds the Lip Gloss palette and shared styles for the
// terminal board. It imports nothing internal except the status vocabulary.
package theme

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/taskboard/dashboard/internal/orchestrator"
)

// Status colors.
var (
	ColorPending    = lipgloss.Color("#9ca3af")
	ColorInProgress = lipgloss.Color("#2563eb")
	ColorBlocked    = lipgloss.Color("#dc2626")
	ColorCompleted  = lipgloss.Color("#16a34a")
	ColorCancelled  = lipgloss.Color("#374151")
	ColorDeferred   = lipgloss.Color("#854d0e")
)

// Priority colors.
var (
	ColorHigh   = lipgloss.Color("#f97316")
	ColorMedium = lipgloss.Color("#eab308")
	ColorLow    = lipgloss.Color("#6b7280")
)

// UI chrome.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorAccent  = lipgloss.Color("#a855f7")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// StatusColor returns the color for a normalized task status.
func StatusColor(status string) lipgloss.Color {
	switch orchestrator.NormalizeStatus(status) {
	case orchestrator.StatusPending:
		return ColorPending
	case orchestrator.StatusInProgress:
		return ColorInProgress
	case orchestrator.StatusBlocked:
		return ColorBlocked
	case orchestrator.StatusCompleted:
		return ColorCompleted
	case orchestrator.StatusCancelled:
		return ColorCancelled
	case orchestrator.StatusDeferred:
		return ColorDeferred
	default:
		return ColorDimmed
	}
}

// StatusGlyph returns a one-cell marker for a task status.
func StatusGlyph(status string) string {
	switch orchestrator.NormalizeStatus(status) {
	case orchestrator.StatusPending:
		return "○"
	case orchestrator.StatusInProgress:
		return "●"
	case orchestrator.StatusBlocked:
		return "✗"
	case orchestrator.StatusCompleted:
		return "✓"
	case orchestrator.StatusCancelled:
		return "–"
	default:
		return "·"
	}
}

// PriorityColor returns the color for a priority label.
func PriorityColor(priority string) lipgloss.Color {
	switch strings.ToUpper(priority) {
	case "HIGH", "CRITICAL":
		return ColorHigh
	case "MEDIUM":
		return ColorMedium
	default:
		return ColorLow
	}
}

// PriorityBadge renders a short colored priority tag, e.g. "[H]".
func PriorityBadge(priority string) string {
	p := strings.ToUpper(strings.TrimSpace(priority))
	if p == "" {
		return StyleDimmed.Render("[-]")
	}
	return lipgloss.NewStyle().Foreground(PriorityColor(p)).Render("[" + p[:1] + "]")
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright).
			Background(lipgloss.Color("#1f2937"))
)

// Panel is the double-bordered frame used by overlays.
func Panel(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(ColorBorder)
}
