// Package ui provides the terminal styling and live progress display for
// the deep-research CLI. Everything here renders to stderr; stdout stays
// reserved for machine-readable JSON.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Semantic colors shared across the CLI.
var (
	Success     = lipgloss.Color("#8BC34A") // lime green
	Destructive = lipgloss.Color("#e53935") // red
	Warning     = lipgloss.Color("#FFC107") // yellow
	Info        = lipgloss.Color("#2196F3") // blue
	Muted       = lipgloss.Color("#7f8c99")
	Border      = lipgloss.Color("#2a3850")
)

var (
	successStyle = lipgloss.NewStyle().Foreground(Success).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(Destructive).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(Warning).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(Info)
	mutedStyle   = lipgloss.NewStyle().Foreground(Muted)
	boldStyle    = lipgloss.NewStyle().Bold(true)
	titleStyle   = lipgloss.NewStyle().Foreground(Info).Bold(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Border).
			Padding(0, 1)
)

// StatusStyle returns the style for a research status label.
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "completed":
		return successStyle
	case "failed", "cancelled":
		return errorStyle
	default:
		return warnStyle
	}
}

// Panel renders body in a rounded border under a styled title line.
func Panel(title, body string) string {
	content := titleStyle.Render(title)
	if body != "" {
		content += "\n" + body
	}
	return panelStyle.Render(content)
}

// SuccessLine styles a final good-news line.
func SuccessLine(s string) string { return successStyle.Render(s) }

// ErrorLine styles a final bad-news line.
func ErrorLine(s string) string { return errorStyle.Render(s) }

// WarnLine styles a caution line.
func WarnLine(s string) string { return warnStyle.Render(s) }

// Dim styles secondary detail.
func Dim(s string) string { return mutedStyle.Render(s) }

// Bold styles an emphasized fragment.
func Bold(s string) string { return boldStyle.Render(s) }

// Truncate shortens s to limit runes, appending "..." when it cuts.
func Truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}

// IsTerminal reports whether f is attached to a character device. The live
// progress display only makes sense on a real terminal.
func IsTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
