package render

import "github.com/charmbracelet/lipgloss"

var (
	styleOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleChanged = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	styleMuted   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleHeading = lipgloss.NewStyle().Bold(true)
)

// StatusStyle returns the style for a file or project status word
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "up-to-date", "ok", "clean":
		return styleOK
	case "updated", "created", "pending", "removed":
		return styleChanged
	case "conflict", "orphaned", "warning", "changed":
		return styleWarn
	case "error", "missing", "failed":
		return styleError
	case "skipped", "unseen":
		return styleMuted
	}
	return lipgloss.NewStyle()
}

// Heading styles a section title when color is on
func Heading(s string, color bool) string {
	if !color {
		return s
	}
	return styleHeading.Render(s)
}

// Status styles a status word when color is on
func Status(s string, color bool) string {
	if !color {
		return s
	}
	return StatusStyle(s).Render(s)
}
