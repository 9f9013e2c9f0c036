// Package theme provides the Lip Gloss color palette and reusable styles
// for the devbook TUI. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Connection status colors.
var (
	ColorConnected    = lipgloss.Color("#22c55e")
	ColorConnecting   = lipgloss.Color("#d97706")
	ColorDisconnected = lipgloss.Color("#dc2626")
)

// Output stream colors.
var (
	ColorStdout = lipgloss.Color("#e5e7eb")
	ColorStderr = lipgloss.Color("#f87171")
	ColorPrompt = lipgloss.Color("#06b6d4")
)

// Debug log kind colors.
var (
	ColorKindState  = lipgloss.Color("#2563eb")
	ColorKindConfig = lipgloss.Color("#7c3aed")
	ColorKindCmd    = lipgloss.Color("#06b6d4")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorAccent  = lipgloss.Color("#a855f7")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorDefault = lipgloss.Color("#9ca3af")
)

// StatusColor returns the color for a connection status name.
func StatusColor(status string) lipgloss.Color {
	switch status {
	case "connected":
		return ColorConnected
	case "connecting":
		return ColorConnecting
	case "disconnected":
		return ColorDisconnected
	default:
		return ColorDefault
	}
}

// StatusGlyph returns a Unicode glyph for a connection status name.
func StatusGlyph(status string) string {
	switch status {
	case "connected":
		return "●"
	case "connecting":
		return "◌"
	case "disconnected":
		return "○"
	default:
		return "·"
	}
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
			Foreground(ColorAccent)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorDanger)
)
