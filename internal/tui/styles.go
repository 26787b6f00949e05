package tui

import "github.com/charmbracelet/lipgloss"

// Styles
var (
	baseDimFg = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#6B7280"}
	accentFg  = lipgloss.Color("#7C3AED")
	errorFg   = lipgloss.Color("#EF4444")

	titleStyle = lipgloss.NewStyle().Foreground(accentFg).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(baseDimFg)
	errorStyle = lipgloss.NewStyle().Foreground(errorFg).Bold(true)
	modeStyle  = lipgloss.NewStyle().Foreground(accentFg)
)

// Point colors on the braille canvas.
const (
	unselectedHex = "#4B5563"
	nanHex        = "#8C8C8C"
	overlayHex    = "#F59E0B"
)
