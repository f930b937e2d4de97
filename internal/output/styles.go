package output

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette. All ANSI 256 colors used by the CLI are named here.
var (
	// ColorCyan is used for identifiable nouns: recipe names, option paths, outputs.
	ColorCyan = lipgloss.Color("14")

	// colorGreen is used for the "built" status.
	colorGreen = lipgloss.Color("82")

	// ColorYellow is used for shadowed definitions in --explain output.
	ColorYellow = lipgloss.Color("220")

	// colorBoldRed is used for the "failed" status (matches ERROR level).
	colorBoldRed = lipgloss.Color("204")

	// colorGreenCheck is used for the completion checkmark.
	colorGreenCheck = lipgloss.Color("10")

	// ColorDimGray is used for borders and other structural chrome.
	ColorDimGray = lipgloss.Color("240")
)

// Semantic styles.
var (
	// StyleNoun styles identifiable nouns.
	StyleNoun = lipgloss.NewStyle().Foreground(ColorCyan)

	// StyleDim styles structural chrome (keys, separators).
	StyleDim = lipgloss.NewStyle().Faint(true)

	// StyleSummary styles completion and summary lines.
	StyleSummary = lipgloss.NewStyle().Bold(true)
)

// Recipe status constants, as reported by the build scheduler.
const (
	StatusBuilt   = "built"
	StatusCached  = "cached"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// statusStyle returns the lipgloss style for a recipe status string.
// Unknown statuses return an unstyled default.
func statusStyle(status string) lipgloss.Style {
	switch status {
	case StatusBuilt:
		return lipgloss.NewStyle().Foreground(colorGreen)
	case StatusCached:
		return lipgloss.NewStyle().Faint(true)
	case StatusSkipped:
		return lipgloss.NewStyle().Foreground(ColorYellow)
	case StatusFailed:
		return lipgloss.NewStyle().Bold(true).Foreground(colorBoldRed)
	default:
		return lipgloss.NewStyle()
	}
}

// minRecipeColumnWidth keeps status words aligned across lines.
const minRecipeColumnWidth = 32

// FormatRecipeLine renders a recipe name with a right-aligned status suffix.
//
// Format: r:<name>  <status>
func FormatRecipeLine(name, status string) string {
	padding := minRecipeColumnWidth - len(name)
	if padding < 2 {
		padding = 2
	}

	return StyleDim.Render("r:") + StyleNoun.Render(name) +
		strings.Repeat(" ", padding) + statusStyle(status).Render(status)
}

// FormatCheckmark renders a green checkmark with a message for stdout output.
func FormatCheckmark(msg string) string {
	check := lipgloss.NewStyle().Foreground(colorGreenCheck).Render("✔")
	return check + " " + msg
}
