// Package style provides consistent terminal styling using Lipgloss.
package style

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	// Bold is used for emphasis and success glyphs.
	Bold = lipgloss.NewStyle().Bold(true)

	// Dim is used for secondary detail (reasons, counts, separators).
	Dim = lipgloss.NewStyle().Faint(true)

	// Success renders the ✓ glyph.
	Success = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))

	// Warning renders the ⚠ glyph.
	Warning = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

	// Error renders failure messages.
	Error = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)

	// Heading renders section headings in summaries.
	Heading = lipgloss.NewStyle().Bold(true).Underline(true)
)

// IsTerminal reports whether stdout is a terminal. Callers use this to
// fall back to plain output when piped into a file or CI log.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Disable replaces every style with an unstyled one, for piped output.
func Disable() {
	plain := lipgloss.NewStyle()
	Bold, Dim, Success, Warning, Error, Heading = plain, plain, plain, plain, plain, plain
}
