package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the terminal color scheme.
type Theme struct {
	Primary lipgloss.Color // Main accent color
	Dim     lipgloss.Color // Dimmed/help text color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(DefaultTheme.Primary).Padding(0, 1)
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(DefaultTheme.Primary)
	dimStyle   = lipgloss.NewStyle().Foreground(DefaultTheme.Dim)
)

// Banner renders the startup banner with labeled settings lines.
func Banner(title string, rows [][2]string) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	for _, row := range rows {
		b.WriteString("  ")
		b.WriteString(labelStyle.Render(row[0] + ":"))
		b.WriteString(" ")
		b.WriteString(row[1])
		b.WriteString("\n")
	}
	return b.String()
}

// Hint renders dimmed help text.
func Hint(text string) string {
	return dimStyle.Render(text)
}

// PrintSuccess prints a success message with checkmark
func PrintSuccess(format string, args ...any) {
	fmt.Printf("✓ "+format+"\n", args...)
}

// PrintError prints an error message to stderr
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// PrintInfo prints an info message
func PrintInfo(format string, args ...any) {
	fmt.Printf("ℹ "+format+"\n", args...)
}
