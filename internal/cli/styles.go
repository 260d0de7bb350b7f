// SPDX-License-Identifier: EPL-2.0

// Package cli renders terminal output for the audconv command.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	primaryColor = lipgloss.Color("#1E88E5")
	errorColor   = lipgloss.Color("#C62828")
	mutedColor   = lipgloss.Color("#888888")
	textColor    = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(errorColor)

	KeyStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	ValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)
)

// Field is one line of a summary.
type Field struct {
	Key   string
	Value string
}

// RenderSummary lays fields out as an aligned key/value box under title.
func RenderSummary(title string, fields []Field) string {
	width := 0
	for _, f := range fields {
		width = max(width, lipgloss.Width(f.Key))
	}

	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		key := KeyStyle.Render(f.Key + ":" + strings.Repeat(" ", width-lipgloss.Width(f.Key)))
		lines = append(lines, key+" "+ValueStyle.Render(f.Value))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		TitleStyle.Render(title),
		boxStyle.Render(strings.Join(lines, "\n")),
	)
}

// PrintSummary writes RenderSummary to w.
func PrintSummary(w io.Writer, title string, fields []Field) {
	fmt.Fprintln(w, RenderSummary(title, fields))
}

// PrintError prints an error message
func PrintError(w io.Writer, message string) {
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("Error:"), message)
}
