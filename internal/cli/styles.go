// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Theme-aware styling for the masterchat REPL.

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/masterchat/internal/model"
)

// init configures lipgloss color profile based on terminal capabilities.
func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// palette holds the colors of one theme.
type palette struct {
	accent    lipgloss.Color
	user      lipgloss.Color
	assistant lipgloss.Color
	text      lipgloss.Color
	dim       lipgloss.Color
	success   lipgloss.Color
	warning   lipgloss.Color
	danger    lipgloss.Color
}

var palettes = map[model.Theme]palette{
	model.ThemeDark: {
		accent:    lipgloss.Color("39"),  // Cyan
		user:      lipgloss.Color("75"),  // Blue
		assistant: lipgloss.Color("141"), // Purple
		text:      lipgloss.Color("252"), // Off-white
		dim:       lipgloss.Color("242"), // Dim gray
		success:   lipgloss.Color("42"),  // Green
		warning:   lipgloss.Color("214"), // Orange
		danger:    lipgloss.Color("196"), // Red
	},
	model.ThemeLight: {
		accent:    lipgloss.Color("25"),  // Deep blue
		user:      lipgloss.Color("26"),  // Blue
		assistant: lipgloss.Color("91"),  // Magenta
		text:      lipgloss.Color("235"), // Near black
		dim:       lipgloss.Color("245"), // Gray
		success:   lipgloss.Color("28"),  // Green
		warning:   lipgloss.Color("130"), // Brown-orange
		danger:    lipgloss.Color("160"), // Red
	},
}

// Styles are the lipgloss styles used by the REPL.
type Styles struct {
	Theme     model.Theme
	Title     lipgloss.Style
	Prompt    lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	Text      lipgloss.Style
	Dim       lipgloss.Style
	Command   lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Active    lipgloss.Style
}

// NewStyles builds the styles for a theme. Unknown themes fall back to dark.
func NewStyles(theme model.Theme) Styles {
	if !theme.Valid() {
		theme = model.DefaultTheme
	}
	p := palettes[theme]
	return Styles{
		Theme:     theme,
		Title:     lipgloss.NewStyle().Bold(true).Foreground(p.accent),
		Prompt:    lipgloss.NewStyle().Bold(true).Foreground(p.accent),
		User:      lipgloss.NewStyle().Bold(true).Foreground(p.user),
		Assistant: lipgloss.NewStyle().Bold(true).Foreground(p.assistant),
		Text:      lipgloss.NewStyle().Foreground(p.text),
		Dim:       lipgloss.NewStyle().Foreground(p.dim),
		Command:   lipgloss.NewStyle().Foreground(p.success),
		Success:   lipgloss.NewStyle().Bold(true).Foreground(p.success),
		Warning:   lipgloss.NewStyle().Foreground(p.warning),
		Error:     lipgloss.NewStyle().Bold(true).Foreground(p.danger),
		Active:    lipgloss.NewStyle().Bold(true).Foreground(p.accent),
	}
}

// Separator renders a horizontal rule of the given width.
func (s Styles) Separator(width int) string {
	if width <= 0 {
		width = 30
	}
	return s.Dim.Render(strings.Repeat("─", width))
}
