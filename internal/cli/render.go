// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// render.go - Markdown and source rendering for replies and attachments.

package cli

import (
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/masterchat/internal/model"
)

// Renderer turns reply markdown and attachment text into terminal output.
// With color disabled both pass through unchanged.
type Renderer struct {
	theme    model.Theme
	width    int
	color    bool
	markdown *glamour.TermRenderer
}

// NewRenderer creates a renderer for a theme and wrap width.
func NewRenderer(theme model.Theme, width int, color bool) *Renderer {
	r := &Renderer{theme: theme, width: width, color: color}
	if color {
		md, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(string(theme)),
			glamour.WithWordWrap(width),
		)
		if err == nil {
			r.markdown = md
		}
	}
	return r
}

// WithTheme returns a renderer for another theme, or r if it is unchanged.
func (r *Renderer) WithTheme(theme model.Theme) *Renderer {
	if theme == r.theme {
		return r
	}
	return NewRenderer(theme, r.width, r.color)
}

// Markdown renders markdown content. Returns the original content if
// rendering fails or is disabled.
func (r *Renderer) Markdown(content string) string {
	if r.markdown == nil {
		return content
	}
	rendered, err := r.markdown.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n") + "\n"
}

// Source highlights file text using the lexer matching the file name.
func (r *Renderer) Source(name, text string) string {
	if !r.color {
		return text
	}
	style := "monokai"
	if r.theme == model.ThemeLight {
		style = "github"
	}
	lexer := strings.TrimPrefix(filepath.Ext(name), ".")
	if lexer == "" {
		lexer = "text"
	}

	var sb strings.Builder
	if err := quick.Highlight(&sb, text, lexer, "terminal256", style); err != nil {
		return text
	}
	return sb.String()
}
