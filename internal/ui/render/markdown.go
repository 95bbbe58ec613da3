// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns assistant replies into terminal text.
package render

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/jeranaias/thicode-tui/internal/logger"
)

// DefaultWidth is the wrap width used before the terminal size is known.
const DefaultWidth = 80

// Renderer renders markdown with glamour. With markdown disabled it only
// highlights fenced code blocks and wraps the text. It is safe for
// concurrent use.
type Renderer struct {
	mu       sync.Mutex
	width    int
	dark     bool
	markdown bool
	term     *glamour.TermRenderer
}

// NewRenderer creates a renderer wrapping at width.
func NewRenderer(width int, dark, markdown bool) *Renderer {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Renderer{width: width, dark: dark, markdown: markdown}
}

// SetWidth changes the wrap width.
func (r *Renderer) SetWidth(width int) {
	if width <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if width != r.width {
		r.width = width
		r.term = nil
	}
}

// SetDark switches between the dark and light glamour styles.
func (r *Renderer) SetDark(dark bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if dark != r.dark {
		r.dark = dark
		r.term = nil
	}
}

// SetMarkdown enables or disables markdown rendering.
func (r *Renderer) SetMarkdown(enabled bool) {
	r.mu.Lock()
	r.markdown = enabled
	r.mu.Unlock()
}

// Width returns the wrap width.
func (r *Renderer) Width() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width
}

// Render returns content formatted for the terminal. Rendering failures fall
// back to plain output.
func (r *Renderer) Render(content string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.markdown {
		return r.plain(content)
	}

	if r.term == nil {
		term, err := r.newTerm()
		if err != nil {
			logger.L().Debug("markdown renderer unavailable", zap.Error(err))
			return r.plain(content)
		}
		r.term = term
	}

	out, err := r.term.Render(content)
	if err != nil {
		return r.plain(content)
	}
	return strings.Trim(out, "\n")
}

func (r *Renderer) newTerm() (*glamour.TermRenderer, error) {
	style := "light"
	if r.dark {
		style = "dark"
	}
	return glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(r.width),
	)
}

// plain highlights code blocks and wraps prose to the width.
func (r *Renderer) plain(content string) string {
	var b strings.Builder
	for i, seg := range SplitFences(content) {
		if i > 0 {
			b.WriteString("\n")
		}
		if seg.Code {
			b.WriteString(Highlight(seg.Text, seg.Language, r.dark))
			continue
		}
		b.WriteString(Wrap(seg.Text, r.width))
	}
	return b.String()
}

// Wrap word-wraps text to width columns.
func Wrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	return lipgloss.NewStyle().Width(width).Render(text)
}
