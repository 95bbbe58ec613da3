// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line interface functionality.
// This file contains shared helper functions used across multiple CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/thicode-tui/internal/model"
	"github.com/jeranaias/thicode-tui/internal/ui/render"
	"github.com/jeranaias/thicode-tui/internal/ui/styles"
	"github.com/jeranaias/thicode-tui/internal/util"
)

// formatDuration formats a time.Duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}

// formatBytes formats a file size as B, KB or MB.
func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
	)
	switch {
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// formatAge renders t as "5m ago", or "" for the zero time.
func formatAge(t time.Time, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	if d < time.Minute {
		return "just now"
	}
	return formatDuration(d) + " ago"
}

// parseID parses a conversation id argument.
func parseID(s, usage string) (model.ID, error) {
	if s == "" {
		return 0, ErrMissingArgument("conversation id", usage)
	}
	id, err := model.ParseID(s)
	if err != nil || id <= 0 {
		return 0, NewValidationErrorWithExample("conversation id", s, "must be a positive number", usage)
	}
	return id, nil
}

// parseMetadata turns KEY=VALUE pairs into a metadata object. Values that
// are valid JSON (numbers, booleans, null, quoted strings, objects) keep
// their type; anything else is a string.
func parseMetadata(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, ErrMissingArgument("KEY=VALUE", "thicode conversations meta 12 pinned=true")
	}
	meta := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, NewValidationErrorWithExample("metadata", pair, "expected KEY=VALUE", "pinned=true")
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		meta[key] = v
	}
	return meta, nil
}

// isNumber reports whether s is a plain integer.
func isNumber(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

// =============================================================================
// MESSAGE OUTPUT
// =============================================================================

// messagePrinter renders conversation messages for the terminal.
type messagePrinter struct {
	renderer *render.Renderer
	width    int
}

func newMessagePrinter(a *App) *messagePrinter {
	mode, err := styles.ParseMode(a.Config.UI.Theme)
	if err != nil {
		mode = styles.ModeSystem
	}
	width := outputWidth(a.Config.UI.WordWrap)
	markdown := a.Config.UI.Markdown && ColorsEnabled()
	return &messagePrinter{
		renderer: render.NewRenderer(width, mode.Resolve(styles.TerminalDetector), markdown),
		width:    width,
	}
}

// header is the role line above a message.
func (p *messagePrinter) header(m *model.Message) string {
	role := UserRoleStyle.Render(m.Role.DisplayName())
	if m.Role == model.RoleAssistant {
		role = AssistantRoleStyle.Render(m.Role.DisplayName())
	}
	if !m.CreatedAt.IsZero() {
		role += " " + DimStyle.Render(m.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	if m.Status == model.StatusError {
		role += " " + ErrorStyle.Render("failed")
	}
	return role
}

// body renders assistant replies as markdown and wraps everything else.
func (p *messagePrinter) body(m *model.Message) string {
	if m.Role == model.RoleAssistant {
		return strings.TrimRight(p.renderer.Render(m.Content), "\n")
	}
	return render.Wrap(m.Content, p.width)
}

// Format renders one message with its header.
func (p *messagePrinter) Format(m *model.Message) string {
	return p.header(m) + "\n" + p.body(m) + "\n"
}

// conversationLine is one row of a conversation listing.
func conversationLine(c *model.Conversation, width int, now time.Time) string {
	id := DimStyle.Render(fmt.Sprintf("%6s", c.ID.String()))
	meta := fmt.Sprintf("%d msg", c.MessageCount)
	if age := formatAge(c.UpdatedAt, now); age != "" {
		meta += ", " + age
	}
	titleWidth := width - 6 - util.StringWidth(meta) - 6
	if titleWidth < 10 {
		titleWidth = 10
	}
	title := util.PadRight(util.TruncateWidth(util.FirstLine(c.DisplayTitle()), titleWidth), titleWidth)
	line := id + "  " + ValueStyle.Render(title) + "  " + DimStyle.Render(meta)
	if c.IsArchived() {
		line += " " + ArchivedStyle.Render("[archived]")
	}
	return line
}
