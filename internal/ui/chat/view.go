// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/thicode-tui/internal/model"
	"github.com/jeranaias/thicode-tui/internal/ui/components"
	"github.com/jeranaias/thicode-tui/internal/ui/render"
	"github.com/jeranaias/thicode-tui/internal/util"
)

// =============================================================================
// MAIN RENDER
// =============================================================================

// renderChat stacks header, banner, sidebar + messages, input and status bar.
func (m Model) renderChat() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelpOverlay()
	}

	messages := lipgloss.NewStyle().
		Height(m.viewport.Height).
		MaxHeight(m.viewport.Height).
		Render(m.viewport.View())

	body := messages
	if sw := m.theme.SidebarWidth(); sw > 0 {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(sw, m.viewport.Height), messages)
	}

	parts := []string{m.renderHeader()}
	if banner := m.renderBanner(); banner != "" {
		parts = append(parts, banner)
	}
	parts = append(parts, body, m.renderInput(), m.renderStatusBar())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// =============================================================================
// HEADER AND BANNER
// =============================================================================

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("ThiCode")
	if conv := m.state.Current; conv != nil {
		title += m.theme.HeaderUser.Render("  " + util.FirstLine(conv.DisplayTitle()))
		if conv.IsArchived() {
			title += m.theme.SidebarMeta.Render(" (archived)")
		}
	}

	var right string
	if m.username != "" {
		right = m.theme.HeaderUser.Render(m.username)
	}

	gap := m.width - lipgloss.Width(title) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Width(m.width).MaxHeight(headerHeight).
		Render(title + strings.Repeat(" ", gap) + right)
}

// renderBanner shows the store's last error. An expired session gets a hint
// on how to log back in.
func (m Model) renderBanner() string {
	if m.state.Error == "" {
		return ""
	}
	text := "! " + m.state.Error
	if m.unauthorized {
		text += "  (run `thicode login`)"
	}
	text += "  [Esc]"
	return m.theme.ErrorBanner.Width(m.width).Render(util.TruncateWidth(text, m.width-2))
}

// =============================================================================
// SIDEBAR
// =============================================================================

func (m Model) renderSidebar(width, height int) string {
	inner := width - 2 // border + padding
	itemWidth := inner - 1

	section := "Conversations"
	if m.showArchived {
		section = "Archived"
	}
	if m.filter != "" {
		section += " /" + m.filter
	}
	lines := []string{m.theme.SidebarSection.Render(util.TruncateWidth(section, inner))}

	visible := m.visible()
	if len(visible) == 0 {
		empty := "No conversations"
		switch {
		case m.filter != "":
			empty = "No matches"
		case m.state.Loading:
			empty = "Loading..."
		}
		lines = append(lines, m.theme.SidebarMeta.Render(util.TruncateWidth(empty, inner)))
	}

	// keep the selection on screen
	rows := height - 3
	if rows < 1 {
		rows = 1
	}
	start := 0
	if m.selected >= rows {
		start = m.selected - rows + 1
	}

	for i := start; i < len(visible) && i < start+rows; i++ {
		conv := visible[i]
		label := sidebarLabel(conv, itemWidth)
		style := m.theme.SidebarItem
		switch {
		case m.focus == FocusSidebar && i == m.selected:
			style = m.theme.SidebarItemSelected
		case m.state.Current != nil && conv.ID == m.state.Current.ID:
			style = m.theme.SidebarItemActive
		}
		lines = append(lines, highlightLabel(label, m.filter, style))
	}

	return m.theme.Sidebar.
		Width(width - 1).
		Height(height).
		MaxHeight(height).
		Render(strings.Join(lines, "\n"))
}

// =============================================================================
// MESSAGES
// =============================================================================

func (m *Model) renderMessages() string {
	if len(m.state.Messages) == 0 && !m.state.Typing {
		return m.renderEmptyState()
	}

	width := calculateContentWidth(m.viewport.Width, 10)
	var b strings.Builder
	for _, msg := range m.state.Messages {
		b.WriteString(m.renderMessage(msg, width))
		b.WriteString("\n")
	}
	if m.state.Typing {
		b.WriteString(m.renderThinking())
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderMessage(msg *model.Message, width int) string {
	meta := msg.Role.DisplayName()
	if ts := formatTimestamp(msg.CreatedAt); ts != "" {
		meta += " " + m.theme.MessageMeta.Render(ts)
	}

	switch {
	case msg.IsTemp():
		meta += " " + m.theme.MessageMeta.Render("sending...")
		body := m.theme.PendingBubble.Width(width).Render(render.Wrap(msg.Content, width-4))
		return m.theme.MessageRole.Render(meta) + "\n" + body

	case msg.Role == model.RoleAssistant:
		if msg.Status == model.StatusError {
			meta += " " + m.theme.ErrorStyle.Render("failed")
		}
		content := strings.TrimRight(m.renderer.Render(msg.Content), "\n")
		body := m.theme.AssistantBubble.Width(width).Render(content)
		return m.theme.MessageRole.Render(meta) + "\n" + body

	default:
		body := m.theme.UserBubble.Width(width).Render(render.Wrap(msg.Content, width-4))
		return m.theme.MessageRole.Render(meta) + "\n" + body
	}
}

// renderThinking is the "assistant is typing" line shown while a reply is
// being polled.
func (m *Model) renderThinking() string {
	text := "Assistant is typing"
	if !m.typingSince.IsZero() {
		text += " (" + formatElapsed(time.Since(m.typingSince)) + ")"
	}
	return m.theme.ThinkingText.Render(text + " " + m.spinner.View())
}

func (m *Model) renderEmptyState() string {
	var lines []string
	switch {
	case m.state.Loading:
		lines = append(lines, "Loading...")
	case m.state.Current != nil:
		lines = append(lines, "No messages yet.")
	default:
		lines = append(lines,
			"Start a new conversation by typing a message below.",
			"",
			"Tab switches to the conversation list, F1 shows all keys.")
	}
	return m.theme.EmptyState.Render(strings.Join(lines, "\n"))
}

// =============================================================================
// INPUT AND STATUS BAR
// =============================================================================

func (m Model) renderInput() string {
	return m.theme.InputContainer.Width(m.width).MaxHeight(inputHeight).Render(m.input.View())
}

func (m Model) renderStatusBar() string {
	var left []string
	if m.offline {
		left = append(left, m.theme.OfflineBadge.Render("OFFLINE"))
	}
	if m.state.Loading {
		left = append(left, m.theme.Spinner.Render("working"))
	}
	if toast, ok := m.toasts.Latest(); ok && m.prompt == "" {
		left = append(left, components.RenderToast(toast, m.width/2, time.Now()))
	} else if m.prompt != "" {
		left = append(left, m.theme.InfoStyle.Render(m.prompt))
	} else if conv := m.state.Current; conv != nil {
		left = append(left, m.theme.ShortcutDesc.Render(formatCount(conv.MessageCount)))
	}
	if m.aiModel != "" {
		left = append(left, m.theme.ShortcutDesc.Render("model "+m.aiModel))
	}

	var help []string
	for _, b := range m.keyMap.ShortHelp() {
		h := b.Help()
		help = append(help, m.theme.ShortcutKey.Render(h.Key)+" "+m.theme.ShortcutDesc.Render(h.Desc))
	}

	leftStr := strings.Join(left, "  ")
	rightStr := strings.Join(help, "  ")
	gap := m.width - lipgloss.Width(leftStr) - lipgloss.Width(rightStr) - 2
	if gap < 1 {
		rightStr = ""
		gap = 1
	}
	return m.theme.StatusBar.Width(m.width).MaxHeight(statusHeight).
		Render(leftStr + strings.Repeat(" ", gap) + rightStr)
}

// =============================================================================
// HELP OVERLAY
// =============================================================================

func (m Model) renderHelpOverlay() string {
	titles := []string{"Conversations", "Messages", "Scrolling", "Other"}

	var b strings.Builder
	b.WriteString(m.theme.HeaderTitle.Render("Keyboard shortcuts"))
	b.WriteString("\n")
	for i, group := range m.keyMap.FullHelp() {
		b.WriteString("\n")
		b.WriteString(m.theme.SidebarSection.Render(titles[i]))
		b.WriteString("\n")
		for _, binding := range group {
			b.WriteString(helpLine(m, binding))
		}
	}
	b.WriteString("\n")
	b.WriteString(m.theme.ShortcutDesc.Render("Press F1 or Esc to close"))

	box := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(m.theme.ShortcutKey.GetForeground()).
		Padding(1, 2).
		Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// highlightLabel renders label in style with the runes matching filter
// underlined.
func highlightLabel(label, filter string, style lipgloss.Style) string {
	positions := components.HighlightPositions(filter, label)
	if len(positions) == 0 {
		return style.Render(label)
	}
	marked := make(map[int]bool, len(positions))
	for _, p := range positions {
		marked[p] = true
	}

	// padding applies once to the whole row, not to every segment
	plain := style.UnsetPaddingLeft()
	hit := plain.Underline(true).Bold(true)

	var b strings.Builder
	b.WriteString(plain.Render(strings.Repeat(" ", style.GetPaddingLeft())))
	var run []rune
	runHit := false
	flush := func() {
		if len(run) == 0 {
			return
		}
		if runHit {
			b.WriteString(hit.Render(string(run)))
		} else {
			b.WriteString(plain.Render(string(run)))
		}
		run = run[:0]
	}
	for i, r := range []rune(label) {
		if marked[i] != runHit {
			flush()
			runHit = marked[i]
		}
		run = append(run, r)
	}
	flush()
	return b.String()
}

func helpLine(m Model, b key.Binding) string {
	h := b.Help()
	return fmt.Sprintf("  %s  %s\n",
		m.theme.ShortcutKey.Render(util.PadRight(h.Key, 10)),
		m.theme.ShortcutDesc.Render(h.Desc))
}
