// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Styling for line-oriented command output.
//
// The palette is the TUI's, so `thicode chat` and the full-screen client
// look alike.

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/thicode-tui/internal/ui/styles"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES FOR ALL CLI COMMANDS
// =============================================================================

var (
	// TitleStyle is used for command titles and headers
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.Purple)

	// SectionStyle is used for section headers within commands
	SectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.TextPrimary).
			MarginTop(1)

	// LabelStyle is used for field labels
	LabelStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary).
			Width(16)

	// ValueStyle is used for regular values and text
	ValueStyle = lipgloss.NewStyle().
			Foreground(styles.TextPrimary)

	// SuccessStyle is used for success messages
	SuccessStyle = lipgloss.NewStyle().
			Foreground(styles.SuccessHighContrast).
			Bold(true)

	// ErrorStyle is used for error messages
	ErrorStyle = lipgloss.NewStyle().
			Foreground(styles.ErrorHighContrast).
			Bold(true)

	// WarningStyle is used for warnings
	WarningStyle = lipgloss.NewStyle().
			Foreground(styles.WarningHighContrast)

	// DimStyle is used for secondary information and hints
	DimStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted)

	// SeparatorStyle is used for visual separators
	SeparatorStyle = lipgloss.NewStyle().
			Foreground(styles.OverlayDim)

	// InfoStyle is used for informational messages
	InfoStyle = lipgloss.NewStyle().
			Foreground(styles.InfoHighContrast)

	// PromptStyle is the `thicode chat` input prompt
	PromptStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	// UserRoleStyle labels the user's messages
	UserRoleStyle = lipgloss.NewStyle().
			Foreground(styles.UserBubbleBorder).
			Bold(true)

	// AssistantRoleStyle labels the assistant's messages
	AssistantRoleStyle = lipgloss.NewStyle().
				Foreground(styles.AssistantBubbleBorder).
				Bold(true)

	// ArchivedStyle marks archived conversations in lists
	ArchivedStyle = lipgloss.NewStyle().
			Foreground(styles.Amber)
)

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// RenderSeparator renders a horizontal rule of the given width.
func RenderSeparator(width int) string {
	return SeparatorStyle.Render(strings.Repeat("-", width))
}

// RenderLabel renders a label: value pair.
func RenderLabel(label, value string) string {
	return LabelStyle.Render(label+":") + " " + ValueStyle.Render(value)
}
