// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the colours, styles and theme switching for the
thicode TUI.

# Colors (colors.go)

All colors are lipgloss.AdaptiveColor values, so the dark or light variant is
picked from lipgloss's background flag at render time:

	Purple, Cyan        - accents for assistant and user
	Emerald, Rose, Amber - success, error, warning
	Surface, Overlay    - backgrounds and borders
	TextPrimary..Muted  - text hierarchy

Status helpers (RenderSuccess, RenderError, ...) prefix an ASCII indicator so
state is readable without color.

# Theme (theme.go)

Theme groups the lipgloss styles used by the chat screen: header, sidebar,
message bubbles, input, status bar and banners. GetLayoutMode and
SidebarWidth adapt the layout to the terminal width.

# Mode switching (mode.go)

A Mode is dark, light or system. System mode follows the terminal background
as reported by termenv. A Switcher holds the active mode and applies it with
lipgloss.SetHasDarkBackground:

	sw := styles.NewSwitcher(styles.ModeSystem, styles.TerminalDetector)
	sw.OnChange(func(m styles.Mode) { saveTheme(m) })
	sw.Toggle() // explicit dark or light from now on

# Spinners (animations.go)

SpinnerConfig frame sets convert to bubbles spinners with Bubbles().
*/
package styles
