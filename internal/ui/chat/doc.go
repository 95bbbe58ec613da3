// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the chat screen of the thicode TUI.

The screen is a Bubble Tea model over a *chat.Store from internal/chat. It
never keeps its own copy of conversations: every change notification from
the store is turned into a StoreChangedMsg, and the screen re-renders from a
fresh snapshot.

# Key Components

## Model (model.go)

The Model holds the widgets (viewport, text input, spinner), focus and input
mode, and dispatches keys:
  - Tab moves between the conversation list and the input
  - Enter sends the input, or opens the selected conversation
  - Ctrl+N starts a new conversation from the next message
  - Ctrl+R, Ctrl+A and Ctrl+X rename, archive/restore and delete

## Commands (update.go)

Every store operation runs as a tea.Cmd. Sends return a SendStartedMsg with
a handle; WaitSendCmd turns the end of polling into a SendFinishedMsg.

## View Rendering (view.go)

Header, error banner, sidebar, message bubbles, input and status bar.
Assistant replies go through internal/ui/render (glamour markdown or chroma
highlighted plain text).

# Usage

	m := chat.New(chat.Options{
		Store:    store,
		Theme:    styles.NewTheme(),
		Username: user.Username,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
*/
package chat
