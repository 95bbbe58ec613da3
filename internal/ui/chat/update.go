// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/thicode-tui/internal/chat"
	"github.com/jeranaias/thicode-tui/internal/model"
)

// =============================================================================
// COMMAND CREATORS
// =============================================================================

// Store operations run on context.Background: the screen never cancels a
// request it started, it only stops listening when the program exits.

// waitForChange blocks until the store signals a change.
func waitForChange(changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return StoreChangedMsg{}
	}
}

// opCmd wraps a store operation so its outcome comes back as an OpDoneMsg.
func opCmd(op string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return OpDoneMsg{Op: op, Err: fn(context.Background())}
	}
}

// FetchConversationsCmd reloads the conversation list.
func FetchConversationsCmd(store *chat.Store) tea.Cmd {
	return opCmd("refresh", store.FetchConversations)
}

// FetchConversationCmd opens a conversation with its messages.
func FetchConversationCmd(store *chat.Store, id model.ID) tea.Cmd {
	return opCmd("open", func(ctx context.Context) error {
		return store.FetchConversation(ctx, id)
	})
}

// RenameCmd renames a conversation.
func RenameCmd(store *chat.Store, id model.ID, title string) tea.Cmd {
	return opCmd("rename", func(ctx context.Context) error {
		return store.RenameConversation(ctx, id, title)
	})
}

// DeleteCmd deletes a conversation.
func DeleteCmd(store *chat.Store, id model.ID) tea.Cmd {
	return opCmd("delete", func(ctx context.Context) error {
		return store.DeleteConversation(ctx, id)
	})
}

// ArchiveCmd archives an active conversation or restores an archived one.
func ArchiveCmd(store *chat.Store, conv *model.Conversation) tea.Cmd {
	if conv.IsArchived() {
		return opCmd("restore", func(ctx context.Context) error {
			return store.RestoreConversation(ctx, conv.ID)
		})
	}
	return opCmd("archive", func(ctx context.Context) error {
		return store.ArchiveConversation(ctx, conv.ID)
	})
}

// CreateConversationCmd starts a conversation from its first message.
func CreateConversationCmd(store *chat.Store, content, aiModel string) tea.Cmd {
	return func() tea.Msg {
		conv, err := store.CreateConversation(context.Background(), content, aiModel)
		return ConversationCreatedMsg{Conversation: conv, Content: content, Err: err}
	}
}

// SendCmd posts a message. The reply arrives later through WaitSendCmd.
func SendCmd(store *chat.Store, id model.ID, content, aiModel string) tea.Cmd {
	return func() tea.Msg {
		h, err := store.SendMessage(context.Background(), id, content, aiModel)
		return SendStartedMsg{Handle: h, Err: err}
	}
}

// WaitSendCmd blocks until a send reaches a terminal state.
func WaitSendCmd(h *chat.SendHandle) tea.Cmd {
	return func() tea.Msg {
		<-h.Done()
		return SendFinishedMsg{Handle: h}
	}
}

// CopyCmd copies text to the clipboard.
func CopyCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return ClipboardMsg{Err: copyToClipboard(text)}
	}
}
