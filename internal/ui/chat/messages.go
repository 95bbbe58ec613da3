// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/thicode-tui/internal/chat"
	"github.com/jeranaias/thicode-tui/internal/config"
	"github.com/jeranaias/thicode-tui/internal/model"
)

// =============================================================================
// STORE MESSAGES
// =============================================================================

// StoreChangedMsg signals that the conversation store changed.
type StoreChangedMsg struct{}

// OpDoneMsg reports the end of a store operation. Failures are already
// recorded in the store's error and shown in the banner.
type OpDoneMsg struct {
	Op  string
	Err error
}

// ConversationCreatedMsg reports a conversation started from the input.
// Content is the message it was started with.
type ConversationCreatedMsg struct {
	Conversation *model.Conversation
	Content      string
	Err          error
}

// =============================================================================
// SEND MESSAGES
// =============================================================================

// SendStartedMsg reports that the backend accepted (or refused) a message.
type SendStartedMsg struct {
	Handle *chat.SendHandle
	Err    error
}

// SendFinishedMsg reports that a send reached a terminal state.
type SendFinishedMsg struct {
	Handle *chat.SendHandle
}

// =============================================================================
// MISC MESSAGES
// =============================================================================

// ConfigChangedMsg delivers a config file that changed on disk.
type ConfigChangedMsg struct {
	Config *config.Config
}

// ClipboardMsg reports the outcome of a copy.
type ClipboardMsg struct {
	Err error
}
