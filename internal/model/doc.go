// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// These are the entities as the client sees them. The backend owns
// persistence and is authoritative; the client keeps a cache that is
// replaced on each fetch.
//
// # Key Types
//
//   - Conversation: titled thread with status (active/archived) and messages
//   - Message: single message with role, content, and completion status
//   - User / Preferences: the authenticated account and its settings
//   - ID: backend identifier, decoded from numbers or quoted numbers
//
// # Temporary Messages
//
// A message sent by the user is shown immediately as a placeholder:
//
//	msg := model.NewTempUserMessage("Hello!")
//	msg.IsTemp() // true until the backend confirms it
package model
