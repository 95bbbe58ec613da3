// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// TempIDPrefix marks messages that exist only on the client until the
// backend confirms them.
const TempIDPrefix = "temp-"

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE STATUS
// =============================================================================

// MessageStatus is the completion status the backend reports for a message.
type MessageStatus string

const (
	StatusPending   MessageStatus = "pending"
	StatusCompleted MessageStatus = "completed"
	StatusError     MessageStatus = "error"
)

// IsTerminal reports whether no further status change is expected.
func (s MessageStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
type Message struct {
	// Identity. ID is assigned by the backend; LocalID is set only on
	// optimistic messages that have not been confirmed yet.
	ID      ID     `json:"id"`
	LocalID string `json:"-"`

	Role        Role          `json:"role"`
	Content     string        `json:"content"`
	ContentType string        `json:"content_type,omitempty"`
	Status      MessageStatus `json:"status,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// NewTempUserMessage creates an optimistic user message tagged with a
// temporary local id.
func NewTempUserMessage(content string) *Message {
	return &Message{
		LocalID:     TempIDPrefix + uuid.NewString(),
		Role:        RoleUser,
		Content:     content,
		ContentType: "text",
		Status:      StatusPending,
		CreatedAt:   time.Now(),
	}
}

// IsTemp reports whether the message is a local placeholder.
func (m *Message) IsTemp() bool {
	return strings.HasPrefix(m.LocalID, TempIDPrefix)
}

// Key returns a stable identifier usable for rendering and lookups.
func (m *Message) Key() string {
	if m.IsTemp() {
		return m.LocalID
	}
	return m.ID.String()
}

// Clone returns a copy of the message.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}

// Preview returns the first line of the content truncated to maxRunes.
func (m *Message) Preview(maxRunes int) string {
	line := m.Content
	if i := strings.IndexAny(line, "\r\n"); i >= 0 {
		line = line[:i]
	}
	runes := []rune(line)
	if maxRunes > 3 && len(runes) > maxRunes {
		return string(runes[:maxRunes-3]) + "..."
	}
	return line
}

// SameContent compares two message bodies the way the backend stores them:
// NFC-normalised with surrounding whitespace trimmed.
func SameContent(a, b string) bool {
	return norm.NFC.String(strings.TrimSpace(a)) == norm.NFC.String(strings.TrimSpace(b))
}
