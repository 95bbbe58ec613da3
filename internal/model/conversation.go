// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// ID is a backend-assigned identifier. The backend serves numeric ids but
// some endpoints quote them, so both forms are accepted on decode.
type ID int64

// String returns the decimal form of the id.
func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// IsZero reports whether the id is unset.
func (id ID) IsZero() bool {
	return id == 0
}

// UnmarshalJSON accepts 12, "12" and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*id = 0
			return nil
		}
		parsed, err := ParseID(s)
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*id = ID(n)
	return nil
}

// ParseID parses a user-supplied conversation or message id.
func ParseID(s string) (ID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return ID(n), nil
}

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// ConversationStatus is the lifecycle state of a conversation.
type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "active"
	ConversationArchived ConversationStatus = "archived"
)

// Conversation is a titled, ordered thread of messages between a user and
// the assistant.
type Conversation struct {
	ID           ID                 `json:"id"`
	Title        string             `json:"title"`
	Status       ConversationStatus `json:"status"`
	MessageCount int                `json:"message_count"`
	AIModel      string             `json:"ai_model,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
	ArchivedAt   *time.Time         `json:"archived_at,omitempty"`

	// Metadata is free-form; the backend merges it on update_metadata.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Messages is only populated by the detail endpoint.
	Messages []*Message `json:"messages,omitempty"`
}

// IsArchived reports whether the conversation has been archived.
func (c *Conversation) IsArchived() bool {
	return c.Status == ConversationArchived
}

// DisplayTitle returns the title or a placeholder for untitled threads.
func (c *Conversation) DisplayTitle() string {
	if t := strings.TrimSpace(c.Title); t != "" {
		return t
	}
	return "New conversation"
}

// Clone returns a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	if c.ArchivedAt != nil {
		t := *c.ArchivedAt
		cp.ArchivedAt = &t
	}
	if c.Metadata != nil {
		cp.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			cp.Metadata[k] = v
		}
	}
	if c.Messages != nil {
		cp.Messages = make([]*Message, len(c.Messages))
		for i, m := range c.Messages {
			cp.Messages[i] = m.Clone()
		}
	}
	return &cp
}

// LastMessage returns the most recent message, or nil if empty.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// SplitByStatus partitions conversations into active and archived lists,
// preserving order. Conversations with an unknown status count as active.
func SplitByStatus(convs []*Conversation) (active, archived []*Conversation) {
	for _, c := range convs {
		if c.IsArchived() {
			archived = append(archived, c)
		} else {
			active = append(active, c)
		}
	}
	return active, archived
}
