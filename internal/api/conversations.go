// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/jeranaias/thicode-tui/internal/model"
)

// DefaultModel is the AI model used when the caller does not pick one.
const DefaultModel = "mistral"

// =============================================================================
// MESSAGE EXCHANGE TYPES
// =============================================================================

// SendMessageRequest is the body posted to a conversation's messages.
type SendMessageRequest struct {
	Content     string `json:"content"`
	ContentType string `json:"content_type,omitempty"`
	Model       string `json:"model,omitempty"`
}

// SendMessageResponse is returned after posting a message. When Status is
// completed the assistant reply is already included; when pending it must
// be polled for.
type SendMessageResponse struct {
	UserMessage *model.Message      `json:"user_message"`
	Status      model.MessageStatus `json:"status"`
	AIMessage   *model.Message      `json:"ai_message,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// MessageStatusResponse is the body of the per-message status endpoint.
type MessageStatusResponse struct {
	Status    model.MessageStatus `json:"status"`
	AIMessage *model.Message      `json:"ai_message,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// ListConversations returns every conversation of the current user, active
// and archived.
func (c *Client) ListConversations(ctx context.Context) ([]*model.Conversation, error) {
	var raw json.RawMessage
	if err := c.Get(ctx, PathConversations, &raw); err != nil {
		return nil, err
	}
	var convs []*model.Conversation
	if err := decodeList(raw, &convs); err != nil {
		return nil, fmt.Errorf("failed to parse conversations: %w", err)
	}
	return convs, nil
}

// GetConversation returns a conversation with its messages.
func (c *Client) GetConversation(ctx context.Context, id model.ID) (*model.Conversation, error) {
	var conv model.Conversation
	if err := c.Get(ctx, PathConversation(id), &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// CreateConversation starts a conversation with an initial message.
func (c *Client) CreateConversation(ctx context.Context, message, aiModel string) (*model.Conversation, error) {
	if aiModel == "" {
		aiModel = DefaultModel
	}
	body := map[string]string{"message": message, "ai_model": aiModel}
	var conv model.Conversation
	if err := c.Post(ctx, PathConversations, body, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// RenameConversation changes a conversation's title.
func (c *Client) RenameConversation(ctx context.Context, id model.ID, title string) (*model.Conversation, error) {
	var conv model.Conversation
	if err := c.Patch(ctx, PathConversation(id), map[string]string{"title": title}, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// DeleteConversation removes a conversation.
func (c *Client) DeleteConversation(ctx context.Context, id model.ID) error {
	return c.Delete(ctx, PathConversation(id))
}

// ArchiveConversation marks a conversation archived and returns the server copy.
func (c *Client) ArchiveConversation(ctx context.Context, id model.ID) (*model.Conversation, error) {
	return c.conversationAction(ctx, PathArchive(id), struct{}{})
}

// RestoreConversation makes an archived conversation active again.
func (c *Client) RestoreConversation(ctx context.Context, id model.ID) (*model.Conversation, error) {
	return c.conversationAction(ctx, PathRestore(id), struct{}{})
}

// UpdateMetadata merges metadata into the conversation's metadata map.
func (c *Client) UpdateMetadata(ctx context.Context, id model.ID, metadata map[string]any) (*model.Conversation, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return c.conversationAction(ctx, PathUpdateMetadata(id), metadata)
}

func (c *Client) conversationAction(ctx context.Context, path string, body any) (*model.Conversation, error) {
	var conv model.Conversation
	if err := c.Post(ctx, path, body, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// =============================================================================
// MESSAGES
// =============================================================================

// ListMessages returns the messages of a conversation in arrival order.
func (c *Client) ListMessages(ctx context.Context, id model.ID) ([]*model.Message, error) {
	var raw json.RawMessage
	if err := c.Get(ctx, PathMessages(id), &raw); err != nil {
		return nil, err
	}
	var msgs []*model.Message
	if err := decodeList(raw, &msgs); err != nil {
		return nil, fmt.Errorf("failed to parse messages: %w", err)
	}
	return msgs, nil
}

// SendMessage posts a user message. The reply is either inline
// (status completed) or must be polled with MessageStatus.
func (c *Client) SendMessage(ctx context.Context, id model.ID, req SendMessageRequest) (*SendMessageResponse, error) {
	if req.ContentType == "" {
		req.ContentType = "text"
	}
	var resp SendMessageResponse
	if err := c.Post(ctx, PathMessages(id), req, &resp); err != nil {
		return nil, err
	}
	if resp.UserMessage == nil {
		return nil, fmt.Errorf("malformed send response: missing user_message")
	}
	return &resp, nil
}

// MessageStatus reports whether the assistant has answered a message yet.
func (c *Client) MessageStatus(ctx context.Context, conversationID, messageID model.ID) (*MessageStatusResponse, error) {
	var resp MessageStatusResponse
	if err := c.Get(ctx, PathMessageStatus(conversationID, messageID), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// decodeList accepts a bare JSON array or a DRF paginated envelope.
func decodeList(raw json.RawMessage, out any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '[' {
		return json.Unmarshal(raw, out)
	}
	var page struct {
		Results json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return err
	}
	if len(page.Results) == 0 {
		return nil
	}
	return json.Unmarshal(page.Results, out)
}
