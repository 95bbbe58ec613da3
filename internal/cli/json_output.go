// json_output.go - JSON output for --json, so scripts can consume every
// command's result.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jeranaias/thicode-tui/internal/model"
)

// JSONResponse is the envelope every command prints in JSON mode.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data interface{} `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is the ISO8601 timestamp when the response was generated
	Timestamp string `json:"timestamp"`

	// Command is the command that was executed
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Error:     nil,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a new error JSON response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := userMessage(err)
	return &JSONResponse{
		Success:   false,
		Data:      nil,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print outputs the JSON response to stdout.
func (r *JSONResponse) Print() error {
	return r.PrintTo(os.Stdout)
}

// PrintTo outputs the JSON response to w.
func (r *JSONResponse) PrintTo(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// String returns the JSON response as a string.
func (r *JSONResponse) String() string {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":"failed to marshal response: %s","timestamp":"%s"}`,
			err.Error(), time.Now().UTC().Format(time.RFC3339))
	}
	return string(data)
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// UserData is returned by whoami and login.
type UserData struct {
	ID          model.ID          `json:"id"`
	Username    string            `json:"username"`
	Email       string            `json:"email,omitempty"`
	DateJoined  *time.Time        `json:"date_joined,omitempty"`
	Preferences model.Preferences `json:"preferences"`
	Server      string            `json:"server"`
}

func newUserData(u *model.User, server string) UserData {
	d := UserData{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Preferences: u.Preferences,
		Server:      server,
	}
	if !u.DateJoined.IsZero() {
		joined := u.DateJoined
		d.DateJoined = &joined
	}
	return d
}

// ConversationData is one conversation in list and show output.
type ConversationData struct {
	ID           model.ID       `json:"id"`
	Title        string         `json:"title"`
	Status       string         `json:"status"`
	MessageCount int            `json:"message_count"`
	AIModel      string         `json:"ai_model,omitempty"`
	UpdatedAt    *time.Time     `json:"updated_at,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Messages     []MessageData  `json:"messages,omitempty"`
}

func newConversationData(c *model.Conversation, msgs []*model.Message) ConversationData {
	d := ConversationData{
		ID:           c.ID,
		Title:        c.DisplayTitle(),
		Status:       string(c.Status),
		MessageCount: c.MessageCount,
		AIModel:      c.AIModel,
		Metadata:     c.Metadata,
	}
	if !c.UpdatedAt.IsZero() {
		updated := c.UpdatedAt
		d.UpdatedAt = &updated
	}
	for _, m := range msgs {
		d.Messages = append(d.Messages, newMessageData(m))
	}
	return d
}

// MessageData is one message in show, ask and chat output.
type MessageData struct {
	ID        model.ID   `json:"id"`
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Status    string     `json:"status,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

func newMessageData(m *model.Message) MessageData {
	d := MessageData{
		ID:      m.ID,
		Role:    string(m.Role),
		Content: m.Content,
		Status:  string(m.Status),
	}
	if !m.CreatedAt.IsZero() {
		created := m.CreatedAt
		d.CreatedAt = &created
	}
	return d
}

// AskData is returned by the ask command.
type AskData struct {
	ConversationID model.ID    `json:"conversation_id"`
	Message        MessageData `json:"message"`
	Reply          MessageData `json:"reply"`
	State          string      `json:"state"`
	DurationMs     int64       `json:"duration_ms"`
}

// SearchData is one hit of cache search.
type SearchData struct {
	ConversationID model.ID   `json:"conversation_id"`
	Title          string     `json:"title"`
	MessageID      model.ID   `json:"message_id"`
	Role           string     `json:"role"`
	Snippet        string     `json:"snippet"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
}

// CacheStatsData is returned by cache list.
type CacheStatsData struct {
	Path          string             `json:"path"`
	Conversations int                `json:"conversations"`
	Messages      int                `json:"messages"`
	Items         []ConversationData `json:"items"`
}

// ThemeData is returned by the theme command.
type ThemeData struct {
	Mode string `json:"mode"`
	Dark bool   `json:"dark"`
}

// VersionData represents the data returned by the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
}
