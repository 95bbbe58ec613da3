// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package offline

import (
	"context"
	"errors"
	"sync"

	"github.com/jeranaias/thicode-tui/internal/api"
	"github.com/jeranaias/thicode-tui/internal/model"
	"github.com/jeranaias/thicode-tui/internal/storage"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrOffline is returned for any operation that needs the backend.
	ErrOffline = errors.New("not available offline")

	// ErrNoCache is returned when offline mode is requested without a cache.
	ErrNoCache = errors.New("offline mode needs the conversation cache (storage.cache_enabled)")
)

// =============================================================================
// MODE MANAGEMENT
// =============================================================================

var (
	offlineMode      bool
	offlineModeMutex sync.RWMutex
)

// SetOfflineMode enables or disables offline mode globally.
func SetOfflineMode(enabled bool) {
	offlineModeMutex.Lock()
	defer offlineModeMutex.Unlock()
	offlineMode = enabled
}

// IsOfflineMode returns true if offline mode is currently enabled.
func IsOfflineMode() bool {
	offlineModeMutex.RLock()
	defer offlineModeMutex.RUnlock()
	return offlineMode
}

// CheckNetworkAllowed returns ErrOffline while offline mode is on.
func CheckNetworkAllowed() error {
	if IsOfflineMode() {
		return ErrOffline
	}
	return nil
}

// StatusBadge returns "OFFLINE" when offline, empty string otherwise.
func StatusBadge() string {
	if IsOfflineMode() {
		return "OFFLINE"
	}
	return ""
}

// =============================================================================
// CACHE BACKEND
// =============================================================================

// Backend serves conversations from the local cache. Reads work as they
// would online; anything that changes data returns ErrOffline.
type Backend struct {
	cache *storage.Cache
}

// NewBackend creates a read-only backend over cache.
func NewBackend(cache *storage.Cache) (*Backend, error) {
	if cache == nil {
		return nil, ErrNoCache
	}
	return &Backend{cache: cache}, nil
}

// ListConversations returns the cached conversation list.
func (b *Backend) ListConversations(ctx context.Context) ([]*model.Conversation, error) {
	return b.cache.ListConversations(ctx)
}

// GetConversation returns a cached conversation with its messages.
func (b *Backend) GetConversation(ctx context.Context, id model.ID) (*model.Conversation, error) {
	conv, err := b.cache.LoadConversation(ctx, id)
	if errors.Is(err, storage.ErrConversationNotFound) {
		return nil, &api.APIError{Status: 404, Message: "conversation not in the offline cache", Err: err}
	}
	return conv, err
}

// ListMessages returns the cached messages of a conversation.
func (b *Backend) ListMessages(ctx context.Context, id model.ID) ([]*model.Message, error) {
	return b.cache.LoadMessages(ctx, id)
}

func (b *Backend) CreateConversation(ctx context.Context, message, aiModel string) (*model.Conversation, error) {
	return nil, ErrOffline
}

func (b *Backend) RenameConversation(ctx context.Context, id model.ID, title string) (*model.Conversation, error) {
	return nil, ErrOffline
}

func (b *Backend) DeleteConversation(ctx context.Context, id model.ID) error {
	return ErrOffline
}

func (b *Backend) ArchiveConversation(ctx context.Context, id model.ID) (*model.Conversation, error) {
	return nil, ErrOffline
}

func (b *Backend) RestoreConversation(ctx context.Context, id model.ID) (*model.Conversation, error) {
	return nil, ErrOffline
}

func (b *Backend) UpdateMetadata(ctx context.Context, id model.ID, metadata map[string]any) (*model.Conversation, error) {
	return nil, ErrOffline
}

func (b *Backend) SendMessage(ctx context.Context, id model.ID, req api.SendMessageRequest) (*api.SendMessageResponse, error) {
	return nil, ErrOffline
}

func (b *Backend) MessageStatus(ctx context.Context, conversationID, messageID model.ID) (*api.MessageStatusResponse, error) {
	return nil, ErrOffline
}
