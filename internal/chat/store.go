// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/thicode-tui/internal/api"
	"github.com/jeranaias/thicode-tui/internal/logger"
	"github.com/jeranaias/thicode-tui/internal/model"
)

// Default polling parameters for pending replies.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollTimeout  = 5 * time.Minute
)

// Backend is the subset of the API client the store needs.
type Backend interface {
	ListConversations(ctx context.Context) ([]*model.Conversation, error)
	GetConversation(ctx context.Context, id model.ID) (*model.Conversation, error)
	CreateConversation(ctx context.Context, message, aiModel string) (*model.Conversation, error)
	RenameConversation(ctx context.Context, id model.ID, title string) (*model.Conversation, error)
	DeleteConversation(ctx context.Context, id model.ID) error
	ArchiveConversation(ctx context.Context, id model.ID) (*model.Conversation, error)
	RestoreConversation(ctx context.Context, id model.ID) (*model.Conversation, error)
	UpdateMetadata(ctx context.Context, id model.ID, metadata map[string]any) (*model.Conversation, error)
	ListMessages(ctx context.Context, id model.ID) ([]*model.Message, error)
	SendMessage(ctx context.Context, id model.ID, req api.SendMessageRequest) (*api.SendMessageResponse, error)
	MessageStatus(ctx context.Context, conversationID, messageID model.ID) (*api.MessageStatusResponse, error)
}

// Cache receives a copy of everything fetched from the backend.
// *storage.Cache satisfies it.
type Cache interface {
	SaveConversations(ctx context.Context, convs []*model.Conversation) error
	SaveConversation(ctx context.Context, conv *model.Conversation) error
	SaveMessages(ctx context.Context, id model.ID, msgs []*model.Message) error
	DeleteConversation(ctx context.Context, id model.ID) error
}

// State is an immutable copy of the store contents.
type State struct {
	Conversations []*model.Conversation
	Current       *model.Conversation
	Messages      []*model.Message
	Loading       bool
	Typing        bool
	Error         string
}

// =============================================================================
// STORE
// =============================================================================

// Store holds the conversation list, the open conversation and its messages.
// All methods are safe for concurrent use; callers learn about changes
// through Subscribe.
type Store struct {
	backend Backend
	cache   Cache

	pollInterval time.Duration
	pollTimeout  time.Duration

	mu            sync.RWMutex
	conversations []*model.Conversation
	current       *model.Conversation
	messages      []*model.Message
	loading       int
	typing        int
	errMsg        string

	subMu sync.Mutex
	subs  map[chan struct{}]struct{}
}

// NewStore creates an empty store backed by backend.
func NewStore(backend Backend) *Store {
	return &Store{
		backend:      backend,
		pollInterval: DefaultPollInterval,
		pollTimeout:  DefaultPollTimeout,
		subs:         make(map[chan struct{}]struct{}),
	}
}

// WithCache mirrors fetched data into cache.
func (s *Store) WithCache(cache Cache) *Store {
	s.cache = cache
	return s
}

// WithPolling sets how often and how long pending replies are polled.
// Non-positive values keep the defaults.
func (s *Store) WithPolling(interval, timeout time.Duration) *Store {
	if interval > 0 {
		s.pollInterval = interval
	}
	if timeout > 0 {
		s.pollTimeout = timeout
	}
	return s
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// Subscribe returns a channel that receives a value after every change, and
// a function that stops delivery. Notifications coalesce: a slow reader sees
// at most one pending signal.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, ch)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// =============================================================================
// READ ACCESS
// =============================================================================

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{
		Conversations: cloneConversations(s.conversations),
		Current:       s.current.Clone(),
		Messages:      cloneMessages(s.messages),
		Loading:       s.loading > 0,
		Typing:        s.typing > 0,
		Error:         s.errMsg,
	}
	return st
}

// Active returns the conversations that are not archived.
func (s *Store) Active() []*model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	active, _ := model.SplitByStatus(s.conversations)
	return cloneConversations(active)
}

// Archived returns the archived conversations.
func (s *Store) Archived() []*model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, archived := model.SplitByStatus(s.conversations)
	return cloneConversations(archived)
}

// Error returns the last failure message, or "".
func (s *Store) Error() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

// ClearError dismisses the last failure message.
func (s *Store) ClearError() {
	s.mu.Lock()
	s.errMsg = ""
	s.mu.Unlock()
	s.notify()
}

// CloseConversation leaves the open conversation. The next message starts
// a new one.
func (s *Store) CloseConversation() {
	s.mu.Lock()
	s.current = nil
	s.messages = nil
	s.mu.Unlock()
	s.notify()
}

// Loading reports whether any operation is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading > 0
}

// Typing reports whether a reply is being waited for.
func (s *Store) Typing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.typing > 0
}

// =============================================================================
// OPERATIONS
// =============================================================================

// begin marks an operation as started and clears the previous error.
func (s *Store) begin() {
	s.mu.Lock()
	s.loading++
	s.errMsg = ""
	s.mu.Unlock()
	s.notify()
}

// end applies fn under the lock, records err for display and marks the
// operation finished.
func (s *Store) end(err error, fn func()) error {
	s.mu.Lock()
	s.loading--
	if err != nil {
		s.errMsg = api.Message(err)
	} else if fn != nil {
		fn()
	}
	s.mu.Unlock()
	s.notify()
	return err
}

// FetchConversations replaces the conversation list with the server's.
func (s *Store) FetchConversations(ctx context.Context) error {
	s.begin()
	convs, err := s.backend.ListConversations(ctx)
	var saved []*model.Conversation
	err = s.end(err, func() {
		s.conversations = convs
		saved = cloneConversations(convs)
	})
	if err == nil {
		s.persist(func(c Cache) error { return c.SaveConversations(ctx, saved) })
	}
	return err
}

// FetchConversation opens a conversation and loads its messages.
func (s *Store) FetchConversation(ctx context.Context, id model.ID) error {
	s.begin()
	conv, err := s.backend.GetConversation(ctx, id)
	if err == nil && conv == nil {
		err = errors.New("empty response from server")
	}
	if err == nil && conv.Messages == nil {
		conv.Messages, err = s.backend.ListMessages(ctx, id)
	}
	var saved *model.Conversation
	err = s.end(err, func() {
		s.current = conv
		s.messages = cloneMessages(conv.Messages)
		saved = conv.Clone()
	})
	if err == nil {
		s.persist(func(c Cache) error { return c.SaveConversation(ctx, saved) })
	}
	return err
}

// FetchMessages replaces the message list with the server's copy.
func (s *Store) FetchMessages(ctx context.Context, id model.ID) error {
	s.begin()
	msgs, err := s.backend.ListMessages(ctx, id)
	var saved []*model.Message
	err = s.end(err, func() {
		s.messages = msgs
		saved = cloneMessages(msgs)
	})
	if err == nil {
		s.persist(func(c Cache) error { return c.SaveMessages(ctx, id, saved) })
	}
	return err
}

// CreateConversation starts a conversation with message, adds it to the top
// of the list and opens it.
func (s *Store) CreateConversation(ctx context.Context, message, aiModel string) (*model.Conversation, error) {
	s.begin()
	conv, err := s.backend.CreateConversation(ctx, message, aiModel)
	var saved *model.Conversation
	err = s.end(err, func() {
		s.conversations = append([]*model.Conversation{conv}, s.conversations...)
		s.current = conv.Clone()
		s.messages = cloneMessages(conv.Messages)
		saved = conv.Clone()
	})
	if err != nil {
		return nil, err
	}
	s.persist(func(c Cache) error { return c.SaveConversation(ctx, saved) })
	return saved.Clone(), nil
}

// RenameConversation changes a conversation's title.
func (s *Store) RenameConversation(ctx context.Context, id model.ID, title string) error {
	s.begin()
	conv, err := s.backend.RenameConversation(ctx, id, title)
	return s.finishReplace(ctx, conv, err)
}

// DeleteConversation removes a conversation, closing it if it is open.
func (s *Store) DeleteConversation(ctx context.Context, id model.ID) error {
	s.begin()
	err := s.backend.DeleteConversation(ctx, id)
	err = s.end(err, func() {
		s.conversations = removeConversation(s.conversations, id)
		if s.current != nil && s.current.ID == id {
			s.current = nil
			s.messages = nil
		}
	})
	if err == nil {
		s.persist(func(c Cache) error { return c.DeleteConversation(ctx, id) })
	}
	return err
}

// ArchiveConversation moves a conversation to the archived list.
func (s *Store) ArchiveConversation(ctx context.Context, id model.ID) error {
	s.begin()
	conv, err := s.backend.ArchiveConversation(ctx, id)
	return s.finishReplace(ctx, conv, err)
}

// RestoreConversation moves an archived conversation back to the active list.
func (s *Store) RestoreConversation(ctx context.Context, id model.ID) error {
	s.begin()
	conv, err := s.backend.RestoreConversation(ctx, id)
	return s.finishReplace(ctx, conv, err)
}

// UpdateMetadata merges metadata into a conversation's metadata.
func (s *Store) UpdateMetadata(ctx context.Context, id model.ID, metadata map[string]any) error {
	s.begin()
	conv, err := s.backend.UpdateMetadata(ctx, id, metadata)
	return s.finishReplace(ctx, conv, err)
}

// finishReplace swaps the cached entry for the server's copy. The server's
// partial responses omit message_count, so a zero count keeps the cached
// one.
func (s *Store) finishReplace(ctx context.Context, conv *model.Conversation, err error) error {
	if err == nil && conv == nil {
		err = errors.New("empty response from server")
	}
	var saved *model.Conversation
	err = s.end(err, func() {
		for i, c := range s.conversations {
			if c.ID != conv.ID {
				continue
			}
			if conv.MessageCount == 0 {
				conv.MessageCount = c.MessageCount
			}
			s.conversations[i] = conv
		}
		if s.current != nil && s.current.ID == conv.ID {
			if conv.MessageCount == 0 {
				conv.MessageCount = s.current.MessageCount
			}
			updated := conv.Clone()
			updated.Messages = s.current.Messages
			s.current = updated
		}
		saved = conv.Clone()
		saved.Messages = nil
	})
	if err == nil {
		s.persist(func(c Cache) error { return c.SaveConversation(ctx, saved) })
	}
	return err
}

// persist writes to the cache, if any. Cache failures are logged only.
func (s *Store) persist(fn func(Cache) error) {
	if s.cache == nil {
		return
	}
	if err := fn(s.cache); err != nil {
		logger.L().Warn("failed to update offline cache", zap.Error(err))
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func cloneConversations(in []*model.Conversation) []*model.Conversation {
	if in == nil {
		return nil
	}
	out := make([]*model.Conversation, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}

func cloneMessages(in []*model.Message) []*model.Message {
	if in == nil {
		return nil
	}
	out := make([]*model.Message, len(in))
	for i, m := range in {
		out[i] = m.Clone()
	}
	return out
}

func removeConversation(in []*model.Conversation, id model.ID) []*model.Conversation {
	out := in[:0]
	for _, c := range in {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}
