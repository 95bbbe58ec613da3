// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/thicode-tui/internal/api"
	"github.com/jeranaias/thicode-tui/internal/model"
	"github.com/jeranaias/thicode-tui/internal/storage"
)

// fakeBackend serves conversations from memory. Hooks override single calls.
type fakeBackend struct {
	mu    sync.Mutex
	convs map[model.ID]*model.Conversation
	msgs  map[model.ID][]*model.Message
	err   error

	sendFn   func(id model.ID, req api.SendMessageRequest) (*api.SendMessageResponse, error)
	statusFn func(n int) (*api.MessageStatusResponse, error)

	statusCalls int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		convs: make(map[model.ID]*model.Conversation),
		msgs:  make(map[model.ID][]*model.Message),
	}
}

func (f *fakeBackend) add(c *model.Conversation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.convs[c.ID] = c
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}

func (f *fakeBackend) ListConversations(ctx context.Context) ([]*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []*model.Conversation
	for _, id := range []model.ID{1, 2, 3, 4, 5} {
		if c, ok := f.convs[id]; ok {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func (f *fakeBackend) GetConversation(ctx context.Context, id model.ID) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[id]
	if !ok {
		return nil, &api.APIError{Status: http.StatusNotFound, Message: "Not found."}
	}
	return c.Clone(), nil
}

func (f *fakeBackend) CreateConversation(ctx context.Context, message, aiModel string) (*model.Conversation, error) {
	c := &model.Conversation{ID: 5, Title: message, Status: model.ConversationActive, AIModel: aiModel, MessageCount: 1}
	f.add(c)
	return c.Clone(), nil
}

func (f *fakeBackend) RenameConversation(ctx context.Context, id model.ID, title string) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.convs[id]
	c.Title = title
	return c.Clone(), nil
}

func (f *fakeBackend) DeleteConversation(ctx context.Context, id model.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.convs, id)
	return nil
}

// ArchiveConversation answers like the backend's partial serializer: no
// message_count.
func (f *fakeBackend) ArchiveConversation(ctx context.Context, id model.ID) (*model.Conversation, error) {
	now := time.Now()
	return &model.Conversation{ID: id, Title: f.convs[id].Title, Status: model.ConversationArchived, ArchivedAt: &now}, nil
}

func (f *fakeBackend) RestoreConversation(ctx context.Context, id model.ID) (*model.Conversation, error) {
	return &model.Conversation{ID: id, Title: f.convs[id].Title, Status: model.ConversationActive}, nil
}

func (f *fakeBackend) UpdateMetadata(ctx context.Context, id model.ID, metadata map[string]any) (*model.Conversation, error) {
	c := f.convs[id].Clone()
	c.Metadata = metadata
	return c, nil
}

func (f *fakeBackend) ListMessages(ctx context.Context, id model.ID) ([]*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.msgs[id], nil
}

func (f *fakeBackend) SendMessage(ctx context.Context, id model.ID, req api.SendMessageRequest) (*api.SendMessageResponse, error) {
	if f.sendFn != nil {
		return f.sendFn(id, req)
	}
	return &api.SendMessageResponse{
		UserMessage: &model.Message{ID: 100, Role: model.RoleUser, Content: req.Content},
		Status:      model.StatusPending,
	}, nil
}

func (f *fakeBackend) MessageStatus(ctx context.Context, conversationID, messageID model.ID) (*api.MessageStatusResponse, error) {
	f.mu.Lock()
	f.statusCalls++
	n := f.statusCalls
	f.mu.Unlock()
	if f.statusFn != nil {
		return f.statusFn(n)
	}
	return &api.MessageStatusResponse{Status: model.StatusPending}, nil
}

func seededStore(t *testing.T) (*Store, *fakeBackend) {
	t.Helper()
	be := newFakeBackend()
	be.add(&model.Conversation{ID: 1, Title: "first", Status: model.ConversationActive, MessageCount: 4})
	be.add(&model.Conversation{ID: 2, Title: "second", Status: model.ConversationActive, MessageCount: 2})
	be.add(&model.Conversation{ID: 3, Title: "old", Status: model.ConversationArchived, MessageCount: 9})
	be.msgs[1] = []*model.Message{
		{ID: 10, Role: model.RoleUser, Content: "hi"},
		{ID: 11, Role: model.RoleAssistant, Content: "hello"},
	}
	s := NewStore(be).WithPolling(10*time.Millisecond, 500*time.Millisecond)
	require.NoError(t, s.FetchConversations(context.Background()))
	return s, be
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestFetchConversations(t *testing.T) {
	s, _ := seededStore(t)
	assert.Len(t, s.Active(), 2)
	assert.Len(t, s.Archived(), 1)
	assert.False(t, s.Loading())
}

func TestFetchConversation_LoadsMessages(t *testing.T) {
	s, _ := seededStore(t)
	require.NoError(t, s.FetchConversation(context.Background(), 1))

	st := s.Snapshot()
	require.NotNil(t, st.Current)
	assert.Equal(t, model.ID(1), st.Current.ID)
	require.Len(t, st.Messages, 2)
	assert.Equal(t, "hello", st.Messages[1].Content)
}

func TestFetchConversation_ErrorRecorded(t *testing.T) {
	s, _ := seededStore(t)
	err := s.FetchConversation(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, api.IsNotFound(err))
	assert.Equal(t, "Not found.", s.Error())

	s.ClearError()
	assert.Empty(t, s.Error())
}

// emptyBackend answers GetConversation with neither a conversation nor an
// error.
type emptyBackend struct {
	*fakeBackend
}

func (emptyBackend) GetConversation(ctx context.Context, id model.ID) (*model.Conversation, error) {
	return nil, nil
}

func TestFetchConversation_EmptyResponse(t *testing.T) {
	s := NewStore(emptyBackend{newFakeBackend()})
	err := s.FetchConversation(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, "empty response from server", s.Error())
	assert.Nil(t, s.Snapshot().Current)
	assert.False(t, s.Loading())
}

func TestOperationClearsPreviousError(t *testing.T) {
	s, be := seededStore(t)
	be.err = errors.New("boom")
	require.Error(t, s.FetchConversations(context.Background()))
	assert.Equal(t, "boom", s.Error())

	be.err = nil
	require.NoError(t, s.FetchConversations(context.Background()))
	assert.Empty(t, s.Error())
}

func TestCreateConversation_PrependsAndOpens(t *testing.T) {
	s, _ := seededStore(t)
	conv, err := s.CreateConversation(context.Background(), "new topic", "mistral")
	require.NoError(t, err)

	st := s.Snapshot()
	assert.Equal(t, conv.ID, st.Conversations[0].ID)
	assert.Equal(t, conv.ID, st.Current.ID)
}

func TestRenameConversation_UpdatesListAndCurrent(t *testing.T) {
	s, _ := seededStore(t)
	require.NoError(t, s.FetchConversation(context.Background(), 1))
	require.NoError(t, s.RenameConversation(context.Background(), 1, "renamed"))

	st := s.Snapshot()
	assert.Equal(t, "renamed", st.Conversations[0].Title)
	assert.Equal(t, "renamed", st.Current.Title)
	assert.Len(t, st.Messages, 2, "messages untouched")
}

func TestDeleteConversation_ClosesCurrent(t *testing.T) {
	s, _ := seededStore(t)
	require.NoError(t, s.FetchConversation(context.Background(), 1))
	require.NoError(t, s.DeleteConversation(context.Background(), 1))

	st := s.Snapshot()
	assert.Nil(t, st.Current)
	assert.Empty(t, st.Messages)
	for _, c := range st.Conversations {
		assert.NotEqual(t, model.ID(1), c.ID)
	}
}

func TestCloseConversation(t *testing.T) {
	s, _ := seededStore(t)
	require.NoError(t, s.FetchConversation(context.Background(), 1))

	s.CloseConversation()
	st := s.Snapshot()
	assert.Nil(t, st.Current)
	assert.Empty(t, st.Messages)
	assert.Len(t, st.Conversations, 3, "list is kept")
}

func TestArchiveRestore_PreservesMessageCount(t *testing.T) {
	s, _ := seededStore(t)
	ctx := context.Background()

	require.NoError(t, s.ArchiveConversation(ctx, 1))
	archived := s.Archived()
	require.Len(t, archived, 2)
	var got *model.Conversation
	for _, c := range archived {
		if c.ID == 1 {
			got = c
		}
	}
	require.NotNil(t, got, "moved to archived list")
	assert.Equal(t, 4, got.MessageCount)
	assert.Len(t, s.Active(), 1)

	require.NoError(t, s.RestoreConversation(ctx, 1))
	assert.Len(t, s.Active(), 2)
	for _, c := range s.Active() {
		if c.ID == 1 {
			assert.Equal(t, 4, c.MessageCount)
		}
	}
}

func TestUpdateMetadata(t *testing.T) {
	s, _ := seededStore(t)
	require.NoError(t, s.UpdateMetadata(context.Background(), 2, map[string]any{"pinned": true}))
	for _, c := range s.Active() {
		if c.ID == 2 {
			assert.Equal(t, true, c.Metadata["pinned"])
		}
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	s, _ := seededStore(t)
	st := s.Snapshot()
	st.Conversations[0].Title = "mutated"
	assert.Equal(t, "first", s.Snapshot().Conversations[0].Title)
}

func TestSubscribe(t *testing.T) {
	s, _ := seededStore(t)
	ch, cancel := s.Subscribe()

	require.NoError(t, s.FetchConversations(context.Background()))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}

	cancel()
	cancel()
	// drain anything already queued, then expect silence
	select {
	case <-ch:
	default:
	}
	s.ClearError()
	select {
	case <-ch:
		t.Fatal("notified after cancel")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestStore_WritesCache(t *testing.T) {
	cache, err := storage.Open(filepath.Join(t.TempDir(), "cache.db"), "http://localhost:8000")
	require.NoError(t, err)
	defer cache.Close()

	be := newFakeBackend()
	be.add(&model.Conversation{ID: 1, Title: "cached", Status: model.ConversationActive})
	be.msgs[1] = []*model.Message{{ID: 1, Role: model.RoleUser, Content: "persist me"}}

	s := NewStore(be).WithCache(cache)
	ctx := context.Background()
	require.NoError(t, s.FetchConversations(ctx))
	require.NoError(t, s.FetchConversation(ctx, 1))

	conv, err := cache.LoadConversation(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "cached", conv.Title)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "persist me", conv.Messages[0].Content)

	require.NoError(t, s.DeleteConversation(ctx, 1))
	_, err = cache.LoadConversation(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrConversationNotFound)
}
