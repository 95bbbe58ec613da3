// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/thicode-tui/internal/api"
	"github.com/jeranaias/thicode-tui/internal/model"
)

func waitHandle(t *testing.T, h *SendHandle) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := h.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "send never finished")
	return err
}

func openStore(t *testing.T) (*Store, *fakeBackend) {
	t.Helper()
	s, be := seededStore(t)
	require.NoError(t, s.FetchConversation(context.Background(), 1))
	return s, be
}

// =============================================================================
// SEND FLOW TESTS
// =============================================================================

func TestSendFlow_Transitions(t *testing.T) {
	f := NewSendFlow("temp-1")
	assert.Equal(t, StateSent, f.State())

	require.NoError(t, f.confirm(&model.Message{ID: 1}))
	assert.Equal(t, StatePending, f.State())

	require.NoError(t, f.complete(&model.Message{ID: 2, Content: "done"}))
	assert.Equal(t, StateCompleted, f.State())
	assert.Equal(t, "done", f.Reply().Content)

	select {
	case <-f.Done():
	default:
		t.Fatal("done not closed")
	}

	// terminal states accept nothing
	assert.Error(t, f.complete(&model.Message{}))
	assert.Error(t, f.timeout())
	assert.Error(t, f.fail(errors.New("late")))
	assert.Equal(t, StateCompleted, f.State())
	assert.NoError(t, f.Err())
}

func TestSendFlow_TimeoutOnlyFromPending(t *testing.T) {
	f := NewSendFlow("temp-2")
	assert.Error(t, f.timeout(), "cannot time out before the server accepted the message")

	require.NoError(t, f.confirm(&model.Message{ID: 1}))
	require.NoError(t, f.timeout())
	assert.Equal(t, StateTimedOut, f.State())
	assert.ErrorIs(t, f.Err(), ErrPollTimeout)
}

func TestSendState_IsTerminal(t *testing.T) {
	assert.False(t, StateSent.IsTerminal())
	assert.False(t, StatePending.IsTerminal())
	assert.True(t, StateCompleted.IsTerminal())
	assert.True(t, StateError.IsTerminal())
	assert.True(t, StateTimedOut.IsTerminal())
}

// =============================================================================
// SEND MESSAGE TESTS
// =============================================================================

func TestSendMessage_CompletedImmediately(t *testing.T) {
	s, be := openStore(t)
	be.sendFn = func(id model.ID, req api.SendMessageRequest) (*api.SendMessageResponse, error) {
		return &api.SendMessageResponse{
			UserMessage: &model.Message{ID: 20, Role: model.RoleUser, Content: req.Content},
			Status:      model.StatusCompleted,
			AIMessage:   &model.Message{ID: 21, Role: model.RoleAssistant, Content: "instant"},
		}, nil
	}

	h, err := s.SendMessage(context.Background(), 1, "quick question", "mistral")
	require.NoError(t, err)
	require.NoError(t, waitHandle(t, h))
	assert.Equal(t, StateCompleted, h.State())
	assert.Equal(t, "instant", h.Reply().Content)
	assert.Zero(t, be.calls(), "no polling")

	st := s.Snapshot()
	require.Len(t, st.Messages, 4)
	assert.Equal(t, model.ID(20), st.Messages[2].ID)
	assert.Equal(t, model.ID(21), st.Messages[3].ID)
	assert.False(t, st.Typing)
	assert.Equal(t, 6, st.Current.MessageCount)
}

func TestSendMessage_TempMessageShownThenReplaced(t *testing.T) {
	s, be := openStore(t)
	release := make(chan struct{})
	var during State
	be.sendFn = func(id model.ID, req api.SendMessageRequest) (*api.SendMessageResponse, error) {
		during = s.Snapshot()
		<-release
		return &api.SendMessageResponse{
			UserMessage: &model.Message{ID: 30, Role: model.RoleUser, Content: req.Content},
			Status:      model.StatusCompleted,
		}, nil
	}

	go close(release)
	_, err := s.SendMessage(context.Background(), 1, "optimistic", "")
	require.NoError(t, err)

	require.Len(t, during.Messages, 3)
	assert.True(t, during.Messages[2].IsTemp())
	assert.True(t, during.Typing)

	st := s.Snapshot()
	require.Len(t, st.Messages, 3)
	for _, m := range st.Messages {
		assert.False(t, m.IsTemp(), "temp message removed")
	}
	assert.Equal(t, model.ID(30), st.Messages[2].ID)
}

func TestSendMessage_PollsUntilCompleted(t *testing.T) {
	s, be := openStore(t)
	be.statusFn = func(n int) (*api.MessageStatusResponse, error) {
		if n < 3 {
			return &api.MessageStatusResponse{Status: model.StatusPending}, nil
		}
		return &api.MessageStatusResponse{
			Status:    model.StatusCompleted,
			AIMessage: &model.Message{ID: 101, Role: model.RoleAssistant, Content: "after a while"},
		}, nil
	}

	h, err := s.SendMessage(context.Background(), 1, "slow question", "")
	require.NoError(t, err)
	assert.Equal(t, StatePending, h.State())
	assert.True(t, s.Typing())

	require.NoError(t, waitHandle(t, h))
	assert.Equal(t, StateCompleted, h.State())
	assert.Equal(t, 3, be.calls())

	// polling stopped at the terminal status
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 3, be.calls())

	st := s.Snapshot()
	assert.Equal(t, "after a while", st.Messages[len(st.Messages)-1].Content)
	assert.False(t, st.Typing)
	assert.Empty(t, st.Error)
}

func TestSendMessage_CompletedWithoutReplyKeepsPolling(t *testing.T) {
	s, be := openStore(t)
	be.sendFn = func(id model.ID, req api.SendMessageRequest) (*api.SendMessageResponse, error) {
		return &api.SendMessageResponse{
			UserMessage: &model.Message{ID: 40, Role: model.RoleUser, Content: req.Content},
			Status:      model.StatusCompleted,
		}, nil
	}
	be.statusFn = func(n int) (*api.MessageStatusResponse, error) {
		if n < 2 {
			return &api.MessageStatusResponse{Status: model.StatusCompleted}, nil
		}
		return &api.MessageStatusResponse{
			Status:    model.StatusCompleted,
			AIMessage: &model.Message{ID: 41, Role: model.RoleAssistant, Content: "late reply"},
		}, nil
	}

	h, err := s.SendMessage(context.Background(), 1, "q", "")
	require.NoError(t, err)
	assert.Equal(t, StatePending, h.State(), "no reply yet")

	require.NoError(t, waitHandle(t, h))
	assert.Equal(t, StateCompleted, h.State())
	assert.Equal(t, 2, be.calls())
	require.NotNil(t, h.Reply())
	assert.Equal(t, "late reply", h.Reply().Content)

	st := s.Snapshot()
	assert.Equal(t, "late reply", st.Messages[len(st.Messages)-1].Content)
	assert.False(t, st.Typing)
}

func TestSendMessage_ReplyError(t *testing.T) {
	s, be := openStore(t)
	be.statusFn = func(n int) (*api.MessageStatusResponse, error) {
		return &api.MessageStatusResponse{Status: model.StatusError, Error: "model overloaded"}, nil
	}

	h, err := s.SendMessage(context.Background(), 1, "hello", "")
	require.NoError(t, err)
	err = waitHandle(t, h)
	assert.ErrorIs(t, err, ErrSendFailed)
	assert.Equal(t, StateError, h.State())
	assert.Equal(t, "model overloaded", s.Error())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, be.calls())
}

func TestSendMessage_ReplyErrorWithoutReason(t *testing.T) {
	s, be := openStore(t)
	be.sendFn = func(id model.ID, req api.SendMessageRequest) (*api.SendMessageResponse, error) {
		return &api.SendMessageResponse{
			UserMessage: &model.Message{ID: 40, Content: req.Content},
			Status:      model.StatusError,
		}, nil
	}

	h, err := s.SendMessage(context.Background(), 1, "hello", "")
	require.NoError(t, err)
	assert.ErrorIs(t, waitHandle(t, h), ErrSendFailed)
	assert.Equal(t, defaultReplyError, s.Error())
}

func TestSendMessage_Timeout(t *testing.T) {
	s, be := openStore(t)
	s.WithPolling(10*time.Millisecond, 60*time.Millisecond)

	h, err := s.SendMessage(context.Background(), 1, "never answered", "")
	require.NoError(t, err)

	err = waitHandle(t, h)
	assert.ErrorIs(t, err, ErrPollTimeout)
	assert.Equal(t, StateTimedOut, h.State())
	assert.Equal(t, ErrPollTimeout.Error(), s.Error())
	assert.False(t, s.Typing())

	calls := be.calls()
	assert.Greater(t, calls, 0)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, be.calls(), "polling stopped after the timeout")
}

func TestSendMessage_PollRequestFailureIsTerminal(t *testing.T) {
	s, be := openStore(t)
	be.statusFn = func(n int) (*api.MessageStatusResponse, error) {
		return nil, &api.TransportError{Err: errors.New("connection reset")}
	}

	h, err := s.SendMessage(context.Background(), 1, "hello", "")
	require.NoError(t, err)
	err = waitHandle(t, h)
	var tErr *api.TransportError
	assert.True(t, errors.As(err, &tErr))
	assert.Equal(t, StateError, h.State())
	assert.Equal(t, 1, be.calls())
}

func TestSendMessage_CancelStopsPolling(t *testing.T) {
	s, be := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	h, err := s.SendMessage(ctx, 1, "hello", "")
	require.NoError(t, err)
	time.Sleep(25 * time.Millisecond)
	cancel()

	err = waitHandle(t, h)
	assert.ErrorIs(t, err, context.Canceled)
	calls := be.calls()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, calls, be.calls())
}

func TestSendMessage_PostFailureRemovesTemp(t *testing.T) {
	s, be := openStore(t)
	be.sendFn = func(id model.ID, req api.SendMessageRequest) (*api.SendMessageResponse, error) {
		return nil, &api.APIError{Status: 400, Message: "Conversation is archived"}
	}

	h, err := s.SendMessage(context.Background(), 1, "hello", "")
	require.Error(t, err)
	assert.Nil(t, h)

	st := s.Snapshot()
	assert.Len(t, st.Messages, 2)
	assert.Equal(t, "Conversation is archived", st.Error)
	assert.False(t, st.Typing)
}

func TestSendMessage_Empty(t *testing.T) {
	s, _ := openStore(t)
	_, err := s.SendMessage(context.Background(), 1, "  \n", "")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Len(t, s.Snapshot().Messages, 2)
}

func TestSendMessage_OtherConversationNotShown(t *testing.T) {
	s, be := openStore(t)
	be.sendFn = func(id model.ID, req api.SendMessageRequest) (*api.SendMessageResponse, error) {
		return &api.SendMessageResponse{
			UserMessage: &model.Message{ID: 50, Content: req.Content},
			Status:      model.StatusCompleted,
			AIMessage:   &model.Message{ID: 51, Content: "reply"},
		}, nil
	}

	h, err := s.SendMessage(context.Background(), 2, "elsewhere", "")
	require.NoError(t, err)
	require.NoError(t, waitHandle(t, h))

	st := s.Snapshot()
	assert.Len(t, st.Messages, 2, "open conversation unchanged")
	for _, c := range st.Conversations {
		if c.ID == 2 {
			assert.Equal(t, 4, c.MessageCount)
		}
	}
}
