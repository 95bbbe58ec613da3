// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/qmuntal/stateless"
	"go.uber.org/zap"

	"github.com/jeranaias/thicode-tui/internal/api"
	"github.com/jeranaias/thicode-tui/internal/logger"
	"github.com/jeranaias/thicode-tui/internal/model"
)

var (
	// ErrPollTimeout is returned when no reply arrives in time.
	ErrPollTimeout = errors.New("the assistant took too long to respond")

	// ErrSendFailed is matched by every *ReplyError.
	ErrSendFailed = errors.New("message failed")

	// ErrEmptyMessage is returned for blank input.
	ErrEmptyMessage = errors.New("message is empty")
)

// defaultReplyError is shown when the backend fails a reply without a reason.
const defaultReplyError = "an error occurred while generating the response"

// =============================================================================
// SEND FLOW STATE MACHINE
// =============================================================================

// SendState is the lifecycle position of one sent message.
type SendState string

const (
	StateSent      SendState = "sent"
	StatePending   SendState = "pending"
	StateCompleted SendState = "completed"
	StateError     SendState = "error"
	StateTimedOut  SendState = "timed_out"
)

// IsTerminal reports whether the flow has finished.
func (s SendState) IsTerminal() bool {
	return s == StateCompleted || s == StateError || s == StateTimedOut
}

type sendTrigger string

const (
	triggerPending  sendTrigger = "pending"
	triggerComplete sendTrigger = "complete"
	triggerFail     sendTrigger = "fail"
	triggerTimeout  sendTrigger = "timeout"
)

// SendFlow tracks one message from the POST to its reply.
//
//	sent ──pending──▶ pending ──complete──▶ completed
//	  │                  ├──fail─────────▶ error
//	  ├──complete/fail   └──timeout──────▶ timed_out
//
// Terminal states accept no triggers, so a reply is resolved exactly once.
type SendFlow struct {
	fsm  *stateless.StateMachine
	done chan struct{}

	mu          sync.Mutex
	tempID      string
	userMessage *model.Message
	reply       *model.Message
	err         error
}

// NewSendFlow creates a flow in the sent state for the optimistic message
// with the given temporary id.
func NewSendFlow(tempID string) *SendFlow {
	f := &SendFlow{
		fsm:    stateless.NewStateMachine(StateSent),
		done:   make(chan struct{}),
		tempID: tempID,
	}

	var once sync.Once
	finish := func(_ context.Context, _ ...any) error {
		once.Do(func() { close(f.done) })
		return nil
	}

	f.fsm.Configure(StateSent).
		Permit(triggerPending, StatePending).
		Permit(triggerComplete, StateCompleted).
		Permit(triggerFail, StateError)

	f.fsm.Configure(StatePending).
		Permit(triggerComplete, StateCompleted).
		Permit(triggerFail, StateError).
		Permit(triggerTimeout, StateTimedOut)

	f.fsm.Configure(StateCompleted).OnEntry(finish)
	f.fsm.Configure(StateError).OnEntry(finish)
	f.fsm.Configure(StateTimedOut).OnEntry(finish)

	f.fsm.OnTransitioned(func(_ context.Context, t stateless.Transition) {
		logger.L().Debug("send flow transition",
			zap.String("temp_id", tempID),
			zap.Any("from", t.Source),
			zap.Any("to", t.Destination))
	})
	return f
}

// State returns the current state.
func (f *SendFlow) State() SendState {
	return f.fsm.MustState().(SendState)
}

// TempID returns the id of the optimistic message.
func (f *SendFlow) TempID() string {
	return f.tempID
}

// Done is closed once the flow reaches a terminal state.
func (f *SendFlow) Done() <-chan struct{} {
	return f.done
}

// Err returns the failure of a flow that ended in error or timed_out.
func (f *SendFlow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Reply returns the assistant message of a completed flow.
func (f *SendFlow) Reply() *model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reply.Clone()
}

// UserMessage returns the server-confirmed user message, once known.
func (f *SendFlow) UserMessage() *model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userMessage.Clone()
}

func (f *SendFlow) confirm(msg *model.Message) error {
	f.mu.Lock()
	f.userMessage = msg
	f.mu.Unlock()
	return f.fire(triggerPending)
}

func (f *SendFlow) complete(reply *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.State().IsTerminal() {
		return fmt.Errorf("send flow already %s", f.State())
	}
	f.reply = reply
	return f.fsm.Fire(triggerComplete)
}

func (f *SendFlow) fail(err error) error {
	return f.failWith(triggerFail, err)
}

func (f *SendFlow) timeout() error {
	return f.failWith(triggerTimeout, ErrPollTimeout)
}

func (f *SendFlow) failWith(trigger sendTrigger, err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.State().IsTerminal() {
		return fmt.Errorf("send flow already %s", f.State())
	}
	f.err = err
	return f.fsm.Fire(trigger)
}

func (f *SendFlow) fire(trigger sendTrigger) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fsm.Fire(trigger)
}

// =============================================================================
// SEND HANDLE
// =============================================================================

// SendHandle lets a caller follow a message it sent.
type SendHandle struct {
	ConversationID model.ID
	flow           *SendFlow
}

// State returns the current state of the send.
func (h *SendHandle) State() SendState { return h.flow.State() }

// Done is closed when the send reaches a terminal state.
func (h *SendHandle) Done() <-chan struct{} { return h.flow.Done() }

// Err returns the failure, or nil.
func (h *SendHandle) Err() error { return h.flow.Err() }

// Reply returns the assistant's message once completed.
func (h *SendHandle) Reply() *model.Message { return h.flow.Reply() }

// UserMessage returns the message as stored by the server.
func (h *SendHandle) UserMessage() *model.Message { return h.flow.UserMessage() }

// Wait blocks until the send finishes or ctx is done, and returns the
// send's error.
func (h *SendHandle) Wait(ctx context.Context) error {
	select {
	case <-h.flow.Done():
		return h.flow.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// =============================================================================
// SEND / POLL
// =============================================================================

// SendMessage posts content to a conversation and follows it until the
// assistant replies.
//
// The message appears in the open conversation immediately under a temporary
// id. If the POST fails the temporary message is removed and the error is
// returned. Otherwise the returned handle tracks the reply: a pending reply
// is polled every poll interval until the reply arrives, the send fails,
// the poll timeout passes or ctx is cancelled. A completed status that
// carries no reply keeps polling.
func (s *Store) SendMessage(ctx context.Context, conversationID model.ID, content, aiModel string) (*SendHandle, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}

	temp := model.NewTempUserMessage(content)
	flow := NewSendFlow(temp.LocalID)

	s.mu.Lock()
	s.errMsg = ""
	s.typing++
	if s.isOpen(conversationID) {
		s.messages = append(s.messages, temp)
	}
	s.mu.Unlock()
	s.notify()

	resp, err := s.backend.SendMessage(ctx, conversationID, api.SendMessageRequest{
		Content: content,
		Model:   aiModel,
	})
	if err != nil {
		_ = flow.fail(err)
		s.mu.Lock()
		s.typing--
		s.removeTemp(flow.TempID(), content)
		s.errMsg = api.Message(err)
		s.mu.Unlock()
		s.notify()
		return nil, err
	}

	s.mu.Lock()
	if s.removeTemp(flow.TempID(), content) || s.isOpen(conversationID) {
		s.messages = append(s.messages, resp.UserMessage)
	}
	s.bumpCount(conversationID, 1)
	s.mu.Unlock()
	_ = flow.confirm(resp.UserMessage)

	handle := &SendHandle{ConversationID: conversationID, flow: flow}

	switch {
	case resp.Status == model.StatusCompleted && resp.AIMessage != nil:
		s.resolveReply(flow, conversationID, resp.AIMessage)
	case resp.Status == model.StatusError:
		s.resolveFailure(flow, replyError(resp.Error))
	default:
		go s.poll(ctx, flow, conversationID, resp.UserMessage.ID)
	}
	s.notify()
	return handle, nil
}

// poll asks for the reply status until a terminal status arrives, the poll
// timeout passes or ctx ends. A failed status request ends polling.
func (s *Store) poll(ctx context.Context, flow *SendFlow, conversationID, messageID model.ID) {
	pollCtx, cancel := context.WithTimeout(ctx, s.pollTimeout)
	defer cancel()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-pollCtx.Done():
			s.endPoll(ctx, flow)
			return
		case <-ticker.C:
		}

		st, err := s.backend.MessageStatus(pollCtx, conversationID, messageID)
		if err != nil {
			if pollCtx.Err() != nil {
				s.endPoll(ctx, flow)
				return
			}
			logger.L().Warn("reply status check failed",
				zap.Stringer("conversation", conversationID),
				zap.Stringer("message", messageID),
				zap.Error(err))
			s.resolveFailure(flow, err)
			return
		}

		// a completed status without the reply is not final yet
		switch {
		case st.Status == model.StatusCompleted && st.AIMessage != nil:
			s.resolveReply(flow, conversationID, st.AIMessage)
			return
		case st.Status == model.StatusError:
			s.resolveFailure(flow, replyError(st.Error))
			return
		}
	}
}

// endPoll settles a flow whose polling context ended: a cancelled parent is
// a failure, otherwise the poll timeout passed.
func (s *Store) endPoll(ctx context.Context, flow *SendFlow) {
	if err := ctx.Err(); err != nil {
		s.resolveFailure(flow, err)
		return
	}
	logger.L().Info("reply polling timed out", zap.String("temp_id", flow.TempID()))
	s.settle(flow.timeout(), ErrPollTimeout)
}

func (s *Store) resolveReply(flow *SendFlow, conversationID model.ID, reply *model.Message) {
	if err := flow.complete(reply); err != nil {
		return
	}
	s.mu.Lock()
	s.typing--
	if reply != nil {
		if s.isOpen(conversationID) {
			s.messages = append(s.messages, reply.Clone())
		}
		s.bumpCount(conversationID, 1)
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Store) resolveFailure(flow *SendFlow, err error) {
	s.settle(flow.fail(err), err)
}

// settle records a failed flow's error once the transition succeeded.
func (s *Store) settle(transitionErr, err error) {
	if transitionErr != nil {
		return
	}
	s.mu.Lock()
	s.typing--
	s.errMsg = api.Message(err)
	s.mu.Unlock()
	s.notify()
}

// isOpen reports whether new messages for id belong in the message list.
// With no conversation open, messages are shown as they arrive.
func (s *Store) isOpen(id model.ID) bool {
	return s.current == nil || s.current.ID == id
}

// removeTemp drops the optimistic message with tempID. The content check
// guards against removing a message that was reused for something else.
func (s *Store) removeTemp(tempID, content string) bool {
	for i, m := range s.messages {
		if m.LocalID == tempID && model.SameContent(m.Content, content) {
			s.messages = append(s.messages[:i:i], s.messages[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Store) bumpCount(id model.ID, n int) {
	for i, c := range s.conversations {
		if c.ID == id {
			cp := c.Clone()
			cp.MessageCount += n
			cp.UpdatedAt = time.Now()
			s.conversations[i] = cp
		}
	}
	if s.current != nil && s.current.ID == id {
		cp := s.current.Clone()
		cp.MessageCount += n
		s.current = cp
	}
}

// ReplyError is a reply the backend reported as failed. It matches
// ErrSendFailed with errors.Is.
type ReplyError struct {
	Message string
}

func (e *ReplyError) Error() string { return e.Message }

func (e *ReplyError) Unwrap() error { return ErrSendFailed }

func replyError(msg string) error {
	if strings.TrimSpace(msg) == "" {
		msg = defaultReplyError
	}
	return &ReplyError{Message: msg}
}
