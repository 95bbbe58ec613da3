// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat holds the client-side conversation state.
//
// A Store keeps the conversation list, the open conversation and its
// messages, and mirrors what it fetches into an optional offline cache.
// Views read it through Snapshot and learn about changes from Subscribe.
//
// Sending a message is asynchronous on the backend: the POST returns the
// stored user message and, usually, a pending status. SendMessage follows
// the reply with a SendFlow state machine and a polling goroutine:
//
//	h, err := store.SendMessage(ctx, id, "hello", "mistral")
//	if err != nil {
//		return err
//	}
//	if err := h.Wait(ctx); err != nil {
//		return err // ErrPollTimeout, a *ReplyError, or a request failure
//	}
//	fmt.Println(h.Reply().Content)
package chat
