// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - Send one message and wait for the reply.
//
// Usage:
//
//	thicode ask ID "message"
//	echo "message" | thicode ask ID -
//
// The reply is polled for until it arrives, the poll timeout passes or the
// user presses Ctrl+C.

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/thicode-tui/internal/chat"
	"github.com/jeranaias/thicode-tui/internal/logger"
	"github.com/jeranaias/thicode-tui/internal/model"
	"github.com/jeranaias/thicode-tui/internal/ui/styles"
)

const askUsage = `thicode ask 12 "How do I list docker volumes?"`

// HandleAsk handles "thicode ask ID MESSAGE".
func HandleAsk(ctx context.Context, args Args) error {
	return withApp(args, func(a *App) error {
		if err := a.Online(); err != nil {
			return err
		}
		p := NewArgParser(args.Raw)
		id, err := parseID(p.Positional(0), askUsage)
		if err != nil {
			return err
		}

		content := JoinPositionalArgs(p, 1)
		if content == "-" {
			b, err := io.ReadAll(args.In())
			if err != nil {
				return WrapError(err, "failed to read message from stdin")
			}
			content = strings.TrimSpace(string(b))
		}
		if content == "" {
			return ErrMissingArgument("message", askUsage)
		}

		if err := a.RequireLogin(ctx); err != nil {
			return err
		}
		return sendAndPrint(ctx, a, id, content)
	})
}

// sendAndPrint sends content, waits for the reply and prints it.
func sendAndPrint(ctx context.Context, a *App, id model.ID, content string) error {
	start := time.Now()
	handle, err := sendAndWait(ctx, a, id, content)
	if err != nil {
		return err
	}

	reply := handle.Reply()
	data := AskData{
		ConversationID: id,
		State:          string(handle.State()),
		DurationMs:     time.Since(start).Milliseconds(),
	}
	if um := handle.UserMessage(); um != nil {
		data.Message = newMessageData(um)
	}
	if reply != nil {
		data.Reply = newMessageData(reply)
	}

	return a.Respond("ask", data, func() {
		if reply == nil {
			return
		}
		printer := newMessagePrinter(a)
		if a.Args.Quiet {
			a.Printf("%s\n", printer.body(reply))
			return
		}
		a.Printf("%s\n", printer.Format(reply))
	})
}

// sendAndWait posts a message and blocks until the reply settles. Ctrl+C
// stops waiting and ends the send in its error state.
func sendAndWait(ctx context.Context, a *App, id model.ID, content string) (*chat.SendHandle, error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	handle, err := a.Store.SendMessage(ctx, id, content, a.AIModel())
	if err != nil {
		return nil, err
	}

	waitDone := make(chan struct{})
	if !a.Args.Quiet && !a.Args.JSON && IsStdoutTTY() {
		go showProgress(a.Args.ErrOut(), handle, waitDone)
	}
	err = handle.Wait(ctx)
	close(waitDone)

	if err != nil {
		logger.L().Info("send did not complete",
			zap.Int64("conversation", int64(id)),
			zap.String("state", string(handle.State())),
			zap.Error(err))
		return handle, err
	}
	return handle, nil
}

// showProgress draws a spinner with the elapsed time on w until the reply
// arrives or done is closed.
func showProgress(w io.Writer, handle *chat.SendHandle, done <-chan struct{}) {
	spin := styles.DotsSpinner.Bubbles()
	ticker := time.NewTicker(spin.FPS)
	defer ticker.Stop()

	start := time.Now()
	frame := 0
	erase := func() { fmt.Fprint(w, "\r\033[K") }
	for {
		select {
		case <-done:
			erase()
			return
		case <-handle.Done():
			erase()
			return
		case <-ticker.C:
			frame = (frame + 1) % len(spin.Frames)
			fmt.Fprintf(w, "\r%s %s", InfoStyle.Render(spin.Frames[frame]),
				DimStyle.Render("Assistant is typing ("+formatDuration(time.Since(start))+")"))
		}
	}
}
