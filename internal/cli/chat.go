// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat in the plain terminal.
//
// Handles "thicode chat", a line based REPL for users who do not want the
// full screen interface.
//
// Examples:
//
//	thicode chat        Start a new conversation with the first message
//	thicode chat 12     Continue conversation #12
//
// Interactive Commands (during chat):
//
//	/help, /h           Show available commands
//	/new                Start a new conversation
//	/open ID            Switch to another conversation
//	/list, /ls          List active conversations
//	/title TITLE        Rename the current conversation
//	/quit, /q, /exit    Exit chat
//	Ctrl+C              Stop waiting for a reply (at the prompt: exit)
//	Ctrl+D              Exit chat
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/thicode-tui/internal/api"
	"github.com/jeranaias/thicode-tui/internal/config"
	"github.com/jeranaias/thicode-tui/internal/model"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI and loads the saved input history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	c.LoadHistory()
	return c
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory writes the history file, readable by the owner only.
func (c *ChatCLI) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// CHAT SESSION
// =============================================================================

// chatSession is the state of one REPL run.
type chatSession struct {
	app     *App
	conv    *model.Conversation // nil until the first message is sent
	printer *messagePrinter

	start   time.Time
	sent    int
	replies int
}

// HandleChat handles "thicode chat [ID]".
func HandleChat(ctx context.Context, args Args) error {
	if args.JSON {
		return NewValidationErrorWithExample("--json", "", "not supported by interactive chat", askUsage)
	}
	return withApp(args, func(a *App) error {
		if err := a.Online(); err != nil {
			return err
		}
		if err := a.RequireLogin(ctx); err != nil {
			return err
		}

		s := &chatSession{app: a, printer: newMessagePrinter(a), start: time.Now()}

		p := NewArgParser(args.Raw)
		if raw := p.Positional(0); raw != "" {
			id, err := parseID(raw, "thicode chat 12")
			if err != nil {
				return err
			}
			if err := s.open(ctx, id); err != nil {
				return err
			}
		}

		input := NewChatCLI()
		defer input.Close()

		if !args.Quiet {
			s.printWelcome()
		}

		for {
			line, err := input.ReadInput("thicode> ")
			if err != nil {
				// Ctrl+C at the prompt and Ctrl+D both end the session
				a.Printf("\n")
				s.printExitSummary()
				return nil
			}

			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			if strings.HasPrefix(line, "/") {
				keepGoing, err := s.handleSlashCommand(ctx, line)
				if err != nil {
					if api.IsUnauthorized(err) {
						return err
					}
					s.printError(err)
				}
				if !keepGoing {
					s.printExitSummary()
					return nil
				}
				continue
			}

			if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
				s.printExitSummary()
				return nil
			}

			if err := s.send(ctx, line); err != nil {
				if api.IsUnauthorized(err) {
					return err
				}
				s.printError(err)
			}
			// rotated cookies survive a crash mid session
			a.SaveSession()
		}
	})
}

// =============================================================================
// MESSAGE PROCESSING
// =============================================================================

// send posts content to the current conversation, creating one first if
// there is none yet, and prints the reply.
func (s *chatSession) send(ctx context.Context, content string) error {
	a := s.app
	s.sent++

	if s.conv == nil {
		conv, err := a.Store.CreateConversation(ctx, content, a.AIModel())
		if err != nil {
			return err
		}
		s.conv = conv
		a.Notef("%s\n", DimStyle.Render("Started conversation #"+conv.ID.String()))

		if len(conv.Messages) > 0 {
			// the backend posted the first message itself
			for _, m := range conv.Messages {
				if m.Role == model.RoleAssistant {
					s.printReply(m)
				}
			}
			return nil
		}
	}

	handle, err := sendAndWait(ctx, a, s.conv.ID, content)
	if handle != nil {
		if reply := handle.Reply(); reply != nil {
			s.printReply(reply)
		}
	}
	if errors.Is(err, context.Canceled) {
		a.Printf("%s\n", WarningStyle.Render("[Cancelled]"))
		return nil
	}
	return err
}

func (s *chatSession) printReply(m *model.Message) {
	s.replies++
	s.app.Printf("\n%s\n", s.printer.Format(m))
}

// open makes id the current conversation and shows its recent messages.
func (s *chatSession) open(ctx context.Context, id model.ID) error {
	if err := s.app.Store.FetchConversation(ctx, id); err != nil {
		return err
	}
	st := s.app.Store.Snapshot()
	s.conv = st.Current

	msgs := st.Messages
	if len(msgs) > chatBacklog {
		s.app.Printf("%s\n", DimStyle.Render(fmt.Sprintf("... %d earlier messages", len(msgs)-chatBacklog)))
		msgs = msgs[len(msgs)-chatBacklog:]
	}
	printConversation(s.app, st.Current, msgs)
	return nil
}

// chatBacklog is how many messages /open shows.
const chatBacklog = 6

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand runs a slash command. It returns false when the chat
// should end.
func (s *chatSession) handleSlashCommand(ctx context.Context, line string) (bool, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true, nil
	}
	command := strings.ToLower(parts[0])
	rest := strings.TrimSpace(strings.TrimPrefix(line, parts[0]))

	switch command {
	case "/help", "/h", "/?", "/":
		s.printHelp()
		return true, nil

	case "/quit", "/q", "/exit":
		return false, nil

	case "/new", "/n":
		s.conv = nil
		s.app.Store.CloseConversation()
		s.app.Printf("%s\n", DimStyle.Render("[Next message starts a new conversation]"))
		return true, nil

	case "/open", "/o":
		id, err := parseID(rest, "/open 12")
		if err != nil {
			return true, err
		}
		return true, s.open(ctx, id)

	case "/list", "/ls":
		if err := s.app.Store.FetchConversations(ctx); err != nil {
			return true, err
		}
		convs := s.app.Store.Active()
		if len(convs) == 0 {
			s.app.Printf("%s\n", DimStyle.Render("No conversations yet."))
			return true, nil
		}
		width, now := GetTerminalWidth(), time.Now()
		for _, c := range convs {
			s.app.Printf("%s\n", conversationLine(c, width, now))
		}
		return true, nil

	case "/title", "/rename":
		if s.conv == nil {
			return true, errors.New("no conversation yet, send a message first")
		}
		if rest == "" {
			return true, ErrMissingArgument("title", "/title Docker volumes")
		}
		if err := s.app.Store.FetchConversations(ctx); err != nil {
			return true, err
		}
		if err := s.app.Store.RenameConversation(ctx, s.conv.ID, rest); err != nil {
			return true, err
		}
		s.conv.Title = rest
		s.app.Printf("%s Renamed to %s\n", SuccessStyle.Render("OK"), rest)
		return true, nil

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
}

// =============================================================================
// OUTPUT
// =============================================================================

func (s *chatSession) printError(err error) {
	fmt.Fprintf(s.app.Args.ErrOut(), "%s %s\n", ErrorStyle.Render("[Error]"), userMessage(err))
}

func (s *chatSession) printWelcome() {
	a := s.app
	a.Printf("\n%s\n", TitleStyle.Render("thicode chat"))
	a.Printf("%s\n", RenderSeparator(30))
	a.Printf("%s\n", RenderLabel("Server", a.Client.BaseURL()))
	if name := a.Username(); name != "" {
		a.Printf("%s\n", RenderLabel("User", name))
	}
	if m := a.AIModel(); m != "" {
		a.Printf("%s\n", RenderLabel("Model", m))
	}
	if s.conv != nil {
		a.Printf("%s\n", RenderLabel("Conversation", "#"+s.conv.ID.String()+" "+s.conv.DisplayTitle()))
	}
	a.Printf("\n%s\n\n", DimStyle.Render("Type your message and press Enter. Commands: /help, /quit"))
}

func (s *chatSession) printHelp() {
	a := s.app
	a.Printf("\n%s\n", SectionStyle.Render("Available Commands"))
	a.Printf("%s\n\n", RenderSeparator(20))

	commands := []struct {
		cmd  string
		desc string
	}{
		{"/help, /h", "Show this help"},
		{"/new", "Start a new conversation"},
		{"/open ID", "Switch to conversation ID"},
		{"/list, /ls", "List active conversations"},
		{"/title TITLE", "Rename the current conversation"},
		{"/quit, /q", "Exit chat"},
	}
	for _, c := range commands {
		a.Printf("  %s  %s\n", InfoStyle.Render(fmt.Sprintf("%-15s", c.cmd)), DimStyle.Render(c.desc))
	}
	a.Printf("\n%s\n\n", DimStyle.Render("Tip: Ctrl+C stops waiting for a reply, Ctrl+D exits"))
}

func (s *chatSession) printExitSummary() {
	a := s.app
	if s.sent == 0 || a.Args.Quiet {
		a.Notef("%s\n", DimStyle.Render("Goodbye!"))
		return
	}
	a.Printf("\n%s\n", SectionStyle.Render("Session Summary"))
	a.Printf("%s\n", RenderSeparator(15))
	a.Printf("  %s\n", RenderLabel("Messages", fmt.Sprintf("%d sent, %d replies", s.sent, s.replies)))
	if s.conv != nil {
		a.Printf("  %s\n", RenderLabel("Conversation", "#"+s.conv.ID.String()))
	}
	a.Printf("  %s\n", RenderLabel("Duration", time.Since(s.start).Round(time.Second).String()))
	a.Printf("\n%s\n", DimStyle.Render("Goodbye!"))
}
