// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line interface parsing and execution.
//
// This test file covers argument parsing, exit code mapping and the small
// parsing helpers the commands share.
package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/thicode-tui/internal/api"
	"github.com/jeranaias/thicode-tui/internal/chat"
	"github.com/jeranaias/thicode-tui/internal/config"
	"github.com/jeranaias/thicode-tui/internal/model"
	"github.com/jeranaias/thicode-tui/internal/offline"
	"github.com/jeranaias/thicode-tui/internal/storage"
)

// =============================================================================
// ARG PARSER TESTS (args.go)
// =============================================================================

func TestArgParser_BasicParsing(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		bools    []string
		wantSub  string
		validate func(*testing.T, *ArgParser)
	}{
		{
			name:    "simple subcommand",
			args:    []string{"list"},
			wantSub: "list",
		},
		{
			name:    "subcommand with flag",
			args:    []string{"search", "docker", "--limit", "50"},
			wantSub: "search",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("limit") != "50" {
					t.Errorf("Flag(limit) = %q, want %q", p.Flag("limit"), "50")
				}
			},
		},
		{
			name:    "flag with equals",
			args:    []string{"login", "--username=alice"},
			wantSub: "login",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("username", "u") != "alice" {
					t.Errorf("Flag(username) = %q, want %q", p.Flag("username", "u"), "alice")
				}
			},
		},
		{
			name:    "short spelling",
			args:    []string{"-u", "bob"},
			wantSub: "",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("username", "u") != "bob" {
					t.Errorf("Flag(username, u) = %q, want %q", p.Flag("username", "u"), "bob")
				}
			},
		},
		{
			name:    "trailing boolean flag",
			args:    []string{"list", "--archived"},
			wantSub: "list",
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("archived") {
					t.Error("BoolFlag(archived) should be true")
				}
			},
		},
		{
			name:    "declared boolean does not consume a value",
			args:    []string{"delete", "-y", "42"},
			bools:   []string{"yes", "y"},
			wantSub: "delete",
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("yes", "y") {
					t.Error("BoolFlag(yes, y) should be true")
				}
				if p.Positional(1) != "42" {
					t.Errorf("Positional(1) = %q, want %q", p.Positional(1), "42")
				}
			},
		},
		{
			name:    "multiple positional args",
			args:    []string{"new", "how", "do", "I", "list", "volumes"},
			wantSub: "new",
			validate: func(t *testing.T, p *ArgParser) {
				if p.PositionalCount() != 6 {
					t.Errorf("PositionalCount() = %d, want 6", p.PositionalCount())
				}
				if got := JoinPositionalArgs(p, 1); got != "how do I list volumes" {
					t.Errorf("JoinPositionalArgs(1) = %q, want %q", got, "how do I list volumes")
				}
			},
		},
		{
			name:    "double dash ends flags",
			args:    []string{"new", "--", "--not-a-flag", "text"},
			wantSub: "new",
			validate: func(t *testing.T, p *ArgParser) {
				if p.HasFlag("not-a-flag") {
					t.Error("arguments after -- must stay positional")
				}
				if got := JoinPositionalArgs(p, 1); got != "--not-a-flag text" {
					t.Errorf("JoinPositionalArgs(1) = %q", got)
				}
			},
		},
		{
			name:    "single dash is positional",
			args:    []string{"12", "-"},
			wantSub: "12",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Positional(1) != "-" {
					t.Errorf("Positional(1) = %q, want %q", p.Positional(1), "-")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewArgParser(tt.args, tt.bools...)
			if parser.Subcommand() != tt.wantSub {
				t.Errorf("Subcommand() = %q, want %q", parser.Subcommand(), tt.wantSub)
			}
			if tt.validate != nil {
				tt.validate(t, parser)
			}
		})
	}
}

func TestArgParser_FlagIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		defaultVal int
		want       int
	}{
		{"flag present", []string{"search", "--limit", "10"}, 20, 10},
		{"flag missing uses default", []string{"search"}, 20, 20},
		{"invalid int uses default", []string{"search", "--limit", "abc"}, 20, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewArgParser(tt.args).FlagIntOrDefault("limit", tt.defaultVal)
			if got != tt.want {
				t.Errorf("FlagIntOrDefault(limit, %d) = %d, want %d", tt.defaultVal, got, tt.want)
			}
		})
	}
}

func TestArgParser_HasFlag(t *testing.T) {
	parser := NewArgParser([]string{"cmd", "--all", "--limit", "50"})

	if !parser.HasFlag("all") {
		t.Error("HasFlag(all) should be true")
	}
	if !parser.HasFlag("--limit") {
		t.Error("HasFlag(--limit) should be true")
	}
	if parser.HasFlag("nonexistent") {
		t.Error("HasFlag(nonexistent) should be false")
	}
}

func TestParseBoolString(t *testing.T) {
	trueValues := []string{"true", "TRUE", "yes", "y", "Y", "1", "on"}
	falseValues := []string{"false", "FALSE", "no", "n", "N", "0", "off"}

	for _, v := range trueValues {
		got, err := ParseBoolString(v)
		if err != nil || !got {
			t.Errorf("ParseBoolString(%q) = %v, %v; want true", v, got, err)
		}
	}
	for _, v := range falseValues {
		got, err := ParseBoolString(v)
		if err != nil || got {
			t.Errorf("ParseBoolString(%q) = %v, %v; want false", v, got, err)
		}
	}
	if _, err := ParseBoolString("maybe"); err == nil {
		t.Error("ParseBoolString(maybe) should error")
	}
}

func TestArgParser_EmptyArgs(t *testing.T) {
	parser := NewArgParser([]string{})
	if parser.Subcommand() != "" {
		t.Errorf("Subcommand() = %q, want empty", parser.Subcommand())
	}
	if parser.PositionalCount() != 0 {
		t.Errorf("PositionalCount() = %d, want 0", parser.PositionalCount())
	}
	if got := parser.PositionalFrom(3); len(got) != 0 {
		t.Errorf("PositionalFrom(3) = %v, want empty", got)
	}
}

func TestArgParser_FlagOrDefault(t *testing.T) {
	parser := NewArgParser([]string{"cmd", "--present", "value"})

	if parser.FlagOrDefault("present", "default") != "value" {
		t.Error("FlagOrDefault should return actual value when present")
	}
	if parser.FlagOrDefault("missing", "default") != "default" {
		t.Error("FlagOrDefault should return default when missing")
	}
}

// =============================================================================
// COMMAND PARSING TESTS (cli.go)
// =============================================================================

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name        string
		argv        []string
		wantCommand Command
		validate    func(*testing.T, Args)
	}{
		{
			name:        "no arguments starts the TUI",
			argv:        nil,
			wantCommand: CmdTUI,
		},
		{
			name:        "ask with message",
			argv:        []string{"ask", "12", "How", "are", "you?"},
			wantCommand: CmdAsk,
			validate: func(t *testing.T, a Args) {
				assert.Equal(t, []string{"12", "How", "are", "you?"}, a.Raw)
				assert.Equal(t, "12", a.Subcommand)
			},
		},
		{
			name:        "global flags before the command",
			argv:        []string{"--json", "-q", "--url", "http://chat.local", "conversations", "list"},
			wantCommand: CmdConversations,
			validate: func(t *testing.T, a Args) {
				assert.True(t, a.JSON)
				assert.True(t, a.Quiet)
				assert.Equal(t, "http://chat.local", a.URL)
				assert.Equal(t, []string{"list"}, a.Raw)
			},
		},
		{
			name:        "global flags after the command",
			argv:        []string{"ask", "3", "--model=llama3", "hi", "--offline"},
			wantCommand: CmdAsk,
			validate: func(t *testing.T, a Args) {
				assert.Equal(t, "llama3", a.Model)
				assert.True(t, a.Offline)
				assert.Equal(t, []string{"3", "hi"}, a.Raw)
			},
		},
		{
			name:        "double dash protects the message",
			argv:        []string{"ask", "3", "--", "--json", "is a flag"},
			wantCommand: CmdAsk,
			validate: func(t *testing.T, a Args) {
				assert.False(t, a.JSON)
				assert.Equal(t, []string{"3", "--", "--json", "is a flag"}, a.Raw)
			},
		},
		{name: "conversation alias", argv: []string{"conv"}, wantCommand: CmdConversations},
		{name: "signup alias", argv: []string{"signup"}, wantCommand: CmdRegister},
		{name: "me alias", argv: []string{"me"}, wantCommand: CmdWhoami},
		{name: "reset alias", argv: []string{"reset", "request", "a@b.c"}, wantCommand: CmdResetPassword},
		{name: "prefs alias", argv: []string{"prefs"}, wantCommand: CmdSettings},
		{name: "chat", argv: []string{"chat", "7"}, wantCommand: CmdChat},
		{name: "theme", argv: []string{"theme", "toggle"}, wantCommand: CmdTheme},
		{name: "cache", argv: []string{"cache", "search", "docker"}, wantCommand: CmdCache},
		{name: "version flag", argv: []string{"--version"}, wantCommand: CmdVersion},
		{name: "help flag", argv: []string{"-h"}, wantCommand: CmdHelp},
		{
			name:        "unknown command",
			argv:        []string{"convresations"},
			wantCommand: CmdUnknown,
			validate: func(t *testing.T, a Args) {
				assert.Equal(t, "convresations", a.Name)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args := ParseArgs(tt.argv)
			assert.Equal(t, tt.wantCommand, cmd, "command %s", cmd)
			if tt.validate != nil {
				tt.validate(t, args)
			}
		})
	}
}

func TestEveryCommandHasHandler(t *testing.T) {
	for cmd := CmdTUI; cmd < CmdUnknown; cmd++ {
		_, ok := handlers[cmd]
		assert.True(t, ok, "no handler for %s", cmd)
	}
}

func TestSuggestCommand(t *testing.T) {
	assert.Equal(t, "conversations", SuggestCommand("convresations"))
	assert.Equal(t, "login", SuggestCommand("lgoin"))
	assert.Equal(t, "help", SuggestCommand("hepl"))
	assert.Equal(t, "", SuggestCommand("login"), "exact match needs no suggestion")
	assert.Equal(t, "", SuggestCommand("x"))
	assert.Equal(t, "", SuggestCommand("kubernetes"))
}

// =============================================================================
// EXIT CODE TESTS (errors.go)
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"validation", NewValidationError("id", "x", "bad"), ExitUsageError},
		{"missing argument", ErrMissingArgument("message", askUsage), ExitUsageError},
		{"empty message", chat.ErrEmptyMessage, ExitUsageError},
		{"confirmation required", NewCommandError("cache", "clear", "use --yes", ErrConfirmationRequired), ExitUsageError},
		{"not logged in", ErrNotLoggedIn, ExitAuthError},
		{"login refused", &AuthError{Reason: "Invalid credentials"}, ExitAuthError},
		{"session expired", &api.APIError{Status: 401, Err: api.ErrUnauthorized}, ExitAuthError},
		{"csrf", fmt.Errorf("post: %w", api.ErrCSRF), ExitAuthError},
		{"poll timeout", chat.ErrPollTimeout, ExitTimeoutError},
		{"deadline", context.DeadlineExceeded, ExitTimeoutError},
		{"backend 404", &api.APIError{Status: 404, Message: "Not found."}, ExitNotFoundError},
		{"not in cache", fmt.Errorf("offline: %w", storage.ErrConversationNotFound), ExitNotFoundError},
		{"config key", NewNotFoundError("config key", "nope"), ExitNotFoundError},
		{"transport", &api.TransportError{Err: errors.New("connection refused")}, ExitNetworkError},
		{"offline write", offline.ErrOffline, ExitNetworkError},
		{"offline without cache", offline.ErrNoCache, ExitConfigError},
		{"config validation", config.ValidateErrors{{Field: "ui.theme", Message: "bad"}}, ExitConfigError},
		{"cache disabled", errCacheDisabled, ExitConfigError},
		{"generic", errors.New("something broke"), ExitGeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Invalid credentials", userMessage(&api.APIError{Status: 400, Message: "Invalid credentials"}))
	assert.Equal(t, "session expired, run `thicode login`", userMessage(&api.APIError{Status: 401, Err: api.ErrUnauthorized}))
	assert.Contains(t, userMessage(ErrNotLoggedIn), "not logged in")
	assert.Equal(t, "cancelled", userMessage(fmt.Errorf("wait: %w", context.Canceled)))
}

// =============================================================================
// HELPER TESTS (helpers.go, settings_cmd.go)
// =============================================================================

func TestParseID(t *testing.T) {
	id, err := parseID("42", askUsage)
	require.NoError(t, err)
	assert.Equal(t, model.ID(42), id)

	for _, bad := range []string{"", "abc", "0", "-3"} {
		_, err := parseID(bad, askUsage)
		var vErr *ValidationError
		assert.True(t, errors.As(err, &vErr), "parseID(%q)", bad)
	}
}

func TestParseMetadata(t *testing.T) {
	meta, err := parseMetadata([]string{"pinned=true", "priority=3", "label=work", `tags=["a","b"]`, "note=a=b"})
	require.NoError(t, err)
	assert.Equal(t, true, meta["pinned"])
	assert.Equal(t, float64(3), meta["priority"])
	assert.Equal(t, "work", meta["label"])
	assert.Equal(t, []any{"a", "b"}, meta["tags"])
	assert.Equal(t, "a=b", meta["note"])

	_, err = parseMetadata(nil)
	assert.Error(t, err)
	_, err = parseMetadata([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseMetadata([]string{"=x"})
	assert.Error(t, err)
}

func TestParsePreference(t *testing.T) {
	p, err := parsePreference("display_mode", "Dark")
	require.NoError(t, err)
	assert.Equal(t, model.DisplayDark, p.DisplayMode)
	assert.Empty(t, p.DefaultModel)

	p, err = parsePreference("default-model", "llama3")
	require.NoError(t, err)
	assert.Equal(t, "llama3", p.DefaultModel)

	p, err = parsePreference("language", "en")
	require.NoError(t, err)
	assert.Equal(t, "en", p.Language)

	_, err = parsePreference("display_mode", "sepia")
	assert.Error(t, err)
	_, err = parsePreference("font", "mono")
	assert.Error(t, err)
	_, err = parsePreference("language", "")
	assert.Error(t, err)
}

func TestFormatAge(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "", formatAge(time.Time{}, now))
	assert.Equal(t, "just now", formatAge(now.Add(-10*time.Second), now))
	assert.Equal(t, "5m ago", formatAge(now.Add(-5*time.Minute), now))
	assert.Equal(t, "3h ago", formatAge(now.Add(-3*time.Hour), now))
	assert.Equal(t, "2d ago", formatAge(now.Add(-49*time.Hour), now))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 MB", formatBytes(2*1024*1024))
}

func TestConversationLine(t *testing.T) {
	now := time.Now()
	c := &model.Conversation{
		ID:           7,
		Title:        "Docker volumes\nsecond line",
		MessageCount: 4,
		Status:       model.ConversationArchived,
		UpdatedAt:    now.Add(-2 * time.Hour),
	}
	line := conversationLine(c, 80, now)
	assert.Contains(t, line, "7")
	assert.Contains(t, line, "Docker volumes")
	assert.NotContains(t, line, "second line")
	assert.Contains(t, line, "4 msg, 2h ago")
	assert.True(t, strings.Contains(line, "[archived]"))
}

// =============================================================================
// BENCHMARKS
// =============================================================================

func BenchmarkArgParser_Simple(b *testing.B) {
	args := []string{"ask", "12", "What is Go?"}
	for i := 0; i < b.N; i++ {
		NewArgParser(args)
	}
}

func BenchmarkArgParser_ManyFlags(b *testing.B) {
	args := []string{
		"list",
		"--flag1", "value1",
		"--flag2", "value2",
		"--bool1",
		"--bool2",
		"positional",
	}
	for i := 0; i < b.N; i++ {
		NewArgParser(args, "bool1", "bool2")
	}
}
