// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/thicode-tui/internal/api"
	"github.com/jeranaias/thicode-tui/internal/auth"
	"github.com/jeranaias/thicode-tui/internal/chat"
	"github.com/jeranaias/thicode-tui/internal/config"
	"github.com/jeranaias/thicode-tui/internal/logger"
	"github.com/jeranaias/thicode-tui/internal/offline"
	"github.com/jeranaias/thicode-tui/internal/session"
	"github.com/jeranaias/thicode-tui/internal/storage"
)

// =============================================================================
// APP
// =============================================================================

// App is everything a command needs to talk to the backend: the client and
// its persisted session, the auth gate and the conversation store.
//
// In offline mode Client, Session and Gate are nil and the store reads from
// the cache.
type App struct {
	Args   Args
	Config *config.Config

	Client  *api.Client
	Session *session.Manager
	Gate    *auth.Gate
	Cache   *storage.Cache
	Store   *chat.Store

	input *bufio.Reader
}

// NewApp wires the client, session, cache and store from configuration.
// Nothing here talks to the network.
func NewApp(args Args) (*App, error) {
	cfg := loadConfig(args)
	offline.SetOfflineMode(args.Offline)

	a := &App{
		Args:   args,
		Config: cfg,
		input:  bufio.NewReader(args.In()),
	}

	if cfg.Storage.CacheEnabled {
		if err := a.openCache(); err != nil {
			if args.Offline {
				return nil, err
			}
			logger.L().Warn("conversation cache unavailable", zap.Error(err))
		}
	}

	var backend chat.Backend
	if args.Offline {
		ob, err := offline.NewBackend(a.Cache)
		if err != nil {
			return nil, err
		}
		backend = ob
	} else {
		client, err := api.NewClient(cfg.Server.BaseURL)
		if err != nil {
			a.Close()
			return nil, WrapError(err, "config server.base_url")
		}
		client.WithTimeout(cfg.Server.Timeout()).WithRateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst)
		a.Client = client

		sessionPath, err := cfg.SessionPath()
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Session = session.NewManager(sessionPath, client)
		if err := a.Session.Restore(); err != nil {
			logger.L().Warn("failed to restore session", zap.Error(err))
		}
		a.Gate = auth.NewGate(client)
		backend = client
	}

	a.Store = chat.NewStore(backend).WithPolling(cfg.Chat.PollInterval(), cfg.Chat.PollTimeout())
	if a.Cache != nil {
		a.Store.WithCache(a.Cache)
	}
	return a, nil
}

func (a *App) openCache() error {
	path, err := a.Config.CachePath()
	if err != nil {
		return err
	}
	cache, err := storage.Open(path, a.Config.Server.BaseURL)
	if err != nil {
		return err
	}
	a.Cache = cache
	return nil
}

// Close saves rotated session cookies and closes the cache.
func (a *App) Close() {
	a.SaveSession()
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			logger.L().Warn("failed to close cache", zap.Error(err))
		}
		a.Cache = nil
	}
}

// SaveSession persists the cookie jar if the backend changed it.
func (a *App) SaveSession() {
	if a.Session == nil || !a.Session.IsDirty() {
		return
	}
	if err := a.Session.Save(a.Username()); err != nil {
		logger.L().Warn("failed to save session", zap.Error(err))
	}
}

// Username is the logged in user, or the one the saved session belongs to.
func (a *App) Username() string {
	if a.Gate != nil {
		if u := a.Gate.User(); u != nil {
			return u.Username
		}
	}
	if a.Session != nil {
		return a.Session.Username()
	}
	return ""
}

// AIModel is the model sent with new messages.
func (a *App) AIModel() string {
	return a.Config.Chat.DefaultModel
}

// Online fails with offline.ErrOffline for commands that need the backend.
func (a *App) Online() error {
	return offline.CheckNetworkAllowed()
}

// RequireLogin checks the saved session with the backend. Offline there is
// nobody to ask, so the cache is trusted.
func (a *App) RequireLogin(ctx context.Context) error {
	if a.Args.Offline {
		return nil
	}
	if !a.Gate.Check(ctx) {
		return ErrNotLoggedIn
	}
	return nil
}

// =============================================================================
// PROMPTS
// =============================================================================

// Prompt asks for a line of input on stderr.
func (a *App) Prompt(label string) (string, error) {
	fmt.Fprint(a.Args.ErrOut(), label)
	line, err := a.input.ReadString('\n')
	if err != nil && line == "" {
		return "", WrapError(err, "failed to read input")
	}
	return strings.TrimSpace(line), nil
}

// PromptSecret asks for a password. On a terminal the input is not echoed;
// otherwise a line is read as is, so passwords can be piped in.
func (a *App) PromptSecret(label string) (string, error) {
	if a.Args.stdin != nil || !IsTTY() {
		fmt.Fprint(a.Args.ErrOut(), label)
		line, err := a.input.ReadString('\n')
		if err != nil && line == "" {
			return "", WrapError(err, "failed to read password")
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(a.Args.ErrOut(), label)
	secret, err := readPasswordTTY()
	fmt.Fprintln(a.Args.ErrOut())
	if err != nil {
		return "", WrapError(err, "failed to read password")
	}
	return secret, nil
}

// Confirm asks a yes/no question; anything but yes is no.
func (a *App) Confirm(question string) bool {
	answer, err := a.Prompt(question + " [y/N] ")
	if err != nil {
		return false
	}
	yes, err := ParseBoolString(answer)
	return err == nil && yes
}

// =============================================================================
// OUTPUT
// =============================================================================

// Printf writes human readable output. It is silent in JSON mode.
func (a *App) Printf(format string, v ...any) {
	if a.Args.JSON {
		return
	}
	fmt.Fprintf(a.Args.Out(), format, v...)
}

// Notef writes a status line that --quiet suppresses.
func (a *App) Notef(format string, v ...any) {
	if a.Args.Quiet || a.Args.JSON {
		return
	}
	fmt.Fprintf(a.Args.Out(), format, v...)
}

// Respond prints data as a JSON envelope in JSON mode; otherwise it runs
// text to print the human form.
func (a *App) Respond(command string, data any, text func()) error {
	if a.Args.JSON {
		return NewJSONResponse(command, data).PrintTo(a.Args.Out())
	}
	if text != nil {
		text()
	}
	return nil
}

// withApp runs fn with a fresh App and closes it afterwards.
func withApp(args Args, fn func(a *App) error) error {
	a, err := NewApp(args)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
