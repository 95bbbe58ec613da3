// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// tui.go - Launch the full screen chat interface.

package cli

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/thicode-tui/internal/config"
	"github.com/jeranaias/thicode-tui/internal/logger"
	"github.com/jeranaias/thicode-tui/internal/offline"
	chatui "github.com/jeranaias/thicode-tui/internal/ui/chat"
	"github.com/jeranaias/thicode-tui/internal/ui/render"
	"github.com/jeranaias/thicode-tui/internal/ui/styles"
)

// HandleTUI starts the Bubble Tea chat screen. Online it needs a valid
// session; offline it browses the cache.
func HandleTUI(ctx context.Context, args Args) error {
	if args.JSON {
		return NewValidationError("--json", "", "not supported by the interactive interface")
	}
	if err := RequiresTTY("start the chat interface"); err != nil {
		return err
	}

	return withApp(args, func(a *App) error {
		if err := a.RequireLogin(ctx); err != nil {
			return err
		}

		switcher := newThemeSwitcher(a.Config, nil)
		m := chatui.New(chatui.Options{
			Store:    a.Store,
			Session:  a.Session,
			Theme:    styles.NewTheme(),
			Switcher: switcher,
			Renderer: render.NewRenderer(render.DefaultWidth, switcher.IsDark(), a.Config.UI.Markdown),
			Username: a.Username(),
			AIModel:  a.AIModel(),
			Offline:  offline.IsOfflineMode(),
		})
		defer m.Close()

		p := tea.NewProgram(m, tea.WithAltScreen())

		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go watchConfig(watchCtx, p)

		_, err := p.Run()
		a.SaveSession()
		if err != nil {
			return WrapError(err, "error running thicode")
		}
		return nil
	})
}

// watchConfig forwards config file edits to the running program until ctx
// ends.
func watchConfig(ctx context.Context, p *tea.Program) {
	if err := config.EnsureConfigDir(); err != nil {
		logger.L().Warn("config watch disabled", zap.Error(err))
		return
	}
	path, err := config.ConfigPathTOML()
	if err != nil {
		return
	}
	err = config.Watch(ctx, path, func(cfg *config.Config) {
		config.SetGlobal(cfg)
		p.Send(chatui.ConfigChangedMsg{Config: cfg})
	})
	if err != nil {
		logger.L().Warn("config watch stopped", zap.Error(err))
	}
}
