// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// theme_cmd.go - Show or change the colour scheme.
//
// Usage:
//
//	thicode theme                  Show the current mode
//	thicode theme dark|light|system
//	thicode theme toggle           Switch to the opposite of what is shown

package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jeranaias/thicode-tui/internal/config"
	"github.com/jeranaias/thicode-tui/internal/logger"
	"github.com/jeranaias/thicode-tui/internal/ui/styles"
)

const themeUsage = "thicode theme [dark|light|system|toggle]"

// HandleTheme handles "thicode theme".
func HandleTheme(ctx context.Context, args Args) error {
	var saveErr error
	switcher := newThemeSwitcher(loadConfig(args), func(err error) { saveErr = err })

	p := NewArgParser(args.Raw)
	switch sub := p.Subcommand(); sub {
	case "", "show":
	case "toggle":
		switcher.Toggle()
	default:
		next, err := styles.ParseMode(sub)
		if err != nil {
			return NewValidationErrorWithExample("theme", sub, "must be dark, light, system or toggle", themeUsage)
		}
		switcher.Set(next)
	}
	if saveErr != nil {
		return saveErr
	}

	data := ThemeData{Mode: switcher.Mode().String(), Dark: switcher.IsDark()}
	if args.JSON {
		return NewJSONResponse("theme", data).PrintTo(args.Out())
	}
	palette := "light"
	if data.Dark {
		palette = "dark"
	}
	fmt.Fprintf(args.Out(), "%s\n", RenderLabel("Theme", data.Mode+" ("+palette+" palette)"))
	return nil
}

// newThemeSwitcher starts from the configured theme and writes every change
// back to the config file. Save failures go to onErr.
func newThemeSwitcher(cfg *config.Config, onErr func(error)) *styles.Switcher {
	mode, err := styles.ParseMode(cfg.UI.Theme)
	if err != nil {
		mode = styles.ModeSystem
	}
	switcher := styles.NewSwitcher(mode, themeDetector)
	switcher.OnChange(func(m styles.Mode) {
		if err := saveTheme(m); err != nil {
			logger.L().Warn("failed to save theme", zap.String("mode", m.String()), zap.Error(err))
			if onErr != nil {
				onErr(err)
			}
		}
	})
	return switcher
}

// themeDetector only queries the terminal when there is one to answer.
func themeDetector() bool {
	if !IsStdoutTTY() {
		return true
	}
	return styles.TerminalDetector()
}

// saveTheme stores mode as ui.theme in the config file.
func saveTheme(mode styles.Mode) error {
	cfg, err := loadConfigFile()
	if err != nil {
		return err
	}
	cfg.UI.Theme = mode.String()
	if err := config.Save(cfg); err != nil {
		return WrapError(err, "failed to save config")
	}
	config.SetGlobal(cfg)
	return nil
}
