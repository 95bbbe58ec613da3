// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// settings_cmd.go - Account preferences stored by the backend.
//
// Usage:
//
//	thicode settings [show]
//	thicode settings set KEY VALUE
//
// Keys: display_mode (dark, light or system), default_model, language.

package cli

import (
	"context"
	"strings"

	"github.com/jeranaias/thicode-tui/internal/model"
)

const settingsUsage = "thicode settings [show|set display_mode|default_model|language VALUE]"

// PreferencesData is returned by the settings command.
type PreferencesData struct {
	DisplayMode  string `json:"display_mode"`
	DefaultModel string `json:"default_model"`
	Language     string `json:"language"`
}

func newPreferencesData(p model.Preferences) PreferencesData {
	return PreferencesData{
		DisplayMode:  string(p.DisplayMode),
		DefaultModel: p.DefaultModel,
		Language:     p.Language,
	}
}

// HandleSettings handles "thicode settings".
func HandleSettings(ctx context.Context, args Args) error {
	return withApp(args, func(a *App) error {
		if err := a.Online(); err != nil {
			return err
		}
		if err := a.RequireLogin(ctx); err != nil {
			return err
		}

		p := NewArgParser(args.Raw)
		switch p.Subcommand() {
		case "", "show":
			prefs, err := a.Gate.Preferences(ctx)
			if err != nil {
				return err
			}
			return respondPreferences(a, "settings", prefs, "")
		case "set":
			update, err := parsePreference(p.Positional(1), JoinPositionalArgs(p, 2))
			if err != nil {
				return err
			}
			prefs, err := a.Gate.UpdatePreferences(ctx, update)
			if err != nil {
				return err
			}
			return respondPreferences(a, "settings set", prefs, "Preferences saved")
		default:
			return ErrUnknownSubcommand("settings", p.Subcommand(), settingsUsage)
		}
	})
}

// parsePreference builds a partial update holding one key. Empty fields are
// left alone by the backend merge.
func parsePreference(key, value string) (model.Preferences, error) {
	var prefs model.Preferences
	if key == "" {
		return prefs, ErrMissingArgument("key", "thicode settings set display_mode dark")
	}
	if value == "" {
		return prefs, ErrMissingArgument("value", "thicode settings set "+key+" VALUE")
	}

	switch strings.ToLower(strings.ReplaceAll(key, "-", "_")) {
	case "display_mode", "displaymode", "theme":
		switch mode := model.DisplayMode(strings.ToLower(value)); mode {
		case model.DisplayDark, model.DisplayLight, model.DisplaySystem:
			prefs.DisplayMode = mode
		default:
			return prefs, NewValidationErrorWithExample("display_mode", value, "must be dark, light or system", "thicode settings set display_mode dark")
		}
	case "default_model", "defaultmodel", "model":
		prefs.DefaultModel = value
	case "language", "lang":
		prefs.Language = value
	default:
		return prefs, NewValidationErrorWithExample("settings key", key, "must be display_mode, default_model or language", settingsUsage)
	}
	return prefs, nil
}

func respondPreferences(a *App, command string, prefs model.Preferences, note string) error {
	return a.Respond(command, newPreferencesData(prefs), func() {
		if note != "" {
			a.Printf("%s %s\n", SuccessStyle.Render("OK"), note)
		}
		a.Printf("%s\n", RenderLabel("Display mode", string(prefs.DisplayMode)))
		a.Printf("%s\n", RenderLabel("Default model", prefs.DefaultModel))
		a.Printf("%s\n", RenderLabel("Language", prefs.Language))
	})
}
