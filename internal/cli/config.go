// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - The config command.
//
// Usage:
//
//	thicode config [show]
//	thicode config get KEY
//	thicode config set KEY VALUE
//	thicode config reset [-y]
//	thicode config path
//
// Keys use dot notation, e.g. server.base_url or chat.poll_timeout_secs.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/jeranaias/thicode-tui/internal/config"
)

const configUsage = "thicode config [show|get KEY|set KEY VALUE|reset|path]"

// ConfigData is returned by config show.
type ConfigData struct {
	Path   string         `json:"path"`
	Values map[string]any `json:"values"`
}

// HandleConfig handles "thicode config".
func HandleConfig(ctx context.Context, args Args) error {
	p := NewArgParser(args.Raw, "yes", "y")
	switch p.Subcommand() {
	case "", "show", "list":
		return handleConfigShow(args)
	case "get":
		return handleConfigGet(args, p.Positional(1))
	case "set":
		return handleConfigSet(args, p.Positional(1), JoinPositionalArgs(p, 2))
	case "reset":
		return handleConfigReset(args, p.BoolFlag("yes", "y"))
	case "path":
		return handleConfigPath(args)
	default:
		return ErrUnknownSubcommand("config", p.Subcommand(), configUsage)
	}
}

// loadConfigFile reads the config file without command line overrides, so
// it can be saved back.
func loadConfigFile() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, WrapError(err, "failed to load config")
	}
	return cfg, nil
}

func handleConfigShow(args Args) error {
	cfg := loadConfig(args)
	path, _ := config.ConfigPathTOML()

	keys := config.GetAllKeys()
	values := make(map[string]any, len(keys))
	for _, key := range keys {
		if v, err := cfg.Get(key); err == nil {
			values[key] = v
		}
	}

	if args.JSON {
		return NewJSONResponse("config show", ConfigData{Path: path, Values: values}).PrintTo(args.Out())
	}

	w := args.Out()
	fmt.Fprintln(w)
	fmt.Fprintln(w, TitleStyle.Render("thicode Configuration"))
	fmt.Fprintln(w, RenderSeparator(41))

	section := ""
	for _, key := range keys {
		head, name, found := strings.Cut(key, ".")
		if !found {
			name, head = head, ""
		}
		if head != section {
			section = head
			fmt.Fprintln(w)
			fmt.Fprintln(w, SectionStyle.Render("["+section+"]"))
		}
		fmt.Fprintf(w, "  %s\n", RenderLabel(name+":", fmt.Sprint(values[key])))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, DimStyle.Render("Config file: "+path))
	return nil
}

func handleConfigGet(args Args, key string) error {
	if key == "" {
		return ErrMissingArgument("key", "thicode config get server.base_url")
	}
	v, err := loadConfig(args).Get(key)
	if err != nil {
		return NewNotFoundError("config key", key)
	}
	if args.JSON {
		return NewJSONResponse("config get", map[string]any{"key": key, "value": v}).PrintTo(args.Out())
	}
	fmt.Fprintln(args.Out(), v)
	return nil
}

func handleConfigSet(args Args, key, value string) error {
	if key == "" {
		return ErrMissingArgument("key", "thicode config set chat.default_model mistral")
	}

	cfg, err := loadConfigFile()
	if err != nil {
		return err
	}
	if _, err := cfg.Get(key); err != nil {
		return NewNotFoundError("config key", key)
	}
	if err := cfg.Set(key, value); err != nil {
		return NewValidationError(key, value, err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(cfg); err != nil {
		return WrapError(err, "failed to save config")
	}
	config.SetGlobal(cfg)

	saved, _ := cfg.Get(key)
	if args.JSON {
		return NewJSONResponse("config set", map[string]any{"key": key, "value": saved}).PrintTo(args.Out())
	}
	if !args.Quiet {
		fmt.Fprintf(args.Out(), "%s %s = %v\n", SuccessStyle.Render("OK"), key, saved)
	}
	return nil
}

func handleConfigReset(args Args, yes bool) error {
	if err := ConfirmAction(args, bufio.NewReader(args.In()), yes, "config", "reset", "Reset configuration to defaults?"); err != nil {
		return err
	}
	cfg := config.Default()
	if err := config.Save(cfg); err != nil {
		return WrapError(err, "failed to save config")
	}
	config.SetGlobal(cfg)

	if args.JSON {
		return NewJSONResponse("config reset", map[string]bool{"reset": true}).PrintTo(args.Out())
	}
	if !args.Quiet {
		fmt.Fprintf(args.Out(), "%s Configuration reset to defaults\n", SuccessStyle.Render("OK"))
	}
	return nil
}

func handleConfigPath(args Args) error {
	path, err := config.ConfigPathTOML()
	if err != nil {
		return err
	}
	if args.JSON {
		return NewJSONResponse("config path", map[string]string{"path": path}).PrintTo(args.Out())
	}
	fmt.Fprintln(args.Out(), path)
	return nil
}
