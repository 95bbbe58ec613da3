// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line interface parsing and execution for thicode.
//
// With no arguments thicode starts the full screen chat interface; every
// other command is a one-shot operation against the ThiCode backend or the
// local conversation cache.
//
// # Key Types
//
//   - Command: Enumeration of all available CLI commands
//   - Args: Parsed command-line arguments with global flags
//   - App: The client, session, auth gate and conversation store a command uses
//   - JSONResponse: The --json output envelope
//
// # Usage
//
//	cmd, args := cli.Parse()
//	os.Exit(cli.Run(cmd, args))
//
// # Commands Overview
//
// Account:
//   - login, register, logout, whoami, reset-password
//
// Conversations:
//   - conversations: list, show, create, rename, delete, archive, restore, metadata
//   - ask: send one message and wait for the reply
//   - chat: line based REPL
//
// Local:
//   - settings, theme, config, cache, version, help
//
// Errors are mapped to exit codes by GetExitCode. All commands support the
// --json flag.
package cli
