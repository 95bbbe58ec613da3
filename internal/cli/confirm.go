// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - Confirmation for destructive commands.
//
// Every destructive command follows the same pattern:
//  1. With --yes (-y), proceed without prompting
//  2. In --json mode, --yes is required (no interactive prompts)
//  3. If stdin is not a terminal, --yes is required (can't prompt)
//  4. Otherwise, ask and treat anything but yes as no

package cli

import (
	"bufio"
	"errors"
)

// ErrConfirmationRequired is returned when a destructive command cannot
// prompt and --yes was not given.
var ErrConfirmationRequired = errors.New("confirmation required")

// ConfirmAction asks before a destructive action. It returns nil to
// proceed and an error when the action must not run.
func ConfirmAction(args Args, input *bufio.Reader, yes bool, command, action, question string) error {
	if yes {
		return nil
	}
	if args.JSON {
		return NewCommandError(command, action, "use --yes in JSON mode", ErrConfirmationRequired)
	}
	if args.stdin == nil && !IsTTY() {
		return NewCommandError(command, action, "stdin is not a terminal, use --yes", ErrConfirmationRequired)
	}

	a := &App{Args: args, input: input}
	if !a.Confirm(question) {
		return NewCommandError(command, action, "cancelled", nil)
	}
	return nil
}

// ConfirmAction asks before a destructive action of this command.
func (a *App) ConfirmAction(yes bool, command, action, question string) error {
	return ConfirmAction(a.Args, a.input, yes, command, action, question)
}
