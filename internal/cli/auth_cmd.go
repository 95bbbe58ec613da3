// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// auth_cmd.go - Account commands: login, register, logout, whoami and
// password reset.

package cli

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/jeranaias/thicode-tui/internal/auth"
	"github.com/jeranaias/thicode-tui/internal/logger"
)

// resultError turns a failed gate result into an error.
func resultError(command, action string, res auth.Result) error {
	if res.Success {
		return nil
	}
	return NewCommandError(command, action, res.Error, nil)
}

// =============================================================================
// LOGIN / LOGOUT
// =============================================================================

// HandleLogin handles "thicode login [-u user]".
func HandleLogin(ctx context.Context, args Args) error {
	return withApp(args, func(a *App) error {
		if err := a.Online(); err != nil {
			return err
		}
		p := NewArgParser(args.Raw)

		username := p.Flag("username", "u")
		if username == "" {
			username = p.Positional(0)
		}
		if username == "" {
			var err error
			if username, err = a.Prompt("Username: "); err != nil {
				return err
			}
		}
		if username == "" {
			return ErrMissingArgument("username", "thicode login -u alice")
		}

		password, err := a.PromptSecret("Password: ")
		if err != nil {
			return err
		}

		if res := a.Gate.Login(ctx, username, password); !res.Success {
			return &AuthError{Reason: res.Error}
		}
		user := a.Gate.User()
		if user == nil {
			// the fallback session check reported success without a user
			a.Gate.Check(ctx)
			user = a.Gate.User()
		}
		name := username
		if user != nil {
			name = user.Username
		}
		if err := a.Session.Save(name); err != nil {
			logger.L().Warn("failed to save session", zap.Error(err))
			return WrapError(err, "logged in but the session could not be saved")
		}

		data := UserData{Username: name, Server: a.Client.BaseURL()}
		if user != nil {
			data = newUserData(user, a.Client.BaseURL())
		}
		return a.Respond("login", data, func() {
			a.Printf("%s Logged in as %s\n", SuccessStyle.Render("OK"), name)
		})
	})
}

// HandleLogout handles "thicode logout". The saved session and the cache
// of the user's conversations are removed even when the backend call fails,
// so a stale login never lingers on disk.
func HandleLogout(ctx context.Context, args Args) error {
	return withApp(args, func(a *App) error {
		if err := a.Online(); err != nil {
			return err
		}
		res := a.Gate.Logout(ctx)

		if err := a.Session.Clear(); err != nil {
			logger.L().Warn("failed to clear session", zap.Error(err))
		}
		a.Client.ClearSession()
		if a.Cache != nil {
			if err := a.Cache.Clear(ctx); err != nil {
				logger.L().Warn("failed to clear cache", zap.Error(err))
			}
		}
		// nothing left worth saving
		a.Session = nil

		if err := resultError("logout", "end session", res); err != nil {
			return err
		}
		return a.Respond("logout", map[string]bool{"logged_out": true}, func() {
			a.Printf("%s Logged out\n", SuccessStyle.Render("OK"))
		})
	})
}

// HandleWhoami handles "thicode whoami".
func HandleWhoami(ctx context.Context, args Args) error {
	return withApp(args, func(a *App) error {
		if err := a.Online(); err != nil {
			return err
		}
		if err := a.RequireLogin(ctx); err != nil {
			return err
		}
		user := a.Gate.User()
		data := newUserData(user, a.Client.BaseURL())
		return a.Respond("whoami", data, func() {
			a.Printf("%s\n", RenderLabel("Username", user.Username))
			if user.Email != "" {
				a.Printf("%s\n", RenderLabel("Email", user.Email))
			}
			if !user.DateJoined.IsZero() {
				a.Printf("%s\n", RenderLabel("Joined", user.DateJoined.Local().Format("2006-01-02")))
			}
			a.Printf("%s\n", RenderLabel("Server", a.Client.BaseURL()))
		})
	})
}

// =============================================================================
// REGISTER
// =============================================================================

// HandleRegister handles "thicode register". Every field is prompted for
// unless given as --username, --email.
func HandleRegister(ctx context.Context, args Args) error {
	return withApp(args, func(a *App) error {
		if err := a.Online(); err != nil {
			return err
		}
		p := NewArgParser(args.Raw)

		username := p.Flag("username", "u")
		email := p.Flag("email", "e")
		var err error
		if username == "" {
			if username, err = a.Prompt("Username: "); err != nil {
				return err
			}
		}
		if email == "" {
			if email, err = a.Prompt("Email: "); err != nil {
				return err
			}
		}
		password, err := a.PromptSecret("Password: ")
		if err != nil {
			return err
		}
		confirm, err := a.PromptSecret("Confirm password: ")
		if err != nil {
			return err
		}

		if err := resultError("register", "create account", a.Gate.Register(ctx, username, email, password, confirm)); err != nil {
			return err
		}
		return a.Respond("register", map[string]string{"username": username, "email": email}, func() {
			a.Printf("%s Account %s created. Log in with `thicode login -u %s`.\n",
				SuccessStyle.Render("OK"), username, username)
		})
	})
}

// =============================================================================
// PASSWORD RESET
// =============================================================================

const resetUsage = "thicode reset-password request EMAIL | verify TOKEN | confirm TOKEN"

// ErrInvalidResetToken is returned when a reset token is unknown or used.
var ErrInvalidResetToken = errors.New("the reset link is invalid or has expired")

// HandleResetPassword handles "thicode reset-password".
func HandleResetPassword(ctx context.Context, args Args) error {
	return withApp(args, func(a *App) error {
		if err := a.Online(); err != nil {
			return err
		}
		p := NewArgParser(args.Raw)
		value := p.Positional(1)

		switch p.Subcommand() {
		case "request":
			if value == "" {
				return ErrMissingArgument("email", "thicode reset-password request alice@example.com")
			}
			if err := resultError("reset-password", "request", a.Gate.RequestPasswordReset(ctx, value)); err != nil {
				return err
			}
			return a.Respond("reset-password", map[string]string{"email": value}, func() {
				a.Printf("If an account exists for %s, a reset link has been sent.\n", value)
			})

		case "verify":
			if value == "" {
				return ErrMissingArgument("token", "thicode reset-password verify TOKEN")
			}
			if !a.Gate.VerifyResetToken(ctx, value) {
				return ErrInvalidResetToken
			}
			return a.Respond("reset-password", map[string]bool{"valid": true}, func() {
				a.Printf("%s Token is valid\n", SuccessStyle.Render("OK"))
			})

		case "confirm":
			if value == "" {
				return ErrMissingArgument("token", "thicode reset-password confirm TOKEN")
			}
			if !a.Gate.VerifyResetToken(ctx, value) {
				return ErrInvalidResetToken
			}
			password, err := a.PromptSecret("New password: ")
			if err != nil {
				return err
			}
			confirm, err := a.PromptSecret("Confirm password: ")
			if err != nil {
				return err
			}
			if msg := auth.ValidateNewPassword(password, confirm); msg != "" {
				return NewValidationError("password", "", msg)
			}
			if err := resultError("reset-password", "confirm", a.Gate.ConfirmPasswordReset(ctx, value, password, confirm)); err != nil {
				return err
			}
			return a.Respond("reset-password", map[string]bool{"reset": true}, func() {
				a.Printf("%s Password changed. You can now log in.\n", SuccessStyle.Render("OK"))
			})

		case "":
			return ErrMissingArgument("subcommand", resetUsage)
		default:
			return ErrUnknownSubcommand("reset-password", p.Subcommand(), resetUsage)
		}
	})
}
