// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"

	"github.com/jeranaias/thicode-tui/internal/model"
)

// =============================================================================
// ACCOUNT TYPES
// =============================================================================

// Credentials is the login payload.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration is the sign-up payload. Field names follow Django's
// UserCreationForm.
type Registration struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password1 string `json:"password1"`
	Password2 string `json:"password2"`
}

type userEnvelope struct {
	User *model.User `json:"user"`
}

type preferencesEnvelope struct {
	Preferences *model.Preferences `json:"preferences"`
}

// =============================================================================
// SESSION
// =============================================================================

// CurrentUser returns the user owning the session. A session without a user
// yields ErrUnauthorized.
func (c *Client) CurrentUser(ctx context.Context) (*model.User, error) {
	var env userEnvelope
	if err := c.Get(ctx, PathCurrentUser, &env); err != nil {
		return nil, err
	}
	if env.User == nil {
		return nil, ErrUnauthorized
	}
	return env.User, nil
}

// Login authenticates and returns the logged-in user. The caller is expected
// to have fetched a CSRF token first.
func (c *Client) Login(ctx context.Context, creds Credentials) (*model.User, error) {
	var env userEnvelope
	if err := c.Post(ctx, PathLogin, creds, &env); err != nil {
		return nil, err
	}
	return env.User, nil
}

// Register creates an account. It does not log the user in.
func (c *Client) Register(ctx context.Context, reg Registration) error {
	return c.Post(ctx, PathRegister, reg, nil)
}

// Logout ends the session on the backend.
func (c *Client) Logout(ctx context.Context) error {
	return c.Post(ctx, PathLogout, struct{}{}, nil)
}

// =============================================================================
// PASSWORD RESET
// =============================================================================

// RequestPasswordReset asks the backend to email a reset link.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return c.Post(ctx, PathResetPassword, map[string]string{"email": email}, nil)
}

// VerifyResetToken reports whether a reset token is still valid.
func (c *Client) VerifyResetToken(ctx context.Context, token string) (bool, error) {
	var resp struct {
		Valid bool `json:"valid"`
	}
	if err := c.Get(ctx, PathVerifyResetToken(token), &resp); err != nil {
		return false, err
	}
	return resp.Valid, nil
}

// ConfirmPasswordReset sets a new password using a reset token.
func (c *Client) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	return c.Post(ctx, PathResetConfirm, map[string]string{
		"token":    token,
		"password": password,
	}, nil)
}

// =============================================================================
// SETTINGS
// =============================================================================

// Preferences returns the user's stored preferences.
func (c *Client) Preferences(ctx context.Context) (model.Preferences, error) {
	var env preferencesEnvelope
	if err := c.Get(ctx, PathSettings, &env); err != nil {
		return model.Preferences{}, err
	}
	if env.Preferences == nil {
		return model.Preferences{}, nil
	}
	return *env.Preferences, nil
}

// UpdatePreferences saves prefs and returns what the backend stored. If the
// response does not echo the preferences, prefs is returned.
func (c *Client) UpdatePreferences(ctx context.Context, prefs model.Preferences) (model.Preferences, error) {
	var env preferencesEnvelope
	if err := c.Patch(ctx, PathSettings, preferencesEnvelope{Preferences: &prefs}, &env); err != nil {
		return model.Preferences{}, err
	}
	if env.Preferences == nil {
		return prefs, nil
	}
	return *env.Preferences, nil
}
