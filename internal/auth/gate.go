// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth tracks who is logged in to the chat backend.
package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/jeranaias/thicode-tui/internal/api"
	"github.com/jeranaias/thicode-tui/internal/logger"
	"github.com/jeranaias/thicode-tui/internal/model"
)

// MinPasswordLength is the shortest password accepted by a reset.
const MinPasswordLength = 8

// Default messages used when the backend gives no reason.
const (
	DefaultLoginError    = "an error occurred while logging in"
	DefaultRegisterError = "an error occurred during registration"
	DefaultLogoutError   = "an error occurred while logging out"
	DefaultResetError    = "an error occurred, please try again"

	ErrPasswordMismatch = "passwords do not match"
	ErrPasswordTooShort = "password must be at least 8 characters"
)

// Backend is the subset of the API client the gate needs.
type Backend interface {
	FetchCSRF(ctx context.Context) (string, error)
	CurrentUser(ctx context.Context) (*model.User, error)
	Login(ctx context.Context, creds api.Credentials) (*model.User, error)
	Register(ctx context.Context, reg api.Registration) error
	Logout(ctx context.Context) error
	RequestPasswordReset(ctx context.Context, email string) error
	VerifyResetToken(ctx context.Context, token string) (bool, error)
	ConfirmPasswordReset(ctx context.Context, token, password string) error
	Preferences(ctx context.Context) (model.Preferences, error)
	UpdatePreferences(ctx context.Context, prefs model.Preferences) (model.Preferences, error)
}

// Result is the outcome of an account action. Error holds a message fit
// for display when Success is false.
type Result struct {
	Success bool
	Error   string
}

func ok() Result { return Result{Success: true} }

func fail(msg string) Result { return Result{Error: msg} }

// =============================================================================
// GATE
// =============================================================================

// Gate holds the current user, or none, and whether an account call is in
// flight. It is safe for concurrent use.
type Gate struct {
	backend Backend

	mu       sync.RWMutex
	user     *model.User
	loading  bool
	onChange func(*model.User)
}

// NewGate creates a gate with no user.
func NewGate(backend Backend) *Gate {
	return &Gate{backend: backend}
}

// OnChange registers fn to be called whenever the current user changes,
// with nil after a logout or failed check.
func (g *Gate) OnChange(fn func(*model.User)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onChange = fn
}

// User returns a copy of the current user, or nil.
func (g *Gate) User() *model.User {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.user == nil {
		return nil
	}
	u := *g.user
	return &u
}

// IsAuthenticated reports whether a user is logged in.
func (g *Gate) IsAuthenticated() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.user != nil
}

// Loading reports whether an account call is in progress.
func (g *Gate) Loading() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.loading
}

func (g *Gate) setLoading(v bool) {
	g.mu.Lock()
	g.loading = v
	g.mu.Unlock()
}

func (g *Gate) setUser(u *model.User) {
	g.mu.Lock()
	g.user = u
	fn := g.onChange
	g.mu.Unlock()
	if fn != nil {
		fn(u)
	}
}

// =============================================================================
// SESSION
// =============================================================================

// Check asks the backend who owns the session. Any failure means nobody is
// logged in; the error is logged, not returned.
func (g *Gate) Check(ctx context.Context) bool {
	g.setLoading(true)
	defer g.setLoading(false)
	return g.check(ctx)
}

func (g *Gate) check(ctx context.Context) bool {
	user, err := g.backend.CurrentUser(ctx)
	if err != nil || user == nil {
		logger.L().Debug("user not authenticated", zap.Error(err))
		g.setUser(nil)
		return false
	}
	g.setUser(user)
	return true
}

// Login authenticates with username and password.
//
// If the login call fails the session is checked once more: the backend may
// have logged the user in even though the response was lost, in which case
// the login is reported as successful.
func (g *Gate) Login(ctx context.Context, username, password string) Result {
	g.setLoading(true)
	defer g.setLoading(false)

	if _, err := g.backend.FetchCSRF(ctx); err != nil {
		logger.L().Debug("csrf prefetch failed", zap.Error(err))
	}

	user, err := g.backend.Login(ctx, api.Credentials{Username: username, Password: password})
	if err == nil && user != nil {
		g.setUser(user)
		logger.L().Info("logged in", zap.String("username", user.Username))
		return ok()
	}

	if g.check(ctx) {
		logger.L().Info("login reported failure but session is valid", zap.Error(err))
		return ok()
	}
	return fail(backendMessage(err, DefaultLoginError))
}

// Register creates an account. The user is not logged in afterwards.
func (g *Gate) Register(ctx context.Context, username, email, password, password2 string) Result {
	g.setLoading(true)
	defer g.setLoading(false)

	if _, err := g.backend.FetchCSRF(ctx); err != nil {
		logger.L().Debug("csrf prefetch failed", zap.Error(err))
	}

	err := g.backend.Register(ctx, api.Registration{
		Username:  username,
		Email:     email,
		Password1: password,
		Password2: password2,
	})
	if err != nil {
		return fail(backendMessage(err, DefaultRegisterError))
	}
	return ok()
}

// Logout ends the session. The user is only forgotten if the backend
// confirms.
func (g *Gate) Logout(ctx context.Context) Result {
	g.setLoading(true)
	defer g.setLoading(false)

	if _, err := g.backend.FetchCSRF(ctx); err != nil {
		logger.L().Debug("csrf prefetch failed", zap.Error(err))
	}

	if err := g.backend.Logout(ctx); err != nil {
		return fail(backendMessage(err, DefaultLogoutError))
	}
	g.setUser(nil)
	return ok()
}

// =============================================================================
// PASSWORD RESET
// =============================================================================

// RequestPasswordReset asks the backend to email a reset link.
func (g *Gate) RequestPasswordReset(ctx context.Context, email string) Result {
	g.setLoading(true)
	defer g.setLoading(false)

	if err := g.backend.RequestPasswordReset(ctx, strings.TrimSpace(email)); err != nil {
		return fail(backendMessage(err, DefaultResetError))
	}
	return ok()
}

// VerifyResetToken reports whether token can still be used. Failures count
// as invalid.
func (g *Gate) VerifyResetToken(ctx context.Context, token string) bool {
	if strings.TrimSpace(token) == "" {
		return false
	}
	valid, err := g.backend.VerifyResetToken(ctx, token)
	if err != nil {
		logger.L().Debug("reset token check failed", zap.Error(err))
		return false
	}
	return valid
}

// ValidateNewPassword checks a new password against its confirmation.
func ValidateNewPassword(password, confirm string) string {
	if password != confirm {
		return ErrPasswordMismatch
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return ""
}

// ConfirmPasswordReset sets a new password. The password is validated
// locally before anything is sent.
func (g *Gate) ConfirmPasswordReset(ctx context.Context, token, password, confirm string) Result {
	if msg := ValidateNewPassword(password, confirm); msg != "" {
		return fail(msg)
	}

	g.setLoading(true)
	defer g.setLoading(false)

	if err := g.backend.ConfirmPasswordReset(ctx, token, password); err != nil {
		return fail(backendMessage(err, DefaultResetError))
	}
	return ok()
}

// =============================================================================
// PREFERENCES
// =============================================================================

// Preferences returns the user's preferences over the defaults.
func (g *Gate) Preferences(ctx context.Context) (model.Preferences, error) {
	prefs, err := g.backend.Preferences(ctx)
	if err != nil {
		return model.DefaultPreferences(), err
	}
	return model.DefaultPreferences().Merge(prefs), nil
}

// UpdatePreferences saves prefs and updates the cached user.
func (g *Gate) UpdatePreferences(ctx context.Context, prefs model.Preferences) (model.Preferences, error) {
	g.setLoading(true)
	defer g.setLoading(false)

	saved, err := g.backend.UpdatePreferences(ctx, prefs)
	if err != nil {
		return prefs, err
	}
	saved = prefs.Merge(saved)

	g.mu.Lock()
	if g.user != nil {
		g.user.Preferences = saved
	}
	g.mu.Unlock()
	return saved, nil
}

// backendMessage returns the backend's explanation for err, or def.
func backendMessage(err error, def string) string {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return def
}
