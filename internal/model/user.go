// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// DisplayMode is the user's preferred colour scheme.
type DisplayMode string

const (
	DisplayDark   DisplayMode = "dark"
	DisplayLight  DisplayMode = "light"
	DisplaySystem DisplayMode = "system"
)

// Preferences are the per-user settings stored by the backend.
type Preferences struct {
	DisplayMode  DisplayMode `json:"displayMode,omitempty"`
	DefaultModel string      `json:"defaultModel,omitempty"`
	Language     string      `json:"language,omitempty"`
}

// DefaultPreferences mirrors the values the web client starts from.
func DefaultPreferences() Preferences {
	return Preferences{
		DisplayMode:  DisplaySystem,
		DefaultModel: "mistral",
		Language:     "fr",
	}
}

// Merge overlays the non-empty fields of other onto p.
func (p Preferences) Merge(other Preferences) Preferences {
	if other.DisplayMode != "" {
		p.DisplayMode = other.DisplayMode
	}
	if other.DefaultModel != "" {
		p.DefaultModel = other.DefaultModel
	}
	if other.Language != "" {
		p.Language = other.Language
	}
	return p
}

// User is the authenticated account as returned by the backend.
type User struct {
	ID          ID          `json:"id"`
	Username    string      `json:"username"`
	Email       string      `json:"email"`
	DateJoined  time.Time   `json:"date_joined"`
	Preferences Preferences `json:"preferences"`
}
