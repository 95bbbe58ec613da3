// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for thicode.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - ServerConfig: Backend URL, request timeout and rate limit
//   - ChatConfig: Default model and reply polling cadence
//   - UIConfig: Theme and rendering options
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (THICODE_*)
//   - ~/.thicode/config.toml
//   - ~/.thicode/config.json
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Follow edits while the TUI runs:
//
//	go config.Watch(ctx, path, func(cfg *config.Config) { ... })
package config
