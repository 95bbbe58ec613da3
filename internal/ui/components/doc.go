// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides small UI building blocks for the chat screen.
//
// # Toasts
//
// Toasts are short notifications that expire on their own. The chat screen
// keeps a Toasts queue, adds to it when an operation finishes and shows the
// newest entry in its status bar:
//
//	toasts := components.NewToasts()
//	toasts.Success("renamed")
//	cmd := components.ToastTickCmd()
//
// Each ToastTickMsg should be answered with Toasts.Tick and, while toasts
// remain, another ToastTickCmd.
//
// # Fuzzy Filtering
//
// FuzzyMatch scores a query against a string; FilterConversations applies it
// to conversation titles for the sidebar filter.
package components
