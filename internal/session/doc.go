// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session persists the backend session cookies between runs.
//
// The backend authenticates with Django's sessionid and csrftoken cookies.
// Each CLI invocation is a fresh process, so the jar is written to
// ~/.thicode/session.json (mode 0600) after login and restored on start.
//
// # Key Types
//
//   - Manager: Saves and restores the cookies of an api.Client
//   - Snapshot: On-disk format
//   - TickMsg, AutoSaveMsg: Bubble Tea messages for periodic saving
//
// # Usage
//
//	mgr := session.NewManager(path, client)
//	if err := mgr.Restore(); err != nil {
//	    return err
//	}
//	// after a successful login
//	_ = mgr.Save(user.Username)
package session
