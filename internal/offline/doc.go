// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package offline provides the --offline mode.
//
// Offline mode never contacts the server. Conversations are read from the
// sqlite cache that online sessions fill, and every operation that would
// change data fails with ErrOffline.
//
// # Usage
//
//	offline.SetOfflineMode(true)
//	backend, err := offline.NewBackend(cache)
//	if err != nil {
//		return err
//	}
//	store := chat.NewStore(backend)
package offline
