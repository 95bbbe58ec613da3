// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the offline conversation cache for thicode.
//
// Every successful fetch from the backend is mirrored into a local sqlite
// database so that `--offline` can list and show conversations without a
// network, and `thicode cache search` can search message text.
//
// # Key Types
//
//   - Cache: sqlite-backed conversation and message cache
//   - SearchResult: a matching message with a highlighted snippet
//
// # Usage
//
//	cache, err := storage.Open(path, cfg.Server.BaseURL)
//	if err != nil {
//	    return err
//	}
//	defer cache.Close()
//
//	_ = cache.SaveConversations(ctx, convs)
//	results, err := cache.Search(ctx, "docker compose", 10)
//
// # Storage Location
//
// The cache lives in ~/.thicode/cache.db unless storage.cache_path is set.
package storage
