// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cache_cmd.go - Inspect and search the local conversation cache.
//
// Usage:
//
//	thicode cache [list]             Show cache statistics and cached conversations
//	thicode cache search QUERY       Full text search over cached messages
//	thicode cache clear [-y]         Remove everything from the cache
//
// The cache is local, so every subcommand works with --offline and without
// a login.

package cli

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/jeranaias/thicode-tui/internal/util"
)

const cacheUsage = "thicode cache [list|search QUERY [--limit N]|clear [-y]]"

var errCacheDisabled = errors.New("the conversation cache is disabled, enable it with `thicode config set storage.cache_enabled true`")

// HandleCache handles "thicode cache".
func HandleCache(ctx context.Context, args Args) error {
	return withApp(args, func(a *App) error {
		if a.Cache == nil {
			return errCacheDisabled
		}
		p := NewArgParser(args.Raw, "yes", "y")
		switch p.Subcommand() {
		case "", "list", "stats", "ls":
			return cacheList(ctx, a)
		case "search", "find":
			return cacheSearch(ctx, a, p)
		case "clear":
			return cacheClear(ctx, a, p.BoolFlag("yes", "y"))
		default:
			return ErrUnknownSubcommand("cache", p.Subcommand(), cacheUsage)
		}
	})
}

func cacheList(ctx context.Context, a *App) error {
	convs, msgs, err := a.Cache.Stats(ctx)
	if err != nil {
		return WrapError(err, "failed to read cache")
	}
	list, err := a.Cache.ListConversations(ctx)
	if err != nil {
		return WrapError(err, "failed to read cache")
	}

	data := CacheStatsData{
		Path:          a.Cache.Path(),
		Conversations: convs,
		Messages:      msgs,
		Items:         make([]ConversationData, 0, len(list)),
	}
	for _, c := range list {
		data.Items = append(data.Items, newConversationData(c, nil))
	}

	return a.Respond("cache", data, func() {
		a.Printf("\n%s\n", TitleStyle.Render("thicode Cache"))
		a.Printf("%s\n", RenderSeparator(39))
		a.Printf("%s\n", RenderLabel("Path", data.Path))
		if info, err := os.Stat(data.Path); err == nil {
			a.Printf("%s\n", RenderLabel("Size", formatBytes(info.Size())))
		}
		a.Printf("%s\n", RenderLabel("Conversations", strconv.Itoa(convs)))
		a.Printf("%s\n\n", RenderLabel("Messages", strconv.Itoa(msgs)))

		width, now := GetTerminalWidth(), time.Now()
		for _, c := range list {
			a.Printf("%s\n", conversationLine(c, width, now))
		}
	})
}

func cacheSearch(ctx context.Context, a *App, p *ArgParser) error {
	query := JoinPositionalArgs(p, 1)
	if query == "" {
		return ErrMissingArgument("query", "thicode cache search docker volumes")
	}
	limit := 20
	if raw := p.Flag("limit", "n"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return NewValidationErrorWithExample("limit", raw, "must be a positive number", "--limit 50")
		}
		limit = n
	}

	results, err := a.Cache.Search(ctx, query, limit)
	if err != nil {
		return err
	}

	data := make([]SearchData, 0, len(results))
	for _, r := range results {
		d := SearchData{
			ConversationID: r.ConversationID,
			Title:          r.Title,
			MessageID:      r.MessageID,
			Role:           string(r.Role),
			Snippet:        r.Snippet,
		}
		if !r.CreatedAt.IsZero() {
			created := r.CreatedAt
			d.CreatedAt = &created
		}
		data = append(data, d)
	}

	return a.Respond("cache search", data, func() {
		if len(results) == 0 {
			a.Printf("%s\n", DimStyle.Render("No cached messages match \""+query+"\"."))
			return
		}
		now := time.Now()
		for _, r := range results {
			head := DimStyle.Render("#"+r.ConversationID.String()) + " " + ValueStyle.Render(r.Title)
			if age := formatAge(r.CreatedAt, now); age != "" {
				head += " " + DimStyle.Render(age)
			}
			a.Printf("%s\n  %s %s\n", head, InfoStyle.Render(r.Role.DisplayName()+":"), util.FirstLine(r.Snippet))
		}
	})
}

func cacheClear(ctx context.Context, a *App, yes bool) error {
	if err := a.ConfirmAction(yes, "cache", "clear", "Remove all cached conversations?"); err != nil {
		return err
	}
	if err := a.Cache.Clear(ctx); err != nil {
		return WrapError(err, "failed to clear cache")
	}
	return a.Respond("cache clear", map[string]bool{"cleared": true}, func() {
		a.Printf("%s Cache cleared\n", SuccessStyle.Render("OK"))
	})
}
