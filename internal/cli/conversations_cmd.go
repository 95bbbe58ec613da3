// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// conversations_cmd.go - The conversations command.
//
// Usage:
//
//	thicode conversations [list] [--archived|--all]
//	thicode conversations show ID
//	thicode conversations new MESSAGE
//	thicode conversations rename ID TITLE
//	thicode conversations delete ID [-y]
//	thicode conversations archive ID
//	thicode conversations restore ID
//	thicode conversations meta ID KEY=VALUE...
//	thicode conversations export ID [--format markdown|json] [--dir DIR [--open]]

package cli

import (
	"context"
	"time"

	"github.com/jeranaias/thicode-tui/internal/export"
	"github.com/jeranaias/thicode-tui/internal/model"
)

const conversationsUsage = "thicode conversations [list|show ID|new MSG|rename ID TITLE|delete ID|archive ID|restore ID|meta ID KEY=VAL...|export ID]"

// HandleConversations handles "thicode conversations".
func HandleConversations(ctx context.Context, args Args) error {
	return withApp(args, func(a *App) error {
		if err := a.RequireLogin(ctx); err != nil {
			return err
		}

		p := NewArgParser(args.Raw, "archived", "all", "yes", "y", "open")
		sub := p.Subcommand()
		if isNumber(sub) {
			return conversationShow(ctx, a, sub)
		}

		switch sub {
		case "", "list", "ls":
			return conversationList(ctx, a, p)
		case "show", "open":
			return conversationShow(ctx, a, p.Positional(1))
		case "new", "create":
			return conversationNew(ctx, a, JoinPositionalArgs(p, 1))
		case "rename":
			return conversationRename(ctx, a, p)
		case "delete", "rm":
			return conversationDelete(ctx, a, p)
		case "archive":
			return conversationArchive(ctx, a, p.Positional(1), true)
		case "restore", "unarchive":
			return conversationArchive(ctx, a, p.Positional(1), false)
		case "meta", "metadata":
			return conversationMeta(ctx, a, p)
		case "export":
			return conversationExport(ctx, a, p)
		default:
			return ErrUnknownSubcommand("conversations", sub, conversationsUsage)
		}
	})
}

// =============================================================================
// READ
// =============================================================================

func conversationList(ctx context.Context, a *App, p *ArgParser) error {
	if err := a.Store.FetchConversations(ctx); err != nil {
		return err
	}

	var convs []*model.Conversation
	switch {
	case p.BoolFlag("all"):
		convs = a.Store.Snapshot().Conversations
	case p.BoolFlag("archived"):
		convs = a.Store.Archived()
	default:
		convs = a.Store.Active()
	}

	data := make([]ConversationData, 0, len(convs))
	for _, c := range convs {
		data = append(data, newConversationData(c, nil))
	}
	return a.Respond("conversations", data, func() {
		if len(convs) == 0 {
			a.Printf("%s\n", DimStyle.Render("No conversations. Start one with `thicode conversations new MESSAGE`."))
			return
		}
		width := GetTerminalWidth()
		now := time.Now()
		for _, c := range convs {
			a.Printf("%s\n", conversationLine(c, width, now))
		}
	})
}

func conversationShow(ctx context.Context, a *App, raw string) error {
	id, err := parseID(raw, "thicode conversations show 12")
	if err != nil {
		return err
	}
	if err := a.Store.FetchConversation(ctx, id); err != nil {
		return err
	}
	st := a.Store.Snapshot()
	return a.Respond("conversations", newConversationData(st.Current, st.Messages), func() {
		printConversation(a, st.Current, st.Messages)
	})
}

// conversationExport renders a conversation as Markdown or JSON. Without
// --dir the document goes to stdout. It works offline from the cache.
func conversationExport(ctx context.Context, a *App, p *ArgParser) error {
	const usage = "thicode conversations export 12 --format json --dir ./exports"
	id, err := parseID(p.Positional(1), usage)
	if err != nil {
		return err
	}
	format := p.Flag("format", "f")
	opts := export.DefaultOptions()
	exporter, err := export.ForFormat(format, opts)
	if err != nil {
		return NewValidationErrorWithExample("format", format, "use markdown or json", usage)
	}

	if err := a.Store.FetchConversation(ctx, id); err != nil {
		return err
	}
	st := a.Store.Snapshot()
	conv := st.Current.Clone()
	conv.Messages = st.Messages

	dir := p.Flag("dir", "d")
	if dir == "" {
		content, err := exporter.Export(conv)
		if err != nil {
			return err
		}
		return a.Respond("conversations export", map[string]any{
			"id":        id,
			"mime_type": exporter.MimeType(),
			"content":   string(content),
		}, func() {
			a.Printf("%s", content)
		})
	}

	opts.OutputDir = dir
	opts.OpenAfterExport = p.BoolFlag("open")
	path, err := export.ExportToFile(conv, exporter, opts)
	if err != nil {
		return err
	}
	return a.Respond("conversations export", map[string]any{
		"id":        id,
		"mime_type": exporter.MimeType(),
		"path":      path,
	}, func() {
		a.Printf("%s Exported conversation #%s to %s\n", SuccessStyle.Render("OK"), id, path)
	})
}

// printConversation prints a title line followed by every message.
func printConversation(a *App, conv *model.Conversation, msgs []*model.Message) {
	printer := newMessagePrinter(a)
	title := TitleStyle.Render(conv.DisplayTitle())
	if conv.IsArchived() {
		title += " " + ArchivedStyle.Render("[archived]")
	}
	a.Printf("%s %s\n", title, DimStyle.Render("#"+conv.ID.String()))
	a.Printf("%s\n", RenderSeparator(printer.width))
	if len(msgs) == 0 {
		a.Printf("%s\n", DimStyle.Render("No messages yet."))
		return
	}
	for _, m := range msgs {
		a.Printf("%s\n", printer.Format(m))
	}
}

// =============================================================================
// WRITE
// =============================================================================

// conversationNew starts a conversation from its first message. When the
// backend does not post the message itself, it is sent and the reply
// awaited like `thicode ask`.
func conversationNew(ctx context.Context, a *App, content string) error {
	if err := a.Online(); err != nil {
		return err
	}
	if content == "" {
		return ErrMissingArgument("message", "thicode conversations new \"How do I list docker volumes?\"")
	}

	conv, err := a.Store.CreateConversation(ctx, content, a.AIModel())
	if err != nil {
		return err
	}
	a.Notef("%s Created conversation #%s\n", SuccessStyle.Render("OK"), conv.ID)

	if len(conv.Messages) == 0 {
		return sendAndPrint(ctx, a, conv.ID, content)
	}
	return a.Respond("conversations", newConversationData(conv, conv.Messages), func() {
		printConversation(a, conv, conv.Messages)
	})
}

func conversationRename(ctx context.Context, a *App, p *ArgParser) error {
	if err := a.Online(); err != nil {
		return err
	}
	id, err := parseID(p.Positional(1), "thicode conversations rename 12 \"New title\"")
	if err != nil {
		return err
	}
	title := JoinPositionalArgs(p, 2)
	if title == "" {
		return ErrMissingArgument("title", "thicode conversations rename 12 \"New title\"")
	}
	if err := a.Store.FetchConversations(ctx); err != nil {
		return err
	}
	if err := a.Store.RenameConversation(ctx, id, title); err != nil {
		return err
	}
	return respondConversation(a, "rename", id, "Renamed")
}

func conversationDelete(ctx context.Context, a *App, p *ArgParser) error {
	if err := a.Online(); err != nil {
		return err
	}
	id, err := parseID(p.Positional(1), "thicode conversations delete 12 --yes")
	if err != nil {
		return err
	}
	if err := a.ConfirmAction(p.BoolFlag("yes", "y"), "conversations", "delete", "Delete conversation #"+id.String()+"?"); err != nil {
		return err
	}
	if err := a.Store.DeleteConversation(ctx, id); err != nil {
		return err
	}
	return a.Respond("conversations", map[string]any{"id": id, "deleted": true}, func() {
		a.Printf("%s Deleted conversation #%s\n", SuccessStyle.Render("OK"), id)
	})
}

func conversationArchive(ctx context.Context, a *App, raw string, archive bool) error {
	if err := a.Online(); err != nil {
		return err
	}
	action, verb := "archive", "Archived"
	if !archive {
		action, verb = "restore", "Restored"
	}
	id, err := parseID(raw, "thicode conversations "+action+" 12")
	if err != nil {
		return err
	}
	if err := a.Store.FetchConversations(ctx); err != nil {
		return err
	}
	if archive {
		err = a.Store.ArchiveConversation(ctx, id)
	} else {
		err = a.Store.RestoreConversation(ctx, id)
	}
	if err != nil {
		return err
	}
	return respondConversation(a, action, id, verb)
}

func conversationMeta(ctx context.Context, a *App, p *ArgParser) error {
	if err := a.Online(); err != nil {
		return err
	}
	id, err := parseID(p.Positional(1), "thicode conversations meta 12 pinned=true")
	if err != nil {
		return err
	}
	meta, err := parseMetadata(p.PositionalFrom(2))
	if err != nil {
		return err
	}
	if err := a.Store.FetchConversations(ctx); err != nil {
		return err
	}
	if err := a.Store.UpdateMetadata(ctx, id, meta); err != nil {
		return err
	}
	return respondConversation(a, "meta", id, "Updated")
}

// respondConversation reports the store's copy of a conversation after a
// write. The list is loaded before every write so the store can keep
// message counts the write response leaves out.
func respondConversation(a *App, action string, id model.ID, verb string) error {
	var conv *model.Conversation
	for _, c := range a.Store.Snapshot().Conversations {
		if c.ID == id {
			conv = c
			break
		}
	}
	if conv == nil {
		conv = &model.Conversation{ID: id}
	}
	return a.Respond("conversations "+action, newConversationData(conv, nil), func() {
		a.Printf("%s %s conversation #%s %s\n", SuccessStyle.Render("OK"), verb, id, DimStyle.Render(conv.DisplayTitle()))
	})
}
