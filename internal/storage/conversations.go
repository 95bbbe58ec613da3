// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the offline conversation cache for thicode.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/thicode-tui/internal/model"
)

// ErrConversationNotFound is returned when a conversation is not cached.
var ErrConversationNotFound = errors.New("conversation not in cache")

// =============================================================================
// CACHE
// =============================================================================

// Cache is a sqlite copy of conversations fetched from the backend. The
// backend stays authoritative; the cache only serves --offline reads and
// full-text search.
type Cache struct {
	db   *sql.DB
	path string
}

// SearchResult is a message matching a cache search.
type SearchResult struct {
	ConversationID model.ID
	Title          string
	MessageID      model.ID
	Role           model.Role
	Snippet        string
	CreatedAt      time.Time
}

// Open opens (creating if needed) the cache at path. The cache is bound to
// one server: if it was filled from a different baseURL it is emptied.
func Open(path, baseURL string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	c := &Cache{db: db, path: path}
	if err := c.initSchema(baseURL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}
	// Cached messages are private; keep the file owner-only
	_ = os.Chmod(path, 0600)
	return c, nil
}

func (c *Cache) initSchema(baseURL string) error {
	if _, err := c.db.Exec(Schema); err != nil {
		return err
	}
	if _, err := c.db.Exec(InitMetadata); err != nil {
		return err
	}

	var stored string
	if err := c.db.QueryRow("SELECT value FROM metadata WHERE key = 'base_url'").Scan(&stored); err != nil {
		return err
	}
	if stored != "" && stored != baseURL {
		if _, err := c.db.Exec("DELETE FROM conversations"); err != nil {
			return err
		}
	}
	_, err := c.db.Exec("UPDATE metadata SET value = ? WHERE key = 'base_url'", baseURL)
	return err
}

// Path returns the database file path.
func (c *Cache) Path() string {
	return c.path
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// =============================================================================
// SAVE OPERATIONS
// =============================================================================

// SaveConversations replaces the cached list with convs. Conversations no
// longer on the server are dropped; messages of the others are kept.
func (c *Cache) SaveConversations(ctx context.Context, convs []*model.Conversation) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ids := make([]any, 0, len(convs))
	for _, conv := range convs {
		if err := upsertConversation(ctx, tx, conv); err != nil {
			return err
		}
		ids = append(ids, int64(conv.ID))
	}

	if len(ids) == 0 {
		if _, err := tx.ExecContext(ctx, "DELETE FROM conversations"); err != nil {
			return err
		}
	} else {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
		q := "DELETE FROM conversations WHERE id NOT IN (" + placeholders + ")"
		if _, err := tx.ExecContext(ctx, q, ids...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveConversation upserts one conversation. If it carries messages they
// replace the cached ones.
func (c *Cache) SaveConversation(ctx context.Context, conv *model.Conversation) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := upsertConversation(ctx, tx, conv); err != nil {
		return err
	}
	if conv.Messages != nil {
		if err := replaceMessages(ctx, tx, conv.ID, conv.Messages); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveMessages replaces the cached messages of a conversation that is
// already cached. Unknown conversations are ignored.
func (c *Cache) SaveMessages(ctx context.Context, id model.ID, msgs []*model.Message) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM conversations WHERE id = ?", int64(id)).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return nil
	}
	if err := replaceMessages(ctx, tx, id, msgs); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertConversation(ctx context.Context, tx *sql.Tx, conv *model.Conversation) error {
	var meta sql.NullString
	if conv.Metadata != nil {
		data, err := json.Marshal(conv.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
		meta = sql.NullString{String: string(data), Valid: true}
	}
	var archived sql.NullInt64
	if conv.ArchivedAt != nil {
		archived = sql.NullInt64{Int64: toUnix(*conv.ArchivedAt), Valid: true}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO conversations
		    (id, title, status, message_count, ai_model, metadata, created_at, updated_at, archived_at, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    title = excluded.title,
		    status = excluded.status,
		    message_count = excluded.message_count,
		    ai_model = excluded.ai_model,
		    metadata = excluded.metadata,
		    created_at = excluded.created_at,
		    updated_at = excluded.updated_at,
		    archived_at = excluded.archived_at,
		    cached_at = excluded.cached_at`,
		int64(conv.ID), conv.Title, string(conv.Status), conv.MessageCount, conv.AIModel, meta,
		toUnix(conv.CreatedAt), toUnix(conv.UpdatedAt), archived, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save conversation %s: %w", conv.ID, err)
	}
	return nil
}

func replaceMessages(ctx context.Context, tx *sql.Tx, id model.ID, msgs []*model.Message) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE conversation_id = ?", int64(id)); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages
		    (id, conversation_id, position, role, content, content_type, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	pos := 0
	seen := make(map[model.ID]bool, len(msgs))
	for _, m := range msgs {
		// Optimistic messages have no server id yet
		if m.IsTemp() || m.ID.IsZero() || seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		contentType := m.ContentType
		if contentType == "" {
			contentType = "text"
		}
		if _, err := stmt.ExecContext(ctx, int64(m.ID), int64(id), pos, string(m.Role), m.Content,
			contentType, string(m.Status), toUnix(m.CreatedAt)); err != nil {
			return fmt.Errorf("failed to save message %s: %w", m.ID, err)
		}
		pos++
	}
	return nil
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

const conversationColumns = `id, title, status, message_count, ai_model, metadata, created_at, updated_at, archived_at`

// ListConversations returns cached conversations, most recently updated first.
func (c *Cache) ListConversations(ctx context.Context) ([]*model.Conversation, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT "+conversationColumns+" FROM conversations ORDER BY updated_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []*model.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

// LoadConversation returns a cached conversation with its messages.
func (c *Cache) LoadConversation(ctx context.Context, id model.ID) (*model.Conversation, error) {
	row := c.db.QueryRowContext(ctx,
		"SELECT "+conversationColumns+" FROM conversations WHERE id = ?", int64(id))
	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}

	msgs, err := c.LoadMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	conv.Messages = msgs
	return conv, nil
}

// LoadMessages returns the cached messages of a conversation in arrival order.
func (c *Cache) LoadMessages(ctx context.Context, id model.ID) ([]*model.Message, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, role, content, content_type, status, created_at
		FROM messages WHERE conversation_id = ? ORDER BY position`, int64(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []*model.Message{}
	for rows.Next() {
		var (
			m                         model.Message
			msgID, created            int64
			role, contentType, status string
		)
		if err := rows.Scan(&msgID, &role, &m.Content, &contentType, &status, &created); err != nil {
			return nil, err
		}
		m.ID = model.ID(msgID)
		m.Role = model.Role(role)
		m.ContentType = contentType
		m.Status = model.MessageStatus(status)
		m.CreatedAt = fromUnix(created)
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(s scanner) (*model.Conversation, error) {
	var (
		conv             model.Conversation
		id               int64
		status           string
		meta             sql.NullString
		created, updated int64
		archived         sql.NullInt64
	)
	if err := s.Scan(&id, &conv.Title, &status, &conv.MessageCount, &conv.AIModel, &meta,
		&created, &updated, &archived); err != nil {
		return nil, err
	}
	conv.ID = model.ID(id)
	conv.Status = model.ConversationStatus(status)
	conv.CreatedAt = fromUnix(created)
	conv.UpdatedAt = fromUnix(updated)
	if archived.Valid {
		t := fromUnix(archived.Int64)
		conv.ArchivedAt = &t
	}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &conv.Metadata); err != nil {
			return nil, fmt.Errorf("corrupt metadata for conversation %d: %w", id, err)
		}
	}
	return &conv, nil
}

// =============================================================================
// SEARCH
// =============================================================================

// Search finds cached messages matching query, best match first. Every word
// of the query must appear; the last word matches as a prefix.
func (c *Cache) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	fts := buildFTSQuery(query)
	if fts == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT m.conversation_id, c.title, m.id, m.role,
		       snippet(messages_fts, 0, '[', ']', '...', 12), m.created_at
		FROM messages_fts
		JOIN messages m ON m.id = messages_fts.rowid
		JOIN conversations c ON c.id = m.conversation_id
		WHERE messages_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, fts, limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			r             SearchResult
			convID, msgID int64
			role          string
			created       int64
		)
		if err := rows.Scan(&convID, &r.Title, &msgID, &role, &r.Snippet, &created); err != nil {
			return nil, err
		}
		r.ConversationID = model.ID(convID)
		r.MessageID = model.ID(msgID)
		r.Role = model.Role(role)
		r.CreatedAt = fromUnix(created)
		results = append(results, r)
	}
	return results, rows.Err()
}

// buildFTSQuery turns free text into an FTS5 query. Each word is quoted so
// FTS5 operators in user input are matched literally.
func buildFTSQuery(query string) string {
	words := strings.Fields(query)
	if len(words) == 0 {
		return ""
	}
	terms := make([]string, len(words))
	for i, w := range words {
		terms[i] = `"` + strings.ReplaceAll(w, `"`, `""`) + `"`
	}
	terms[len(terms)-1] += "*"
	return strings.Join(terms, " ")
}

// =============================================================================
// MAINTENANCE
// =============================================================================

// DeleteConversation removes a conversation and its messages.
func (c *Cache) DeleteConversation(ctx context.Context, id model.ID) error {
	_, err := c.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", int64(id))
	return err
}

// Clear removes everything from the cache.
func (c *Cache) Clear(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, "DELETE FROM conversations")
	return err
}

// Stats returns the number of cached conversations and messages.
func (c *Cache) Stats(ctx context.Context) (conversations, messages int, err error) {
	err = c.db.QueryRowContext(ctx,
		"SELECT (SELECT COUNT(*) FROM conversations), (SELECT COUNT(*) FROM messages)").
		Scan(&conversations, &messages)
	return conversations, messages, err
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
