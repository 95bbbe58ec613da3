// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/thicode-tui/internal/api"
	"github.com/jeranaias/thicode-tui/internal/config"
)

// =============================================================================
// FAKE BACKEND
// =============================================================================

const (
	testUser     = "alice"
	testPassword = "secret"
	testSession  = "sess-1"
	testCSRF     = "tok-1"
)

type fakeMessage struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type fakeConversation struct {
	ID           int64          `json:"id"`
	Title        string         `json:"title"`
	Status       string         `json:"status"`
	MessageCount int            `json:"message_count"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Messages     []*fakeMessage `json:"messages,omitempty"`
}

// fakeBackend answers the chat service endpoints from memory. Unsafe
// requests must carry the CSRF header and chat endpoints the session
// cookie, as Django would require.
type fakeBackend struct {
	mu      sync.Mutex
	convs   map[int64]*fakeConversation
	nextID  int64
	deleted []int64
	logins  int
}

func newFakeBackend() *fakeBackend {
	now := time.Now().Add(-time.Hour).UTC()
	return &fakeBackend{
		nextID: 100,
		convs: map[int64]*fakeConversation{
			1: {
				ID: 1, Title: "Docker volumes", Status: "active", MessageCount: 2,
				CreatedAt: now, UpdatedAt: now,
				Messages: []*fakeMessage{
					{ID: 10, Role: "user", Content: "How do I list docker volumes?", Status: "completed", CreatedAt: now},
					{ID: 11, Role: "assistant", Content: "Run `docker volume ls`.", Status: "completed", CreatedAt: now},
				},
			},
		},
	}
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/csrf/{$}", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: api.CSRFCookieName, Value: testCSRF, Path: "/"})
		writeJSON(w, http.StatusOK, map[string]string{"csrfToken": testCSRF})
	})
	mux.HandleFunc("POST /api/accounts/api/login/{$}", func(w http.ResponseWriter, r *http.Request) {
		var creds api.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Username != testUser || creds.Password != testPassword {
			writeJSON(w, http.StatusBadRequest, map[string]any{"non_field_errors": []string{"Invalid credentials"}})
			return
		}
		f.mu.Lock()
		f.logins++
		f.mu.Unlock()
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: testSession, Path: "/"})
		writeJSON(w, http.StatusOK, map[string]any{"user": fakeUser()})
	})
	mux.HandleFunc("POST /api/accounts/api/logout/{$}", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "", Path: "/", MaxAge: -1})
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	})
	mux.HandleFunc("GET /api/accounts/current-user/{$}", f.authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"user": fakeUser()})
	}))

	mux.HandleFunc("GET /api/chat/conversations/{$}", f.authed(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		list := make([]fakeConversation, 0, len(f.convs))
		for _, c := range f.convs {
			summary := *c
			summary.Messages = nil
			list = append(list, summary)
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": list})
	}))
	mux.HandleFunc("POST /api/chat/conversations/{$}", f.authed(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.nextID++
		now := time.Now().UTC()
		c := &fakeConversation{ID: f.nextID, Title: body["message"], Status: "active", CreatedAt: now, UpdatedAt: now}
		f.convs[c.ID] = c
		writeJSON(w, http.StatusCreated, c)
	}))
	mux.HandleFunc("GET /api/chat/conversations/{id}/{$}", f.authed(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		c, ok := f.lookup(r)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
			return
		}
		writeJSON(w, http.StatusOK, c)
	}))
	mux.HandleFunc("DELETE /api/chat/conversations/{id}/{$}", f.authed(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		c, ok := f.lookup(r)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
			return
		}
		delete(f.convs, c.ID)
		f.deleted = append(f.deleted, c.ID)
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.HandleFunc("POST /api/chat/conversations/{id}/messages/{$}", f.authed(func(w http.ResponseWriter, r *http.Request) {
		var req api.SendMessageRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		defer f.mu.Unlock()
		c, ok := f.lookup(r)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
			return
		}
		now := time.Now().UTC()
		user := &fakeMessage{ID: f.nextMessageID(c), Role: "user", Content: req.Content, Status: "completed", CreatedAt: now}
		c.Messages = append(c.Messages, user)
		reply := &fakeMessage{ID: f.nextMessageID(c), Role: "assistant", Content: "echo: " + req.Content, Status: "completed", CreatedAt: now}
		c.Messages = append(c.Messages, reply)
		c.MessageCount = len(c.Messages)
		c.UpdatedAt = now
		writeJSON(w, http.StatusCreated, map[string]any{
			"user_message": user,
			"status":       "completed",
			"ai_message":   reply,
		})
	}))

	return mux
}

// authed rejects requests without the session cookie the way DRF does, and
// unsafe requests without a matching CSRF header the way Django does.
func (f *fakeBackend) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("sessionid"); err != nil || ck.Value != testSession {
			writeJSON(w, http.StatusForbidden, map[string]string{"detail": "Authentication credentials were not provided."})
			return
		}
		if r.Method != http.MethodGet && r.Header.Get(api.CSRFHeaderName) != testCSRF {
			writeJSON(w, http.StatusForbidden, map[string]string{"detail": "CSRF Failed: CSRF token missing."})
			return
		}
		next(w, r)
	}
}

// lookup must be called with f.mu held.
func (f *fakeBackend) lookup(r *http.Request) (*fakeConversation, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return nil, false
	}
	c, ok := f.convs[id]
	return c, ok
}

func (f *fakeBackend) nextMessageID(c *fakeConversation) int64 {
	return c.ID*1000 + int64(len(c.Messages)) + 1
}

func fakeUser() map[string]any {
	return map[string]any{
		"id":          7,
		"username":    testUser,
		"email":       "alice@example.com",
		"date_joined": "2024-05-01T10:00:00Z",
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// =============================================================================
// HARNESS
// =============================================================================

type testEnv struct {
	t       *testing.T
	home    string
	backend *fakeBackend
	server  *httptest.Server
}

// newTestEnv points the config directory at a temp dir and starts a fake
// backend.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	home := t.TempDir()
	t.Setenv(config.HomeEnv, home)
	for _, key := range []string{"THICODE_URL", "THICODE_MODEL", "THICODE_THEME", "THICODE_LOG_LEVEL", "THICODE_NO_CACHE"} {
		t.Setenv(key, "")
	}
	config.ResetGlobalForTesting()
	t.Cleanup(config.ResetGlobalForTesting)

	backend := newFakeBackend()
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	return &testEnv{t: t, home: home, backend: backend, server: srv}
}

type result struct {
	code   int
	stdout string
	stderr string
}

// run executes argv against the fake backend with stdin as input.
func (e *testEnv) run(stdin string, argv ...string) result {
	e.t.Helper()
	cmd, args := ParseArgs(append([]string{"--url", e.server.URL}, argv...))
	var stdout, stderr bytes.Buffer
	args.stdin = strings.NewReader(stdin)
	args.stdout = &stdout
	args.stderr = &stderr

	code := Run(cmd, args)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func (e *testEnv) login() {
	e.t.Helper()
	res := e.run(testPassword+"\n", "login", "-u", testUser)
	require.Equal(e.t, ExitSuccess, res.code, "login failed: %s", res.stderr)
}

// decodeData decodes the data field of a successful --json response.
func decodeData(t *testing.T, res result, out any) {
	t.Helper()
	require.Equal(t, ExitSuccess, res.code, "stderr: %s\nstdout: %s", res.stderr, res.stdout)
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &env), res.stdout)
	require.True(t, env.Success)
	require.NoError(t, json.Unmarshal(env.Data, out))
}

// =============================================================================
// ACCOUNT COMMANDS
// =============================================================================

func TestLoginAndWhoami(t *testing.T) {
	env := newTestEnv(t)

	res := env.run(testPassword+"\n", "login", "-u", testUser)
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Logged in as alice")
	assert.Contains(t, res.stderr, "Password:")
	assert.FileExists(t, filepath.Join(env.home, "session.json"))

	var user UserData
	decodeData(t, env.run("", "whoami", "--json"), &user)
	assert.Equal(t, testUser, user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, env.server.URL, user.Server)
}

func TestLoginRejected(t *testing.T) {
	env := newTestEnv(t)

	res := env.run("wrong\n", "login", "-u", testUser)
	assert.Equal(t, ExitAuthError, res.code)
	assert.Contains(t, res.stderr, "Invalid credentials")

	assert.Equal(t, ExitAuthError, env.run("", "whoami").code)
	env.backend.mu.Lock()
	defer env.backend.mu.Unlock()
	assert.Zero(t, env.backend.logins)
}

func TestCommandsNeedLogin(t *testing.T) {
	env := newTestEnv(t)

	for _, argv := range [][]string{
		{"whoami"},
		{"conversations", "list"},
		{"ask", "1", "hello"},
	} {
		res := env.run("", argv...)
		assert.Equal(t, ExitAuthError, res.code, "%v", argv)
		assert.Contains(t, res.stderr, "not logged in", "%v", argv)
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	env.login()
	require.Equal(t, ExitSuccess, env.run("", "conversations", "list").code)

	res := env.run("", "logout")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Logged out")

	assert.Equal(t, ExitAuthError, env.run("", "whoami").code)

	var stats CacheStatsData
	decodeData(t, env.run("", "cache", "list", "--json"), &stats)
	assert.Zero(t, stats.Conversations, "logout must clear the cache")
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

func TestConversationsListAndShow(t *testing.T) {
	env := newTestEnv(t)
	env.login()

	var list []ConversationData
	decodeData(t, env.run("", "conversations", "list", "--json"), &list)
	require.Len(t, list, 1)
	assert.Equal(t, "Docker volumes", list[0].Title)
	assert.Equal(t, 2, list[0].MessageCount)

	var conv ConversationData
	decodeData(t, env.run("", "conversations", "show", "1", "--json"), &conv)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "user", conv.Messages[0].Role)
	assert.Equal(t, "Run `docker volume ls`.", conv.Messages[1].Content)

	res := env.run("", "conversations", "1")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Docker volumes")
	assert.Contains(t, res.stdout, "How do I list docker volumes?")

	res = env.run("", "conversations", "show", "99")
	assert.Equal(t, ExitNotFoundError, res.code)
}

func TestConversationsExport(t *testing.T) {
	env := newTestEnv(t)
	env.login()

	res := env.run("", "conversations", "export", "1")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "# Docker volumes")
	assert.Contains(t, res.stdout, "How do I list docker volumes?")
	assert.Contains(t, res.stdout, "generator: thicode")

	var doc map[string]any
	decodeData(t, env.run("", "conversations", "export", "1", "--format", "json", "--json"), &doc)
	assert.Equal(t, "application/json", doc["mime_type"])
	assert.Contains(t, doc["content"], `"title": "Docker volumes"`)

	dir := filepath.Join(t.TempDir(), "out")
	res = env.run("", "conversations", "export", "1", "--dir", dir)
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	files, err := filepath.Glob(filepath.Join(dir, "conversation_Docker_volumes_*.md"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Contains(t, res.stdout, files[0])

	assert.Equal(t, ExitUsageError, env.run("", "conversations", "export", "1", "--format", "pdf").code)
	assert.Equal(t, ExitNotFoundError, env.run("", "conversations", "export", "99").code)
}

func TestConversationsNewSendsFirstMessage(t *testing.T) {
	env := newTestEnv(t)
	env.login()

	var ask AskData
	decodeData(t, env.run("", "conversations", "new", "what", "is", "go?", "--json"), &ask)
	assert.Equal(t, "what is go?", ask.Message.Content)
	assert.Equal(t, "echo: what is go?", ask.Reply.Content)
	assert.Equal(t, "completed", ask.State)

	env.backend.mu.Lock()
	defer env.backend.mu.Unlock()
	require.Len(t, env.backend.convs, 2)
	assert.Len(t, env.backend.convs[int64(ask.ConversationID)].Messages, 2)
}

func TestConversationsDelete(t *testing.T) {
	env := newTestEnv(t)
	env.login()

	res := env.run("", "conversations", "delete", "1", "--json")
	assert.Equal(t, ExitUsageError, res.code, "JSON mode must not prompt")
	assert.Contains(t, res.stdout, "--yes")

	res = env.run("n\n", "conversations", "delete", "1")
	assert.Equal(t, ExitGeneralError, res.code)
	assert.Contains(t, res.stderr, "cancelled")

	res = env.run("", "conversations", "delete", "1", "-y")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Deleted conversation #1")

	env.backend.mu.Lock()
	defer env.backend.mu.Unlock()
	assert.Equal(t, []int64{1}, env.backend.deleted)
}

func TestAsk(t *testing.T) {
	env := newTestEnv(t)
	env.login()

	var ask AskData
	decodeData(t, env.run("", "ask", "1", "how", "big", "are", "they?", "--json"), &ask)
	assert.Equal(t, int64(1), int64(ask.ConversationID))
	assert.Equal(t, "echo: how big are they?", ask.Reply.Content)
	assert.Equal(t, "assistant", ask.Reply.Role)

	res := env.run("from stdin\n", "-q", "ask", "1", "-")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "echo: from stdin")

	res = env.run("", "ask", "1")
	assert.Equal(t, ExitUsageError, res.code)
	res = env.run("", "ask", "abc", "hello")
	assert.Equal(t, ExitUsageError, res.code)
}

func TestCSRFCookieSurvivesRestart(t *testing.T) {
	env := newTestEnv(t)
	env.login()

	raw, err := os.ReadFile(filepath.Join(env.home, "session.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), api.CSRFCookieName)
	assert.Contains(t, string(raw), testSession)

	// a fresh process posts with the token restored from the session file
	res := env.run("", "ask", "1", "hi")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
}

// =============================================================================
// OFFLINE AND CACHE
// =============================================================================

func TestOfflineReadsCache(t *testing.T) {
	env := newTestEnv(t)
	env.login()
	require.Equal(t, ExitSuccess, env.run("", "conversations", "list").code)
	require.Equal(t, ExitSuccess, env.run("", "conversations", "show", "1").code)

	env.server.Close()

	var list []ConversationData
	decodeData(t, env.run("", "--offline", "conversations", "--json"), &list)
	require.Len(t, list, 1)
	assert.Equal(t, "Docker volumes", list[0].Title)

	var hits []SearchData
	decodeData(t, env.run("", "--offline", "cache", "search", "docker", "--json"), &hits)
	require.NotEmpty(t, hits)
	assert.Equal(t, int64(1), int64(hits[0].ConversationID))

	res := env.run("", "--offline", "ask", "1", "hello")
	assert.Equal(t, ExitNetworkError, res.code)
	assert.Contains(t, res.stderr, "not available offline")
}

func TestCacheSearchValidatesLimit(t *testing.T) {
	env := newTestEnv(t)

	res := env.run("", "cache", "search", "docker", "--limit", "0")
	assert.Equal(t, ExitUsageError, res.code)
	res = env.run("", "cache", "search")
	assert.Equal(t, ExitUsageError, res.code)
}

func TestCacheDisabled(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("THICODE_NO_CACHE", "1")
	config.ResetGlobalForTesting()

	res := env.run("", "cache", "list")
	assert.Equal(t, ExitConfigError, res.code)
}

// =============================================================================
// LOCAL COMMANDS
// =============================================================================

func TestConfigSetAndGet(t *testing.T) {
	env := newTestEnv(t)

	res := env.run("", "config", "set", "chat.default_model", "llama3")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.FileExists(t, filepath.Join(env.home, "config.toml"))

	var got struct {
		Key   string `json:"key"`
		Value any    `json:"value"`
	}
	decodeData(t, env.run("", "config", "get", "chat.default_model", "--json"), &got)
	assert.Equal(t, "llama3", got.Value)

	res = env.run("", "config", "set", "ui.theme", "purple")
	assert.Equal(t, ExitConfigError, res.code)

	res = env.run("", "config", "get", "no.such_key")
	assert.Equal(t, ExitNotFoundError, res.code)

	res = env.run("", "config", "reset", "--json")
	assert.Equal(t, ExitUsageError, res.code)
	res = env.run("", "config", "reset", "-y")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	decodeData(t, env.run("", "config", "get", "chat.default_model", "--json"), &got)
	assert.Equal(t, "mistral", got.Value)
}

func TestThemeCommand(t *testing.T) {
	env := newTestEnv(t)

	var theme ThemeData
	decodeData(t, env.run("", "theme", "light", "--json"), &theme)
	assert.Equal(t, "light", theme.Mode)
	assert.False(t, theme.Dark)

	var got struct {
		Value any `json:"value"`
	}
	decodeData(t, env.run("", "config", "get", "ui.theme", "--json"), &got)
	assert.Equal(t, "light", got.Value)

	decodeData(t, env.run("", "theme", "toggle", "--json"), &theme)
	assert.Equal(t, "dark", theme.Mode)
	assert.True(t, theme.Dark)

	res := env.run("", "theme", "sepia")
	assert.Equal(t, ExitUsageError, res.code)
}

func TestUnknownCommandSuggests(t *testing.T) {
	env := newTestEnv(t)

	res := env.run("", "convresations")
	assert.Equal(t, ExitUsageError, res.code)
	assert.Contains(t, res.stderr, "Did you mean")
	assert.Contains(t, res.stderr, "thicode conversations")

	res = env.run("", "kubernetes")
	assert.Equal(t, ExitUsageError, res.code)
	assert.Contains(t, res.stderr, "thicode help")
}

func TestVersionJSON(t *testing.T) {
	env := newTestEnv(t)

	var v VersionData
	decodeData(t, env.run("", "version", "--json"), &v)
	assert.Equal(t, Version, v.Version)
	assert.NotEmpty(t, v.GoVersion)
}

func TestChatRejectsJSON(t *testing.T) {
	env := newTestEnv(t)

	res := env.run("", "chat", "--json")
	assert.Equal(t, ExitUsageError, res.code)
}
