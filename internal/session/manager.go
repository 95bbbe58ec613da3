// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session persists the backend session cookies between runs.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/thicode-tui/internal/logger"
	"github.com/jeranaias/thicode-tui/internal/util"
)

// DefaultAutoSaveInterval is how often the TUI checks the jar for rotated cookies.
const DefaultAutoSaveInterval = 30 * time.Second

// =============================================================================
// PERSISTED FORMAT
// =============================================================================

// Cookie is the persisted form of a session cookie.
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Snapshot is the content of session.json.
type Snapshot struct {
	BaseURL  string    `json:"base_url"`
	Username string    `json:"username,omitempty"`
	Cookies  []Cookie  `json:"cookies"`
	SavedAt  time.Time `json:"saved_at"`
}

// CookieSource is the client whose cookie jar is persisted.
type CookieSource interface {
	BaseURL() string
	Cookies() []*http.Cookie
	SetCookies([]*http.Cookie)
}

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Manager saves and restores the cookies of a CookieSource.
type Manager struct {
	mu sync.Mutex

	path   string
	source CookieSource

	username     string
	lastPrint    string
	lastAutoSave time.Time
	interval     time.Duration
}

// NewManager creates a manager persisting src's cookies to path.
func NewManager(path string, src CookieSource) *Manager {
	return &Manager{
		path:     path,
		source:   src,
		interval: DefaultAutoSaveInterval,
	}
}

// Path returns the session file path.
func (m *Manager) Path() string {
	return m.path
}

// Username returns the username recorded with the session, if any.
func (m *Manager) Username() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.username
}

// Restore loads saved cookies into the source. A missing file is not an
// error. Cookies saved for a different server are ignored.
func (m *Manager) Restore() error {
	snap, err := Load(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if snap.BaseURL != m.source.BaseURL() {
		logger.L().Info("ignoring session saved for another server",
			zap.String("saved", snap.BaseURL),
			zap.String("current", m.source.BaseURL()))
		return nil
	}

	cookies := make([]*http.Cookie, 0, len(snap.Cookies))
	for _, c := range snap.Cookies {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	m.source.SetCookies(cookies)

	m.mu.Lock()
	m.username = snap.Username
	m.lastPrint = fingerprint(m.source.Cookies())
	m.lastAutoSave = time.Now()
	m.mu.Unlock()
	return nil
}

// Save writes the current cookies along with username.
func (m *Manager) Save(username string) error {
	cookies := m.source.Cookies()
	snap := Snapshot{
		BaseURL:  m.source.BaseURL(),
		Username: username,
		SavedAt:  time.Now().UTC(),
	}
	for _, c := range cookies {
		snap.Cookies = append(snap.Cookies, Cookie{Name: c.Name, Value: c.Value})
	}
	if err := Write(m.path, snap); err != nil {
		return err
	}

	m.mu.Lock()
	m.username = username
	m.lastPrint = fingerprint(cookies)
	m.lastAutoSave = time.Now()
	m.mu.Unlock()
	return nil
}

// Clear deletes the session file.
func (m *Manager) Clear() error {
	m.mu.Lock()
	m.username = ""
	m.lastPrint = ""
	m.mu.Unlock()

	if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// IsDirty reports whether the jar holds cookies that have not been saved,
// which happens when the backend rotates csrftoken or sessionid.
func (m *Manager) IsDirty() bool {
	current := fingerprint(m.source.Cookies())
	m.mu.Lock()
	defer m.mu.Unlock()
	return current != m.lastPrint
}

// ShouldAutoSave returns whether an auto-save is due.
func (m *Manager) ShouldAutoSave() bool {
	m.mu.Lock()
	due := time.Since(m.lastAutoSave) >= m.interval
	m.mu.Unlock()
	return due && m.IsDirty()
}

// SetAutoSaveInterval changes how often HandleTick saves.
func (m *Manager) SetAutoSaveInterval(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interval = d
}

// fingerprint is an order-independent digest of the jar contents.
func fingerprint(cookies []*http.Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	sort.Strings(parts)
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// =============================================================================
// FILE I/O
// =============================================================================

// Load reads a snapshot from path.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("corrupt session file %s: %w", path, err)
	}
	return &snap, nil
}

// Write stores snap at path.
// SECURITY: the file holds a live session cookie, so it is written 0600.
func Write(path string, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// =============================================================================
// BUBBLE TEA INTEGRATION
// =============================================================================

// TickMsg is sent periodically to check whether the jar needs saving.
type TickMsg struct {
	Time time.Time
}

// AutoSaveMsg reports the outcome of a background save.
type AutoSaveMsg struct {
	Err error
}

// TickCmd returns a command that ticks periodically.
func TickCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// HandleTick saves the jar if due and schedules the next tick.
func (m *Manager) HandleTick() tea.Cmd {
	cmds := []tea.Cmd{TickCmd()}
	if m.ShouldAutoSave() {
		username := m.Username()
		cmds = append(cmds, func() tea.Msg {
			return AutoSaveMsg{Err: m.Save(username)}
		})
	}
	return tea.Batch(cmds...)
}
