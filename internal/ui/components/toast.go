// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/thicode-tui/internal/ui/styles"
	"github.com/jeranaias/thicode-tui/internal/util"
)

// =============================================================================
// TOAST TYPES
// =============================================================================

// ToastKind selects a toast's colour and icon.
type ToastKind int

const (
	// ToastStatus is an informational toast (cyan)
	ToastStatus ToastKind = iota
	// ToastError is an error toast (rose)
	ToastError
	// ToastWarning is a warning toast (amber)
	ToastWarning
	// ToastSuccess is a success toast (emerald)
	ToastSuccess
)

// Toast lifetimes. Errors stay up longer so they can be read.
const (
	StatusToastDuration  = 4 * time.Second
	WarningToastDuration = 6 * time.Second
	ErrorToastDuration   = 8 * time.Second
)

// toastTickInterval is how often expiry is checked while toasts are shown.
const toastTickInterval = 250 * time.Millisecond

// maxToasts is how many toasts are queued before the oldest is dropped.
const maxToasts = 5

// Toast is one notification.
type Toast struct {
	ID        int
	Message   string
	Kind      ToastKind
	CreatedAt time.Time
	Duration  time.Duration
}

// Expired reports whether the toast should be gone at now.
func (t Toast) Expired(now time.Time) bool {
	return now.Sub(t.CreatedAt) >= t.Duration
}

// Remaining is the time left before the toast expires.
func (t Toast) Remaining(now time.Time) time.Duration {
	if left := t.Duration - now.Sub(t.CreatedAt); left > 0 {
		return left
	}
	return 0
}

func durationFor(kind ToastKind) time.Duration {
	switch kind {
	case ToastError:
		return ErrorToastDuration
	case ToastWarning:
		return WarningToastDuration
	default:
		return StatusToastDuration
	}
}

// =============================================================================
// TOAST QUEUE
// =============================================================================

// Toasts is a queue of notifications, newest first. It is shared by pointer
// between copies of a Bubble Tea model.
type Toasts struct {
	mu     sync.Mutex
	toasts []Toast
	nextID int
	now    func() time.Time
}

// NewToasts creates an empty queue.
func NewToasts() *Toasts {
	return &Toasts{nextID: 1, now: time.Now}
}

// Add queues a toast and returns its ID. An empty message is ignored.
func (q *Toasts) Add(kind ToastKind, message string) int {
	if message == "" {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	t := Toast{
		ID:        q.nextID,
		Message:   message,
		Kind:      kind,
		CreatedAt: q.now(),
		Duration:  durationFor(kind),
	}
	q.nextID++

	q.toasts = append([]Toast{t}, q.toasts...)
	if len(q.toasts) > maxToasts {
		q.toasts = q.toasts[:maxToasts]
	}
	return t.ID
}

// Error queues an error toast.
func (q *Toasts) Error(message string) int { return q.Add(ToastError, message) }

// Warning queues a warning toast.
func (q *Toasts) Warning(message string) int { return q.Add(ToastWarning, message) }

// Status queues an informational toast.
func (q *Toasts) Status(message string) int { return q.Add(ToastStatus, message) }

// Success queues a success toast.
func (q *Toasts) Success(message string) int { return q.Add(ToastSuccess, message) }

// Tick drops expired toasts and reports whether any remain.
func (q *Toasts) Tick() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	active := q.toasts[:0]
	for _, t := range q.toasts {
		if !t.Expired(now) {
			active = append(active, t)
		}
	}
	q.toasts = active
	return len(q.toasts) > 0
}

// Latest returns the newest toast.
func (q *Toasts) Latest() (Toast, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.toasts) == 0 {
		return Toast{}, false
	}
	return q.toasts[0], true
}

// DismissLatest removes the newest toast and reports whether there was one.
func (q *Toasts) DismissLatest() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.toasts) == 0 {
		return false
	}
	q.toasts = q.toasts[1:]
	return true
}

// Remove removes a toast by ID.
func (q *Toasts) Remove(id int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, t := range q.toasts {
		if t.ID == id {
			q.toasts = append(q.toasts[:i], q.toasts[i+1:]...)
			return
		}
	}
}

// Len returns the number of queued toasts.
func (q *Toasts) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.toasts)
}

// Clear removes every toast.
func (q *Toasts) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.toasts = nil
}

// =============================================================================
// TOAST MESSAGES
// =============================================================================

// ToastTickMsg asks the model to expire old toasts.
type ToastTickMsg struct {
	Time time.Time
}

// ToastTickCmd schedules the next expiry check.
func ToastTickCmd() tea.Cmd {
	return tea.Tick(toastTickInterval, func(t time.Time) tea.Msg {
		return ToastTickMsg{Time: t}
	})
}

// =============================================================================
// TOAST RENDERING
// =============================================================================

// RenderToast renders t as a single status bar line of at most width cells,
// with the seconds left before it disappears.
func RenderToast(t Toast, width int, now time.Time) string {
	var color lipgloss.AdaptiveColor
	var icon string
	switch t.Kind {
	case ToastError:
		color, icon = styles.Rose, styles.StatusIndicators.Error
	case ToastWarning:
		color, icon = styles.Amber, styles.StatusIndicators.Warning
	case ToastSuccess:
		color, icon = styles.Emerald, styles.StatusIndicators.Success
	default:
		color, icon = styles.Cyan, styles.StatusIndicators.Info
	}

	countdown := ""
	if secs := int(t.Remaining(now).Seconds()); secs > 0 {
		countdown = " " + strconv.Itoa(secs) + "s"
	}

	room := width - util.StringWidth(icon) - 1 - len(countdown)
	if room < 1 {
		room = 1
	}
	message := util.TruncateWidth(util.FirstLine(t.Message), room)

	return lipgloss.NewStyle().Foreground(color).Bold(true).Render(icon+" ") +
		lipgloss.NewStyle().Foreground(styles.TextPrimary).Render(message) +
		lipgloss.NewStyle().Foreground(styles.TextMuted).Italic(true).Render(countdown)
}
