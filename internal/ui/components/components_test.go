// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/thicode-tui/internal/model"
)

// =============================================================================
// TOAST TESTS
// =============================================================================

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestToasts() (*Toasts, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	q := NewToasts()
	q.now = clock.now
	return q, clock
}

func TestToasts_NewestFirst(t *testing.T) {
	q, _ := newTestToasts()
	q.Status("loading")
	q.Success("renamed")

	latest, ok := q.Latest()
	require.True(t, ok)
	assert.Equal(t, "renamed", latest.Message)
	assert.Equal(t, ToastSuccess, latest.Kind)
	assert.Equal(t, 2, q.Len())

	assert.True(t, q.DismissLatest())
	latest, _ = q.Latest()
	assert.Equal(t, "loading", latest.Message)
}

func TestToasts_IgnoresEmpty(t *testing.T) {
	q, _ := newTestToasts()
	assert.Zero(t, q.Error(""))
	assert.Zero(t, q.Len())
	assert.False(t, q.DismissLatest())
}

func TestToasts_Expiry(t *testing.T) {
	q, clock := newTestToasts()
	q.Success("saved")
	q.Error("rename failed")

	clock.t = clock.t.Add(StatusToastDuration)
	assert.True(t, q.Tick(), "the error outlives the success toast")
	latest, _ := q.Latest()
	assert.Equal(t, ToastError, latest.Kind)

	clock.t = clock.t.Add(ErrorToastDuration)
	assert.False(t, q.Tick())
	_, ok := q.Latest()
	assert.False(t, ok)
}

func TestToasts_Capacity(t *testing.T) {
	q, _ := newTestToasts()
	for i := 0; i < maxToasts+3; i++ {
		q.Status(strings.Repeat("x", i+1))
	}
	assert.Equal(t, maxToasts, q.Len())

	id := q.Warning("keep")
	q.Remove(id)
	latest, _ := q.Latest()
	assert.NotEqual(t, "keep", latest.Message)

	q.Clear()
	assert.Zero(t, q.Len())
}

func TestRenderToast(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	toast := Toast{Message: "conversation deleted\nsecond line", Kind: ToastSuccess, CreatedAt: now, Duration: StatusToastDuration}

	out := RenderToast(toast, 80, now.Add(time.Second))
	assert.Contains(t, out, "conversation deleted")
	assert.NotContains(t, out, "second line")
	assert.Contains(t, out, "3s")

	narrow := RenderToast(Toast{Message: strings.Repeat("long ", 40), Kind: ToastError, CreatedAt: now, Duration: time.Second}, 20, now.Add(2*time.Second))
	assert.NotRegexp(t, `\d+s`, narrow, "expired toasts show no countdown")
}

// =============================================================================
// FUZZY TESTS
// =============================================================================

func TestFuzzyMatch(t *testing.T) {
	tests := []struct {
		query, target string
		want          bool
	}{
		{"", "anything", true},
		{"dv", "Docker volumes", true},
		{"vol", "Docker volumes", true},
		{"DOCKER", "docker", true},
		{"xyz", "Docker volumes", false},
		{"volumesx", "volumes", false},
		{"sv", "vs", false},
	}
	for _, tt := range tests {
		_, ok := FuzzyMatch(tt.query, tt.target)
		assert.Equal(t, tt.want, ok, "FuzzyMatch(%q, %q)", tt.query, tt.target)
	}
}

func TestFuzzyMatch_Ranking(t *testing.T) {
	consecutive, _ := FuzzyMatch("doc", "Docker volumes")
	scattered, _ := FuzzyMatch("doc", "Add more cake")
	assert.Greater(t, consecutive, scattered)

	boundary, _ := FuzzyMatch("v", "Docker volumes")
	inside, _ := FuzzyMatch("v", "Docker avolumes")
	assert.Greater(t, boundary, inside)

	short, _ := FuzzyMatch("go", "Go")
	long, _ := FuzzyMatch("go", "Go concurrency patterns and more")
	assert.Greater(t, short, long)
}

func TestIsWordBoundary(t *testing.T) {
	runes := []rune("parse jsonFile_now")
	assert.True(t, isWordBoundary(runes, 0))
	assert.True(t, isWordBoundary(runes, 6))  // j after space
	assert.True(t, isWordBoundary(runes, 10)) // F in camelCase
	assert.True(t, isWordBoundary(runes, 15)) // n after underscore
	assert.False(t, isWordBoundary(runes, 2))
	assert.False(t, isWordBoundary(runes, 99))
}

func TestFilterConversations(t *testing.T) {
	convs := []*model.Conversation{
		{ID: 1, Title: "Kubernetes pods"},
		{ID: 2, Title: "Docker volumes"},
		{ID: 3, Title: "Add more cake"},
		{ID: 4, Title: ""},
	}

	assert.Equal(t, convs, FilterConversations("  ", convs))

	got := FilterConversations("doc", convs)
	require.Len(t, got, 2)
	assert.Equal(t, model.ID(2), got[0].ID)
	assert.Equal(t, model.ID(3), got[1].ID)

	got = FilterConversations("new conv", convs)
	require.Len(t, got, 1, "untitled conversations match their display title")
	assert.Equal(t, model.ID(4), got[0].ID)

	assert.Empty(t, FilterConversations("zzz", convs))
}

func TestHighlightPositions(t *testing.T) {
	assert.Equal(t, []int{0, 7}, HighlightPositions("dv", "Docker volumes"))
	assert.Nil(t, HighlightPositions("xyz", "Docker volumes"))
	assert.Nil(t, HighlightPositions("", "Docker"))
}
