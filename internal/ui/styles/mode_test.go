// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func darkTerminal() bool  { return true }
func lightTerminal() bool { return false }

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"dark", ModeDark, false},
		{" Light ", ModeLight, false},
		{"SYSTEM", ModeSystem, false},
		{"", ModeSystem, false},
		{"sepia", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestModeResolve(t *testing.T) {
	assert.True(t, ModeDark.Resolve(lightTerminal))
	assert.False(t, ModeLight.Resolve(darkTerminal))
	assert.True(t, ModeSystem.Resolve(darkTerminal))
	assert.False(t, ModeSystem.Resolve(lightTerminal))
	assert.True(t, ModeSystem.Resolve(nil), "unknown background defaults to dark")
}

func TestSwitcher(t *testing.T) {
	defer lipgloss.SetHasDarkBackground(true)

	var saved []Mode
	sw := NewSwitcher(ModeSystem, lightTerminal)
	sw.OnChange(func(m Mode) { saved = append(saved, m) })

	assert.False(t, sw.IsDark())
	assert.False(t, lipgloss.HasDarkBackground())

	// toggling from a light system palette goes dark explicitly
	assert.Equal(t, ModeDark, sw.Toggle())
	assert.True(t, lipgloss.HasDarkBackground())
	assert.Equal(t, ModeLight, sw.Toggle())

	assert.Equal(t, ModeDark, sw.SetTheme(true))
	assert.Equal(t, ModeLight, sw.SetTheme(false))

	assert.Equal(t, ModeSystem, sw.UseSystem())
	assert.False(t, sw.IsDark())

	assert.Equal(t, []Mode{ModeDark, ModeLight, ModeDark, ModeLight, ModeSystem}, saved)
}

func TestNewSwitcher_EmptyModeIsSystem(t *testing.T) {
	defer lipgloss.SetHasDarkBackground(true)
	sw := NewSwitcher("", darkTerminal)
	assert.Equal(t, ModeSystem, sw.Mode())
	assert.True(t, sw.IsDark())
}
