// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Mode is the user's colour scheme choice.
type Mode string

const (
	ModeDark   Mode = "dark"
	ModeLight  Mode = "light"
	ModeSystem Mode = "system"
)

// ParseMode parses "dark", "light" or "system". An empty string means
// system.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeDark, ModeLight, ModeSystem:
		return m, nil
	case "":
		return ModeSystem, nil
	default:
		return "", fmt.Errorf("invalid theme %q (expected dark, light or system)", s)
	}
}

// Detector reports whether the terminal background is dark.
type Detector func() bool

// TerminalDetector asks the terminal for its background colour.
func TerminalDetector() bool {
	return termenv.HasDarkBackground()
}

// Resolve reports whether m means a dark palette. System mode asks detect;
// a nil detector counts as dark.
func (m Mode) Resolve(detect Detector) bool {
	switch m {
	case ModeDark:
		return true
	case ModeLight:
		return false
	default:
		if detect == nil {
			return true
		}
		return detect()
	}
}

// String returns the mode name.
func (m Mode) String() string {
	return string(m)
}

// =============================================================================
// SWITCHER
// =============================================================================

// Switcher owns the active mode and applies it to lipgloss, whose adaptive
// colours follow the dark flag.
type Switcher struct {
	mu       sync.Mutex
	mode     Mode
	detect   Detector
	onChange func(Mode)
}

// NewSwitcher creates a switcher for mode and applies it.
func NewSwitcher(mode Mode, detect Detector) *Switcher {
	if mode == "" {
		mode = ModeSystem
	}
	s := &Switcher{mode: mode, detect: detect}
	s.apply()
	return s
}

// OnChange registers fn to run after each mode change, typically to save
// it to the config file.
func (s *Switcher) OnChange(fn func(Mode)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Mode returns the configured mode.
func (s *Switcher) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// IsDark reports whether the dark palette is in use.
func (s *Switcher) IsDark() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode.Resolve(s.detect)
}

// Toggle switches to the opposite of the palette currently shown and stops
// following the system.
func (s *Switcher) Toggle() Mode {
	return s.set(func(cur Mode) Mode {
		if cur.Resolve(s.detect) {
			return ModeLight
		}
		return ModeDark
	})
}

// SetTheme selects the dark or light palette explicitly.
func (s *Switcher) SetTheme(dark bool) Mode {
	return s.set(func(Mode) Mode {
		if dark {
			return ModeDark
		}
		return ModeLight
	})
}

// UseSystem follows the terminal background again.
func (s *Switcher) UseSystem() Mode {
	return s.set(func(Mode) Mode { return ModeSystem })
}

// Set changes to mode.
func (s *Switcher) Set(mode Mode) Mode {
	return s.set(func(Mode) Mode { return mode })
}

func (s *Switcher) set(next func(Mode) Mode) Mode {
	s.mu.Lock()
	s.mode = next(s.mode)
	mode := s.mode
	fn := s.onChange
	s.mu.Unlock()

	s.apply()
	if fn != nil {
		fn(mode)
	}
	return mode
}

func (s *Switcher) apply() {
	lipgloss.SetHasDarkBackground(s.IsDark())
}
