// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// suggest.go - Command suggestion for typo correction.
package cli

import (
	"strings"
)

// validCommands lists every thicode command and alias.
var validCommands = []string{
	"tui",
	"login",
	"register",
	"logout",
	"whoami",
	"reset-password",
	"conversations",
	"ask",
	"chat",
	"settings",
	"theme",
	"config",
	"cache",
	"version",
	"help",
	// Aliases
	"signup",
	"me",
	"reset",
	"conversation",
	"conv",
	"prefs",
}

// SuggestCommand returns the command closest to input, or "" when nothing
// is close enough. Longer inputs tolerate more edits.
func SuggestCommand(input string) string {
	input = strings.ToLower(input)
	if len(input) < 2 {
		return ""
	}

	maxDistance := 1
	switch {
	case len(input) > 8:
		maxDistance = 3
	case len(input) >= 4:
		maxDistance = 2
	}

	best, bestDistance := "", maxDistance+1
	for _, cmd := range validCommands {
		d := editDistance(input, cmd)
		if d == 0 {
			return ""
		}
		if d < bestDistance {
			best, bestDistance = cmd, d
		}
	}
	return best
}

// editDistance is the Levenshtein distance between a and b, counted in
// bytes. Command names are ASCII.
func editDistance(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
