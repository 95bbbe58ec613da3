// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"sort"
	"strings"
	"unicode"

	"github.com/jeranaias/thicode-tui/internal/model"
)

// =============================================================================
// FUZZY MATCHING
// =============================================================================

// Match bonuses. Consecutive runs and word starts are what people type when
// they search for a title they half remember.
const (
	bonusMatch       = 1
	bonusConsecutive = 5
	bonusStart       = 10
	bonusBoundary    = 7
	bonusCase        = 2
)

// FuzzyMatch scores query against target. Every rune of query must occur in
// target in order, ignoring case; the score rewards consecutive runs, word
// starts and exact case, and shorter targets win ties.
//
//	FuzzyMatch("dv", "Docker volumes")  // matches, both at word starts
//	FuzzyMatch("vol", "Docker volumes") // matches, consecutive
//	FuzzyMatch("xyz", "Docker volumes") // no match
func FuzzyMatch(query, target string) (score int, matched bool) {
	if query == "" {
		return 0, true
	}

	q := []rune(query)
	t := []rune(target)
	qLower := []rune(strings.ToLower(query))
	tLower := []rune(strings.ToLower(target))
	if len(qLower) != len(q) || len(tLower) != len(t) {
		// lowercasing changed the rune count; fall back to the folded text only
		q, t = qLower, tLower
	}

	qi, last := 0, -2
	for ti := 0; ti < len(tLower) && qi < len(qLower); ti++ {
		if tLower[ti] != qLower[qi] {
			continue
		}
		s := bonusMatch
		if last == ti-1 {
			s += bonusConsecutive
		}
		if ti == 0 {
			s += bonusStart
		} else if isWordBoundary(t, ti) {
			s += bonusBoundary
		}
		if t[ti] == q[qi] {
			s += bonusCase
		}
		score += s
		last = ti
		qi++
	}

	if qi != len(qLower) {
		return 0, false
	}
	return score - len(tLower)/4, true
}

// isWordBoundary reports whether pos starts a word: after a separator or
// at a lower to upper case change.
func isWordBoundary(runes []rune, pos int) bool {
	if pos == 0 {
		return true
	}
	if pos >= len(runes) {
		return false
	}
	prev := runes[pos-1]
	if unicode.IsSpace(prev) || strings.ContainsRune("/-_.:#", prev) {
		return true
	}
	return unicode.IsLower(prev) && unicode.IsUpper(runes[pos])
}

// =============================================================================
// CONVERSATION FILTER
// =============================================================================

// FilterConversations returns the conversations whose title matches query,
// best match first. Equal scores keep their original order. An empty query
// returns convs unchanged.
func FilterConversations(query string, convs []*model.Conversation) []*model.Conversation {
	query = strings.TrimSpace(query)
	if query == "" {
		return convs
	}

	type scored struct {
		conv  *model.Conversation
		score int
	}
	var hits []scored
	for _, c := range convs {
		if score, ok := FuzzyMatch(query, c.DisplayTitle()); ok {
			hits = append(hits, scored{conv: c, score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})

	out := make([]*model.Conversation, len(hits))
	for i, h := range hits {
		out[i] = h.conv
	}
	return out
}

// HighlightPositions returns the rune offsets in target that FuzzyMatch
// pairs with query, or nil when query does not match.
func HighlightPositions(query, target string) []int {
	if query == "" {
		return nil
	}
	q := []rune(strings.ToLower(query))
	t := []rune(strings.ToLower(target))

	var positions []int
	qi := 0
	for ti := 0; ti < len(t) && qi < len(q); ti++ {
		if t[ti] == q[qi] {
			positions = append(positions, ti)
			qi++
		}
	}
	if qi != len(q) {
		return nil
	}
	return positions
}
