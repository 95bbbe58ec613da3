// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
)

// =============================================================================
// FENCED BLOCKS
// =============================================================================

// Segment is a run of prose or a fenced code block.
type Segment struct {
	Text     string
	Code     bool
	Language string
}

// SplitFences splits markdown on ``` fences. An unterminated fence runs to
// the end of the text.
func SplitFences(content string) []Segment {
	var (
		segs []Segment
		buf  []string
		code bool
		lang string
	)
	flush := func() {
		if len(buf) == 0 && !code {
			return
		}
		segs = append(segs, Segment{Text: strings.Join(buf, "\n"), Code: code, Language: lang})
		buf = nil
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			flush()
			if code {
				code, lang = false, ""
			} else {
				code, lang = true, strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
			}
			continue
		}
		buf = append(buf, line)
	}
	flush()
	return segs
}

// =============================================================================
// SYNTAX HIGHLIGHTING
// =============================================================================

// Highlight applies chroma syntax highlighting for a 256-colour terminal.
// Unknown languages are guessed from the code; failures return code as is.
func Highlight(code, language string, dark bool) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	name := "github"
	if dark {
		name = "monokai"
	}
	style := chromaStyles.Get(name)
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return strings.TrimRight(buf.String(), "\n")
}

// DetectLanguage returns chroma's guess for the language of code, or "".
func DetectLanguage(code string) string {
	if lexer := lexers.Analyse(code); lexer != nil {
		return lexer.Config().Name
	}
	return ""
}

// LastCodeBlock returns the body of the last fenced block in content.
func LastCodeBlock(content string) (string, bool) {
	segs := SplitFences(content)
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i].Code {
			return segs[i].Text, true
		}
	}
	return "", false
}
