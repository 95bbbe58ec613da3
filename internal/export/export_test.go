// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/thicode-tui/internal/model"
)

var exportTime = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func testOptions() *Options {
	opts := DefaultOptions()
	opts.Now = func() time.Time { return exportTime }
	return opts
}

func testConversation() *model.Conversation {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return &model.Conversation{
		ID:           42,
		Title:        "Docker volumes",
		Status:       model.ConversationActive,
		MessageCount: 3,
		AIModel:      "mistral",
		CreatedAt:    created,
		UpdatedAt:    created.Add(time.Hour),
		Messages: []*model.Message{
			{ID: 1, Role: model.RoleUser, Content: "How do I list volumes?", Status: model.StatusCompleted, CreatedAt: created},
			{ID: 2, Role: model.RoleAssistant, Content: "Run:\n\n```sh\ndocker volume ls\n```\n", Status: model.StatusCompleted, CreatedAt: created.Add(time.Minute)},
			{ID: 3, Role: model.RoleAssistant, Content: "", Status: model.StatusError, CreatedAt: created.Add(2 * time.Minute)},
		},
	}
}

// =============================================================================
// MARKDOWN TESTS
// =============================================================================

func TestMarkdownExport(t *testing.T) {
	out, err := NewMarkdownExporter(testOptions()).Export(testConversation())
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "---\ntitle: Docker volumes\nid: 42\nmodel: mistral\n"))
	assert.Contains(t, md, "exported: 2025-03-14T09:26:53Z\n")
	assert.Contains(t, md, "generator: thicode\n")
	assert.Contains(t, md, "# Docker volumes\n")
	assert.Contains(t, md, "- **Messages**: 3\n")
	assert.Contains(t, md, "### [User] <sub>10:00:00</sub>\n\nHow do I list volumes?")
	assert.Contains(t, md, "```sh\ndocker volume ls\n```", "code fences are kept")
	assert.Contains(t, md, "<sub>Status: failed</sub>")
	assert.Contains(t, md, "*Exported from thicode on March 14, 2025 at 9:26 AM*")
	assert.Equal(t, 2, strings.Count(md, "### [Assistant]"))
}

func TestMarkdownExport_WithoutMetadata(t *testing.T) {
	opts := testOptions()
	opts.IncludeMetadata = false
	opts.IncludeTimestamps = false

	out, err := NewMarkdownExporter(opts).Export(testConversation())
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "# Docker volumes"))
	assert.NotContains(t, md, "Session Information")
	assert.NotContains(t, md, "<sub>10:00:00</sub>")
	assert.Contains(t, md, "### [User]\n\n")
}

func TestMarkdownExport_EmptyConversation(t *testing.T) {
	conv := &model.Conversation{ID: 7}
	out, err := NewMarkdownExporter(testOptions()).Export(conv)
	require.NoError(t, err)
	assert.Contains(t, string(out), "# New conversation")
	assert.Contains(t, string(out), "*No messages yet.*")
	assert.NotContains(t, string(out), "date:", "zero times are left out")
}

// TestYAMLNewlineInjection checks that a title cannot add frontmatter keys.
func TestYAMLNewlineInjection(t *testing.T) {
	conv := testConversation()
	conv.Title = "Test\nInjection: malicious"

	out, err := NewMarkdownExporter(testOptions()).Export(conv)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	frontmatter := strings.SplitN(string(out), "---\n\n", 2)[0]
	for _, line := range strings.Split(frontmatter, "\n") {
		if strings.HasPrefix(line, "Injection:") {
			t.Error("newline in title was not escaped in frontmatter")
		}
	}
	if !strings.Contains(frontmatter, `title: "Test\nInjection: malicious"`) {
		t.Errorf("title not quoted:\n%s", frontmatter)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `\#1 \*bold\* \[x\] a\_b`, escapeMarkdown("#1 *bold* [x] a_b"))
}

func TestEscapeYAML(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"a: b", `"a: b"`},
		{` padded`, `" padded"`},
		{`back\slash`, `"back\\slash"`},
		{`say "hi"`, `"say \"hi\""`},
	}
	for _, tt := range tests {
		if got := escapeYAML(tt.in); got != tt.want {
			t.Errorf("escapeYAML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatRoleLabel(t *testing.T) {
	assert.Equal(t, "[User]", formatRoleLabel(model.RoleUser))
	assert.Equal(t, "[Assistant]", formatRoleLabel(model.RoleAssistant))
	assert.Equal(t, "System", formatRoleLabel("system"))
	assert.Equal(t, "Unknown", formatRoleLabel(""))
}

// =============================================================================
// JSON TESTS
// =============================================================================

func TestJSONExport_RoundTrip(t *testing.T) {
	conv := testConversation()
	out, err := NewJSONExporter(testOptions()).Export(conv)
	require.NoError(t, err)

	var doc struct {
		ExportedAt   time.Time           `json:"exported_at"`
		Generator    string              `json:"generator"`
		Conversation *model.Conversation `json:"conversation"`
	}
	require.NoError(t, json.Unmarshal(out, &doc))

	assert.True(t, exportTime.Equal(doc.ExportedAt))
	assert.Equal(t, "thicode", doc.Generator)
	require.NotNil(t, doc.Conversation)
	assert.Equal(t, conv.ID, doc.Conversation.ID)
	assert.Equal(t, conv.Title, doc.Conversation.Title)
	require.Len(t, doc.Conversation.Messages, 3)
	assert.Equal(t, conv.Messages[1].Content, doc.Conversation.Messages[1].Content)
	assert.Contains(t, string(out), `"message_count": 3`, "backend field names are kept")
}

func TestExport_NilConversation(t *testing.T) {
	for _, format := range Formats {
		exp, err := ForFormat(format, nil)
		require.NoError(t, err)
		_, err = exp.Export(nil)
		assert.ErrorIs(t, err, ErrNilConversation, format)
	}
}

// =============================================================================
// FILE TESTS
// =============================================================================

func TestForFormat(t *testing.T) {
	for _, name := range []string{"md", "Markdown", ""} {
		exp, err := ForFormat(name, nil)
		require.NoError(t, err)
		assert.Equal(t, ".md", exp.FileExtension())
		assert.Equal(t, "text/markdown", exp.MimeType())
	}

	exp, err := ForFormat("json", nil)
	require.NoError(t, err)
	assert.Equal(t, ".json", exp.FileExtension())
	assert.Equal(t, "application/json", exp.MimeType())

	_, err = ForFormat("html", nil)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
	assert.Contains(t, err.Error(), "markdown or json")
}

func TestExportToFile(t *testing.T) {
	opts := testOptions()
	opts.OutputDir = filepath.Join(t.TempDir(), "exports")

	path, err := ExportToFile(testConversation(), NewMarkdownExporter(opts), opts)
	require.NoError(t, err)
	assert.Equal(t, "conversation_Docker_volumes_20250314_092653.md", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Docker volumes")
}

func TestExportToFile_NilConversation(t *testing.T) {
	_, err := ExportToFile(nil, NewJSONExporter(nil), testOptions())
	assert.ErrorIs(t, err, ErrNilConversation)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Docker volumes", "Docker_volumes"},
		{`a/b\c:d*e?f"g<h>i|j`, "a-b-c-d-e-f-g-h-i-j"},
		{"tab\there\nnow", "tab_here_now"},
		{"bell\x07", "bell-"},
		{"", "conversation"},
		{strings.Repeat("é", 60), strings.Repeat("é", 50)},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
