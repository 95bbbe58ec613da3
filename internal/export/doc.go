// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes conversations out as Markdown or JSON documents.
//
// # Supported Formats
//
//   - Markdown: human readable, with a YAML frontmatter block
//   - JSON: the conversation and its messages as the backend describes them
//
// # Usage
//
// Render a conversation that was opened with its messages:
//
//	exp, err := export.ForFormat("md", export.DefaultOptions())
//	data, err := exp.Export(conv)
//
// Or write it to a file named after its title:
//
//	path, err := export.ExportToFile(conv, exp, opts)
package export
