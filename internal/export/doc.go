// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes a conversation to Markdown or JSON.
//
// # Supported Formats
//
//   - Markdown: Human-readable, with optional YAML frontmatter
//   - JSON: The stored conversation shape, attachments included
//
// # Usage
//
//	exporter, err := export.ForFormat("md", nil)
//	path, err := export.ExportToFile(conv, exporter, &export.Options{OutputDir: "."})
package export
