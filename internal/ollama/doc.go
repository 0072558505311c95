// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
//
// Chat responses are streamed from /api/chat as newline-delimited JSON.
// Images are sent base64-encoded in the message's images field, which
// vision models such as llama3.2-vision understand.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - Message: Chat message with role, content, and optional images
//   - StreamReader: Line-by-line reader for streaming responses
//   - Provider: Adapter that streams a prompt.Request
//
// # Usage
//
//	client := ollama.NewClient()
//	err := client.ChatStream(ctx, "llama3.2-vision", messages, func(chunk ollama.StreamChunk) {
//	    fmt.Print(chunk.Content)
//	})
package ollama
