// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud provides OpenRouter integration for cloud LLM inference.
//
// OpenRouter exposes many hosted models through one OpenAI-compatible API.
// This package streams chat completions over Server-Sent Events and sends
// images as multi-part content with data URIs.
//
// # Key Types
//
//   - OpenRouterClient: HTTP client for the chat completions endpoint
//   - ChatMessage: Message with string or multi-part content
//   - SSEReader: Server-Sent Events parser
//   - Provider: Adapter that streams a prompt.Request
//
// # Usage
//
//	client := cloud.NewOpenRouterClient(apiKey)
//	err := client.ChatStream(ctx, "openrouter/auto", messages, func(chunk cloud.StreamChunk) {
//	    fmt.Print(chunk.GetContent())
//	})
//
// API keys are never logged.
package cloud
