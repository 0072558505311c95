// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the core domain types shared by the store, the prompt
// assembler and the streaming pipeline.
//
// # Key Types
//
//   - Conversation: Ordered, append-only list of messages with a title
//   - Message: Single message with role, content, timestamp and attachments
//   - Attachment: File content carried as a base64 data URI
//   - User: Display identity of the signed-in user
//   - Theme: Persisted UI theme ("light" or "dark")
//
// # Usage
//
// Create a conversation and append an exchange:
//
//	conv := model.NewConversation(model.DefaultConversationTitle)
//	user := model.NewUserMessage("Hello", nil)
//	reply := model.NewAssistantMessage()
//	conv.Append(user, reply)
package model
