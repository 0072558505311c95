// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store is the single source of truth for conversations, the active
// conversation, the theme and the signed-in user.
//
// State is loaded once from a storage.KV (parse-or-default per key) and
// written back after every mutation. Saves are fire-and-forget: a failed
// save is logged and the in-memory mutation stands.
//
// # Persisted Keys
//
//   - conversations: JSON array of conversations with nested messages
//   - activeConversationId: JSON string
//   - theme: "light" or "dark"
//   - user: {"name","email"}, absent when signed out
//
// Queries return deep copies; callers never hold references into the store.
package store
