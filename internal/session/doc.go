// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the per-process chat state (pending input, pending
// attachments, streaming flag) and orchestrates a send: store the exchange,
// stream the reply, reduce it into the store.
//
// At most one stream runs at a time; Send while streaming returns
// ErrStreaming.
package session
