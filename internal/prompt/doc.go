// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prompt converts conversation history into a model request.
//
// The assembler is a pure transform: it reads messages and never mutates
// them. Attachments on the newest message are classified once each (image,
// text, PDF, unsupported) and rendered as inline binary or text parts.
// Attachment problems never fail assembly; they become placeholder text.
//
// # Key Types
//
//   - Request: Provider-neutral request (history turns plus new-turn parts)
//   - Turn: Role-tagged entry ("user" or "model")
//   - Part: Text, or inline bytes with a MIME type
//   - Kind: Closed attachment classification
//   - Assembler: Builds Requests for a model and system instruction
package prompt
