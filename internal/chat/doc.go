// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat turns a conversation into a stream of text fragments.
//
// A Client assembles the prompt, opens one provider call per request and
// forwards each non-empty fragment on a fresh channel. Failures are never
// returned: they are logged and the channel ends with ErrorFragment.
//
// # Usage
//
//	client := chat.NewClient(provider, prompt.NewAssembler(modelID, ""))
//	for fragment := range client.StreamChat(ctx, history, msg) {
//	    fmt.Print(fragment)
//	}
package chat
