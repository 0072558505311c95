// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/jeranaias/masterchat/internal/prompt"
)

// Provider streams prompt requests through a local Ollama server.
type Provider struct {
	client *Client
}

// NewProvider wraps an Ollama client.
func NewProvider(client *Client) *Provider {
	return &Provider{client: client}
}

// Name implements chat.Provider.
func (p *Provider) Name() string { return "ollama" }

// Stream implements chat.Provider.
func (p *Provider) Stream(ctx context.Context, req *prompt.Request, emit func(string)) error {
	return p.client.ChatStream(ctx, req.Model, Messages(req), func(chunk StreamChunk) {
		emit(chunk.Content)
	})
}

// Messages converts a request into Ollama chat messages. Text parts of a
// turn are joined with blank lines and inline parts become images.
func Messages(req *prompt.Request) []Message {
	turns := req.Turns()
	messages := make([]Message, 0, len(turns)+1)
	if req.SystemInstruction != "" {
		messages = append(messages, NewSystemMessage(req.SystemInstruction))
	}
	for _, turn := range turns {
		msg := Message{Role: "user"}
		if turn.Role == prompt.RoleModel {
			msg.Role = "assistant"
		}
		var texts []string
		for _, part := range turn.Parts {
			if part.IsText() {
				texts = append(texts, part.Text)
				continue
			}
			msg.Images = append(msg.Images, base64.StdEncoding.EncodeToString(part.Inline.Data))
		}
		msg.Content = strings.Join(texts, "\n\n")
		messages = append(messages, msg)
	}
	return messages
}
