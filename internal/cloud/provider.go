// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"

	"github.com/jeranaias/masterchat/internal/attachment"
	"github.com/jeranaias/masterchat/internal/prompt"
)

// Provider streams prompt requests through OpenRouter.
type Provider struct {
	client *OpenRouterClient
}

// NewProvider wraps an OpenRouter client.
func NewProvider(client *OpenRouterClient) *Provider {
	return &Provider{client: client}
}

// Name implements chat.Provider.
func (p *Provider) Name() string { return "openrouter" }

// Stream implements chat.Provider.
func (p *Provider) Stream(ctx context.Context, req *prompt.Request, emit func(string)) error {
	return p.client.ChatStream(ctx, req.Model, Messages(req), func(chunk StreamChunk) {
		emit(chunk.GetContent())
	})
}

// Messages converts a request into OpenAI-style chat messages. The system
// instruction comes first and model turns become assistant messages.
func Messages(req *prompt.Request) []ChatMessage {
	turns := req.Turns()
	messages := make([]ChatMessage, 0, len(turns)+1)
	if req.SystemInstruction != "" {
		messages = append(messages, NewSystemMessage(req.SystemInstruction))
	}
	for _, turn := range turns {
		role := "user"
		if turn.Role == prompt.RoleModel {
			role = "assistant"
		}
		messages = append(messages, message(role, turn.Parts))
	}
	return messages
}

// message keeps plain string content when every part is text.
func message(role string, parts []prompt.Part) ChatMessage {
	if len(parts) == 1 && parts[0].IsText() {
		return ChatMessage{Role: role, Content: parts[0].Text}
	}
	content := make([]ContentPart, 0, len(parts))
	for _, part := range parts {
		if part.IsText() {
			content = append(content, TextPart(part.Text))
			continue
		}
		content = append(content, ImagePart(attachment.EncodeDataURI(part.Inline.MIMEType, part.Inline.Data)))
	}
	return NewMultipartMessage(role, content)
}
