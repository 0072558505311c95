// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"
)

const (
	// DefaultConversationTitle is used for conversations opened with "new chat".
	DefaultConversationTitle = "New Conversation"

	// FallbackTitle is used when the first message has neither text nor attachments.
	FallbackTitle = "New Chat"

	// TitleMaxRunes is the number of leading runes of the first message used as title.
	TitleMaxRunes = 30
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds a chat conversation. Messages are append-only and in
// chronological order.
type Conversation struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Messages  []*Message `json:"messages"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// NewConversation creates a new empty conversation with a generated ID.
func NewConversation(title string) *Conversation {
	if title == "" {
		title = DefaultConversationTitle
	}
	return &Conversation{
		ID:        NewID(),
		Title:     title,
		Messages:  make([]*Message, 0),
		UpdatedAt: now(),
	}
}

// Append adds messages to the end of the conversation. When the conversation
// was empty the title is derived from the first appended message; it is never
// recomputed afterwards.
func (c *Conversation) Append(msgs ...*Message) {
	if len(msgs) == 0 {
		return
	}
	if len(c.Messages) == 0 {
		c.Title = DeriveTitle(msgs[0].Content, msgs[0].Attachments)
	}
	c.Messages = append(c.Messages, msgs...)
	c.UpdatedAt = now()
}

// MessageByID returns a message by its ID, or nil.
func (c *Conversation) MessageByID(id string) *Message {
	for _, msg := range c.Messages {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}

// LastMessage returns the most recent message, or nil if empty.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// IsEmpty returns true if there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// Clone returns a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Messages = make([]*Message, len(c.Messages))
	for i, msg := range c.Messages {
		cp.Messages[i] = msg.Clone()
	}
	return &cp
}

// DeriveTitle returns the title for a conversation whose first message has the
// given text and attachments.
func DeriveTitle(content string, attachments []Attachment) string {
	content = strings.TrimSpace(content)
	if content != "" {
		runes := []rune(content)
		if len(runes) > TitleMaxRunes {
			runes = runes[:TitleMaxRunes]
		}
		title := strings.ReplaceAll(string(runes), "\n", " ")
		return strings.ReplaceAll(title, "\r", "")
	}
	if len(attachments) > 0 {
		return attachments[0].Name
	}
	return FallbackTitle
}

// =============================================================================
// USER AND THEME
// =============================================================================

// User is the signed-in user. Login is a convenience, not access control.
type User struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Theme is the persisted UI theme.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// DefaultTheme is used when no theme has been saved.
const DefaultTheme = ThemeDark

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool {
	return t == ThemeDark || t == ThemeLight
}

// Toggle returns the opposite theme.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}
