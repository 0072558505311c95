// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/jeranaias/masterchat/internal/logging"
	"github.com/jeranaias/masterchat/internal/model"
	"github.com/jeranaias/masterchat/internal/storage"
)

// Persisted keys.
const (
	KeyConversations      = "conversations"
	KeyActiveConversation = "activeConversationId"
	KeyTheme              = "theme"
	KeyUser               = "user"
)

var (
	// ErrNotFound indicates an unknown conversation or message id.
	ErrNotFound = errors.New("not found")

	// ErrNotStreaming indicates an update to a message that is not streaming.
	ErrNotStreaming = errors.New("message is not streaming")

	// ErrInvalidTheme indicates a theme other than light or dark.
	ErrInvalidTheme = errors.New("invalid theme")
)

// Store holds the conversation state. It is safe for concurrent use.
type Store struct {
	kv     storage.KV
	logger *slog.Logger

	mu            sync.RWMutex
	conversations []*model.Conversation
	activeID      string
	theme         model.Theme
	user          *model.User

	listenersMu  sync.Mutex
	listeners    map[int]func(Event)
	nextListener int
}

// Open creates a Store backed by kv and loads its state.
func Open(kv storage.KV, logger *slog.Logger) *Store {
	s := &Store{
		kv:        kv,
		logger:    logging.Or(logger).With("component", "store"),
		listeners: make(map[int]func(Event)),
	}
	s.Load()
	return s
}

// =============================================================================
// LOAD AND SAVE
// =============================================================================

// Load replaces the in-memory state with what is persisted. Any key that is
// missing or fails to parse falls back to its default.
func (s *Store) Load() {
	var convs []*model.Conversation
	if !s.read(KeyConversations, &convs) {
		convs = nil
	}
	convs = sanitize(convs)

	var activeID string
	if !s.read(KeyActiveConversation, &activeID) {
		activeID = ""
	}

	theme := model.DefaultTheme
	var storedTheme model.Theme
	if s.read(KeyTheme, &storedTheme) && storedTheme.Valid() {
		theme = storedTheme
	}

	var user *model.User
	var storedUser model.User
	if s.read(KeyUser, &storedUser) && storedUser.Name != "" && storedUser.Email != "" {
		user = &storedUser
	}

	s.mu.Lock()
	s.conversations = convs
	s.activeID = activeID
	s.theme = theme
	s.user = user
	s.mu.Unlock()

	s.logger.Debug("state loaded", "conversations", len(convs), "has_active", activeID != "")
	s.notify(Event{Kind: EventLoaded})
}

// read decodes key into v. It reports false when the key is absent or
// unreadable.
func (s *Store) read(key string, v any) bool {
	raw, ok, err := s.kv.Get(key)
	if err != nil {
		s.logger.Warn("failed to read key", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		s.logger.Warn("discarding unparseable value", "key", key, "error", err)
		return false
	}
	return true
}

// sanitize drops entries a hand-edited or truncated file may contain.
func sanitize(convs []*model.Conversation) []*model.Conversation {
	out := make([]*model.Conversation, 0, len(convs))
	for _, c := range convs {
		if c == nil || c.ID == "" {
			continue
		}
		msgs := c.Messages[:0]
		for _, m := range c.Messages {
			if m != nil {
				msgs = append(msgs, m)
			}
		}
		c.Messages = msgs
		if c.Messages == nil {
			c.Messages = make([]*model.Message, 0)
		}
		out = append(out, c)
	}
	return out
}

// save writes the given keys. Must be called with s.mu held.
func (s *Store) save(keys ...string) {
	for _, key := range keys {
		var err error
		switch key {
		case KeyConversations:
			err = s.write(key, s.conversations)
		case KeyActiveConversation:
			err = s.write(key, s.activeID)
		case KeyTheme:
			err = s.write(key, s.theme)
		case KeyUser:
			if s.user == nil {
				err = s.kv.Delete(key)
			} else {
				err = s.write(key, s.user)
			}
		}
		if err != nil {
			s.logger.Error("failed to persist state", "key", key, "error", err)
		}
	}
}

func (s *Store) write(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.kv.Set(key, string(data))
}

// =============================================================================
// CONVERSATION MUTATIONS
// =============================================================================

// CreateConversation adds an empty conversation at the front of the
// collection, makes it active and returns a copy.
func (s *Store) CreateConversation(title string) *model.Conversation {
	conv := model.NewConversation(title)

	s.mu.Lock()
	s.conversations = append([]*model.Conversation{conv}, s.conversations...)
	s.activeID = conv.ID
	s.save(KeyConversations, KeyActiveConversation)
	cp := conv.Clone()
	s.mu.Unlock()

	s.notify(Event{Kind: EventConversationCreated, ConversationID: conv.ID})
	return cp
}

// AppendExchange appends a user message and an empty streaming assistant
// message to a conversation. It returns copies of both.
func (s *Store) AppendExchange(conversationID string, user *model.Message) (*model.Message, *model.Message, error) {
	if user == nil {
		return nil, nil, fmt.Errorf("append exchange: nil user message")
	}
	reply := model.NewAssistantMessage()

	s.mu.Lock()
	conv := s.find(conversationID)
	if conv == nil {
		s.mu.Unlock()
		return nil, nil, fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}
	userCopy := user.Clone()
	userCopy.Streaming = false
	conv.Append(userCopy, reply)
	s.save(KeyConversations)
	u, r := userCopy.Clone(), reply.Clone()
	s.mu.Unlock()

	s.notify(Event{Kind: EventMessagesAppended, ConversationID: conversationID, MessageID: reply.ID})
	return u, r, nil
}

// SetMessageContent replaces the content of a streaming assistant message.
func (s *Store) SetMessageContent(messageID, content string) error {
	s.mu.Lock()
	conv, msg := s.findMessage(messageID)
	if msg == nil {
		s.mu.Unlock()
		return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	if !msg.Streaming {
		s.mu.Unlock()
		return fmt.Errorf("message %s: %w", messageID, ErrNotStreaming)
	}
	msg.Content = content
	s.save(KeyConversations)
	s.mu.Unlock()

	s.notify(Event{Kind: EventMessageUpdated, ConversationID: conv.ID, MessageID: messageID})
	return nil
}

// FinalizeMessage ends streaming for a message. Its content is frozen from
// then on. Finalizing twice is a no-op.
func (s *Store) FinalizeMessage(messageID string) error {
	s.mu.Lock()
	conv, msg := s.findMessage(messageID)
	if msg == nil {
		s.mu.Unlock()
		return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	wasStreaming := msg.Streaming
	msg.Streaming = false
	s.mu.Unlock()

	if wasStreaming {
		s.notify(Event{Kind: EventMessageFinalized, ConversationID: conv.ID, MessageID: messageID})
	}
	return nil
}

// DeleteConversation removes a conversation. If it was active, no
// conversation is active afterwards.
func (s *Store) DeleteConversation(id string) error {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)
	keys := []string{KeyConversations}
	if s.activeID == id {
		s.activeID = ""
		keys = append(keys, KeyActiveConversation)
	}
	s.save(keys...)
	s.mu.Unlock()

	s.notify(Event{Kind: EventConversationDeleted, ConversationID: id})
	return nil
}

// SetActive makes a conversation active. An empty id clears the selection.
func (s *Store) SetActive(id string) error {
	s.mu.Lock()
	if id != "" && s.find(id) == nil {
		s.mu.Unlock()
		return fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	s.activeID = id
	s.save(KeyActiveConversation)
	s.mu.Unlock()

	s.notify(Event{Kind: EventActiveChanged, ConversationID: id})
	return nil
}

// =============================================================================
// THEME AND USER
// =============================================================================

// Theme returns the current theme.
func (s *Store) Theme() model.Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}

// SetTheme sets and persists the theme.
func (s *Store) SetTheme(t model.Theme) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTheme, t)
	}
	s.mu.Lock()
	s.theme = t
	s.save(KeyTheme)
	s.mu.Unlock()

	s.notify(Event{Kind: EventThemeChanged})
	return nil
}

// ToggleTheme switches between light and dark and returns the new theme.
func (s *Store) ToggleTheme() model.Theme {
	s.mu.Lock()
	s.theme = s.theme.Toggle()
	t := s.theme
	s.save(KeyTheme)
	s.mu.Unlock()

	s.notify(Event{Kind: EventThemeChanged})
	return t
}

// User returns a copy of the signed-in user, or nil.
func (s *Store) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// SetUser stores the signed-in user.
func (s *Store) SetUser(u model.User) {
	s.mu.Lock()
	s.user = &u
	s.save(KeyUser)
	s.mu.Unlock()

	s.notify(Event{Kind: EventUserChanged})
}

// ClearUser signs the user out.
func (s *Store) ClearUser() {
	s.mu.Lock()
	s.user = nil
	s.save(KeyUser)
	s.mu.Unlock()

	s.notify(Event{Kind: EventUserChanged})
}

// =============================================================================
// QUERIES
// =============================================================================

// Conversations returns copies of all conversations in storage order.
func (s *Store) Conversations() []*model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Conversation, len(s.conversations))
	for i, c := range s.conversations {
		out[i] = c.Clone()
	}
	return out
}

// List returns copies of all conversations, most recently updated first.
// Ties keep storage order.
func (s *Store) List() []*model.Conversation {
	out := s.Conversations()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Conversation returns a copy of a conversation.
func (s *Store) Conversation(id string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv := s.find(id)
	if conv == nil {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	return conv.Clone(), nil
}

// ActiveID returns the active conversation id, which may be empty or refer to
// no conversation.
func (s *Store) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Active returns a copy of the active conversation, or nil.
func (s *Store) Active() *model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if conv := s.find(s.activeID); conv != nil {
		return conv.Clone()
	}
	return nil
}

// Search returns conversations whose title or message text contains query,
// case-insensitively, in List order. An empty query matches everything.
func (s *Store) Search(query string) []*model.Conversation {
	query = strings.ToLower(strings.TrimSpace(query))
	all := s.List()
	if query == "" {
		return all
	}

	var results []*model.Conversation
	for _, conv := range all {
		if matches(conv, query) {
			results = append(results, conv)
		}
	}
	return results
}

func matches(conv *model.Conversation, query string) bool {
	if strings.Contains(strings.ToLower(conv.Title), query) {
		return true
	}
	for _, msg := range conv.Messages {
		if strings.Contains(strings.ToLower(msg.Content), query) {
			return true
		}
	}
	return false
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) find(id string) *model.Conversation {
	if idx := s.indexOf(id); idx >= 0 {
		return s.conversations[idx]
	}
	return nil
}

func (s *Store) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, c := range s.conversations {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) findMessage(messageID string) (*model.Conversation, *model.Message) {
	for _, c := range s.conversations {
		if msg := c.MessageByID(messageID); msg != nil {
			return c, msg
		}
	}
	return nil, nil
}
