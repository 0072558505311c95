// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/masterchat/internal/attachment"
	"github.com/jeranaias/masterchat/internal/logging"
	"github.com/jeranaias/masterchat/internal/model"
	"github.com/jeranaias/masterchat/internal/reducer"
	"github.com/jeranaias/masterchat/internal/store"
)

var (
	// ErrStreaming indicates a send while a reply is still streaming.
	ErrStreaming = errors.New("a response is still streaming")

	// ErrNoAttachment indicates an attachment index out of range.
	ErrNoAttachment = errors.New("no such attachment")

	// ErrNameRequired indicates a login without a name.
	ErrNameRequired = errors.New("name is required")

	// ErrInvalidEmail indicates a login with a malformed email address.
	ErrInvalidEmail = errors.New("invalid email address")
)

// Streamer produces the reply fragments for a new message.
type Streamer interface {
	StreamChat(ctx context.Context, history []*model.Message, newMessage *model.Message) <-chan string
}

// Session is the chat session. It is safe for concurrent use.
type Session struct {
	store   *store.Store
	client  Streamer
	encoder *attachment.Encoder
	reducer *reducer.Reducer
	logger  *slog.Logger

	mu        sync.Mutex
	input     string
	pending   []model.Attachment
	streaming bool
	rng       *rand.Rand
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithEncoder sets the attachment encoder.
func WithEncoder(enc *attachment.Encoder) Option {
	return func(s *Session) { s.encoder = enc }
}

// WithRand sets the random source used for suggestions.
func WithRand(r *rand.Rand) Option {
	return func(s *Session) { s.rng = r }
}

// New creates a Session over st, streaming replies from client.
func New(st *store.Store, client Streamer, opts ...Option) *Session {
	s := &Session{
		store:  st,
		client: client,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.Or(s.logger).With("component", "session")
	if s.encoder == nil {
		s.encoder = attachment.NewEncoder(attachment.Options{Logger: s.logger})
	}
	if s.rng == nil {
		seed := uint64(time.Now().UnixNano())
		s.rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	s.reducer = reducer.New(st, s.logger)
	return s
}

// Store returns the underlying conversation store.
func (s *Session) Store() *store.Store {
	return s.store
}

// =============================================================================
// PENDING INPUT
// =============================================================================

// SetInput replaces the pending input text.
func (s *Session) SetInput(text string) {
	s.mu.Lock()
	s.input = text
	s.mu.Unlock()
}

// Input returns the pending input text.
func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// Attach encodes sources and appends the successful ones to the pending
// attachments in selection order. Failed files are dropped; their results
// carry the error.
func (s *Session) Attach(ctx context.Context, sources ...attachment.Source) []attachment.Result {
	results := s.encoder.EncodeAll(ctx, sources)
	added := attachment.Successful(results)

	s.mu.Lock()
	s.pending = append(s.pending, added...)
	s.mu.Unlock()

	return results
}

// PendingAttachments returns a copy of the pending attachments.
func (s *Session) PendingAttachments() []model.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Attachment(nil), s.pending...)
}

// RemoveAttachment drops the pending attachment at index i.
func (s *Session) RemoveAttachment(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.pending) {
		return fmt.Errorf("%w: %d", ErrNoAttachment, i)
	}
	s.pending = append(s.pending[:i:i], s.pending[i+1:]...)
	return nil
}

// IsStreaming reports whether a reply is streaming.
func (s *Session) IsStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// NewChat creates and activates an empty conversation.
func (s *Session) NewChat() *model.Conversation {
	return s.store.CreateConversation("")
}

// Select makes a conversation active.
func (s *Session) Select(id string) error {
	return s.store.SetActive(id)
}

// Delete removes a conversation.
func (s *Session) Delete(id string) error {
	return s.store.DeleteConversation(id)
}

// =============================================================================
// SEND
// =============================================================================

// Send submits the pending input and attachments and blocks until the reply
// has finished streaming into the store. It reports false with a nil error
// when there is nothing to send.
func (s *Session) Send(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.streaming {
		s.mu.Unlock()
		return false, ErrStreaming
	}
	text, atts := s.input, s.pending
	if strings.TrimSpace(text) == "" && len(atts) == 0 {
		s.mu.Unlock()
		return false, nil
	}
	s.streaming = true
	s.input, s.pending = "", nil
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.streaming = false
		s.mu.Unlock()
	}()

	conv := s.store.Active()
	if conv == nil {
		conv = s.store.CreateConversation("")
	}
	history := conv.Messages

	user, reply, err := s.store.AppendExchange(conv.ID, model.NewUserMessage(text, atts))
	if err != nil {
		// The conversation vanished between lookup and append; keep the draft.
		s.mu.Lock()
		s.input, s.pending = text, atts
		s.mu.Unlock()
		return false, err
	}

	start := time.Now()
	final := s.reducer.Run(reply.ID, s.client.StreamChat(ctx, history, user))

	s.logger.Info("reply complete",
		"conversation_id", conv.ID,
		"message_id", reply.ID,
		"attachments", len(atts),
		"reply_chars", len(final),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return true, nil
}

// =============================================================================
// USER AND THEME
// =============================================================================

// Login stores the user. It is a convenience, not authentication.
func (s *Session) Login(name, email string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameRequired
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Address == "" {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	s.store.SetUser(model.User{Name: name, Email: addr.Address})
	return nil
}

// Logout clears the stored user.
func (s *Session) Logout() {
	s.store.ClearUser()
}

// ToggleTheme switches the theme and returns the new one.
func (s *Session) ToggleTheme() model.Theme {
	return s.store.ToggleTheme()
}

// Suggestions returns n distinct prompts picked at random.
func (s *Session) Suggestions(n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pick(s.rng, n)
}
