// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

// EventKind identifies what changed.
type EventKind int

const (
	EventLoaded EventKind = iota
	EventConversationCreated
	EventConversationDeleted
	EventActiveChanged
	EventMessagesAppended
	EventMessageUpdated
	EventMessageFinalized
	EventThemeChanged
	EventUserChanged
)

var eventNames = map[EventKind]string{
	EventLoaded:              "loaded",
	EventConversationCreated: "conversation_created",
	EventConversationDeleted: "conversation_deleted",
	EventActiveChanged:       "active_changed",
	EventMessagesAppended:    "messages_appended",
	EventMessageUpdated:      "message_updated",
	EventMessageFinalized:    "message_finalized",
	EventThemeChanged:        "theme_changed",
	EventUserChanged:         "user_changed",
}

// String returns the event name.
func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event describes a state change. Ids are set when relevant.
type Event struct {
	Kind           EventKind
	ConversationID string
	MessageID      string
}

// Subscribe registers fn to be called after every change. fn runs on the
// goroutine that made the change, outside the store lock, so it may query
// the store. The returned function unregisters it.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *Store) notify(e Event) {
	s.listenersMu.Lock()
	fns := make([]func(Event), 0, len(s.listeners))
	for id := 0; id < s.nextListener; id++ {
		if fn, ok := s.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}
