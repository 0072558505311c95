// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/masterchat/internal/logging"
	"github.com/jeranaias/masterchat/internal/model"
	"github.com/jeranaias/masterchat/internal/storage"
)

func openMemory(t *testing.T) (*Store, *storage.MemoryKV) {
	t.Helper()
	kv := storage.NewMemoryKV()
	return Open(kv, logging.Discard()), kv
}

// failingKV accepts reads and rejects every write.
type failingKV struct{ *storage.MemoryKV }

func (failingKV) Set(string, string) error { return errors.New("disk full") }
func (failingKV) Delete(string) error      { return errors.New("disk full") }

// =============================================================================
// LOAD TESTS
// =============================================================================

func TestOpenEmptyUsesDefaults(t *testing.T) {
	s, _ := openMemory(t)

	assert.Empty(t, s.Conversations())
	assert.Empty(t, s.ActiveID())
	assert.Nil(t, s.Active())
	assert.Equal(t, model.ThemeDark, s.Theme())
	assert.Nil(t, s.User())
}

func TestLoadCorruptValuesFallBackToDefaults(t *testing.T) {
	kv := storage.NewMemoryKVFrom(map[string]string{
		KeyConversations:      `[{"id": "broken"`,
		KeyActiveConversation: `42`,
		KeyTheme:              `"purple"`,
		KeyUser:               `not json`,
	})

	s := Open(kv, logging.Discard())

	assert.Empty(t, s.Conversations())
	assert.Empty(t, s.ActiveID())
	assert.Equal(t, model.DefaultTheme, s.Theme())
	assert.Nil(t, s.User())
}

func TestLoadKeepsEachValidKey(t *testing.T) {
	kv := storage.NewMemoryKVFrom(map[string]string{
		KeyConversations: `garbage`,
		KeyTheme:         `"light"`,
		KeyUser:          `{"name":"Ada","email":"ada@example.com"}`,
	})

	s := Open(kv, logging.Discard())

	assert.Empty(t, s.Conversations())
	assert.Equal(t, model.ThemeLight, s.Theme())
	require.NotNil(t, s.User())
	assert.Equal(t, "Ada", s.User().Name)
}

func TestReopenIsIdempotent(t *testing.T) {
	s, kv := openMemory(t)

	first := s.CreateConversation("")
	_, reply, err := s.AppendExchange(first.ID, model.NewUserMessage("hello there", nil))
	require.NoError(t, err)
	require.NoError(t, s.SetMessageContent(reply.ID, "hi!"))
	require.NoError(t, s.FinalizeMessage(reply.ID))

	second := s.CreateConversation("")
	_, _, err = s.AppendExchange(second.ID, model.NewUserMessage("", []model.Attachment{
		{Name: "cat.png", MIMEType: "image/png", Data: "data:image/png;base64,AAEC"},
	}))
	require.NoError(t, err)
	s.SetTheme(model.ThemeLight)
	s.SetUser(model.User{Name: "Ada", Email: "ada@example.com"})

	reopened := Open(kv, logging.Discard())

	// The in-flight flag is runtime state only.
	want := s.Conversations()
	for _, c := range want {
		for _, m := range c.Messages {
			m.Streaming = false
		}
	}
	assert.Equal(t, want, reopened.Conversations())
	assert.Equal(t, s.ActiveID(), reopened.ActiveID())
	assert.Equal(t, model.ThemeLight, reopened.Theme())
	assert.Equal(t, s.User(), reopened.User())
}

func TestPersistedFormat(t *testing.T) {
	s, kv := openMemory(t)
	conv := s.CreateConversation("")
	_, _, err := s.AppendExchange(conv.ID, model.NewUserMessage("hi", nil))
	require.NoError(t, err)

	snap := kv.Snapshot()

	assert.Equal(t, `"`+conv.ID+`"`, snap[KeyActiveConversation])

	var raw []map[string]any
	require.NoError(t, json.Unmarshal([]byte(snap[KeyConversations]), &raw))
	require.Len(t, raw, 1)
	assert.Equal(t, conv.ID, raw[0]["id"])
	assert.Equal(t, "hi", raw[0]["title"])
	assert.Contains(t, raw[0], "updatedAt")
	msgs := raw[0]["messages"].([]any)
	require.Len(t, msgs, 2)
	first := msgs[0].(map[string]any)
	assert.Equal(t, "user", first["role"])
	assert.Contains(t, first, "timestamp")
	assert.NotContains(t, first, "Streaming")
}

// =============================================================================
// MUTATION TESTS
// =============================================================================

func TestCreateConversationPrependsAndActivates(t *testing.T) {
	s, _ := openMemory(t)

	a := s.CreateConversation("")
	b := s.CreateConversation("")

	all := s.Conversations()
	require.Len(t, all, 2)
	assert.Equal(t, b.ID, all[0].ID)
	assert.Equal(t, a.ID, all[1].ID)
	assert.Equal(t, model.DefaultConversationTitle, all[0].Title)
	assert.Equal(t, b.ID, s.ActiveID())
}

func TestAppendExchangeDerivesTitleOnce(t *testing.T) {
	s, _ := openMemory(t)
	conv := s.CreateConversation("")

	user, reply, err := s.AppendExchange(conv.ID, model.NewUserMessage("What is the capital of France and why?", nil))
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, user.Role)
	assert.Equal(t, model.RoleAssistant, reply.Role)
	assert.True(t, reply.Streaming)
	assert.Empty(t, reply.Content)

	_, _, err = s.AppendExchange(conv.ID, model.NewUserMessage("something else entirely", nil))
	require.NoError(t, err)

	got, err := s.Conversation(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "What is the capital of France ", got.Title)
	assert.Len(t, got.Messages, 4)
	assert.True(t, got.UpdatedAt.After(conv.UpdatedAt) || got.UpdatedAt.Equal(conv.UpdatedAt))
}

func TestAppendExchangeTitleFromAttachment(t *testing.T) {
	s, _ := openMemory(t)
	conv := s.CreateConversation("")

	_, _, err := s.AppendExchange(conv.ID, model.NewUserMessage("", []model.Attachment{{Name: "report.pdf"}}))
	require.NoError(t, err)

	got, _ := s.Conversation(conv.ID)
	assert.Equal(t, "report.pdf", got.Title)
}

func TestAppendExchangeUnknownConversation(t *testing.T) {
	s, _ := openMemory(t)

	_, _, err := s.AppendExchange("missing", model.NewUserMessage("hi", nil))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetMessageContentOnlyWhileStreaming(t *testing.T) {
	s, _ := openMemory(t)
	conv := s.CreateConversation("")
	user, reply, err := s.AppendExchange(conv.ID, model.NewUserMessage("hi", nil))
	require.NoError(t, err)

	require.NoError(t, s.SetMessageContent(reply.ID, "Hel"))
	require.NoError(t, s.SetMessageContent(reply.ID, "Hello"))
	assert.ErrorIs(t, s.SetMessageContent(user.ID, "edited"), ErrNotStreaming)

	require.NoError(t, s.FinalizeMessage(reply.ID))
	require.NoError(t, s.FinalizeMessage(reply.ID))
	assert.ErrorIs(t, s.SetMessageContent(reply.ID, "late"), ErrNotStreaming)
	assert.ErrorIs(t, s.SetMessageContent("nope", "x"), ErrNotFound)
	assert.ErrorIs(t, s.FinalizeMessage("nope"), ErrNotFound)

	got, _ := s.Conversation(conv.ID)
	assert.Equal(t, "Hello", got.LastMessage().Content)
	assert.False(t, got.LastMessage().Streaming)
}

func TestDeleteConversation(t *testing.T) {
	s, _ := openMemory(t)
	a := s.CreateConversation("")
	b := s.CreateConversation("")

	require.NoError(t, s.DeleteConversation(a.ID))
	assert.Equal(t, b.ID, s.ActiveID(), "deleting an inactive conversation keeps the selection")

	require.NoError(t, s.DeleteConversation(b.ID))
	assert.Empty(t, s.ActiveID())
	assert.Empty(t, s.Conversations())

	assert.ErrorIs(t, s.DeleteConversation(b.ID), ErrNotFound)
}

func TestSetActive(t *testing.T) {
	s, _ := openMemory(t)
	a := s.CreateConversation("")
	s.CreateConversation("")

	require.NoError(t, s.SetActive(a.ID))
	assert.Equal(t, a.ID, s.Active().ID)

	require.NoError(t, s.SetActive(""))
	assert.Nil(t, s.Active())

	assert.ErrorIs(t, s.SetActive("missing"), ErrNotFound)
}

func TestThemeAndUser(t *testing.T) {
	s, kv := openMemory(t)

	assert.Equal(t, model.ThemeLight, s.ToggleTheme())
	assert.Equal(t, model.ThemeDark, s.ToggleTheme())
	assert.ErrorIs(t, s.SetTheme("sepia"), ErrInvalidTheme)
	require.NoError(t, s.SetTheme(model.ThemeLight))
	assert.Equal(t, `"light"`, kv.Snapshot()[KeyTheme])

	s.SetUser(model.User{Name: "Ada", Email: "ada@example.com"})
	_, ok, _ := kv.Get(KeyUser)
	assert.True(t, ok)

	s.ClearUser()
	assert.Nil(t, s.User())
	_, ok, _ = kv.Get(KeyUser)
	assert.False(t, ok)
}

func TestPersistenceFailureKeepsMutation(t *testing.T) {
	s := Open(failingKV{storage.NewMemoryKV()}, logging.Discard())

	conv := s.CreateConversation("")
	_, _, err := s.AppendExchange(conv.ID, model.NewUserMessage("hi", nil))

	require.NoError(t, err)
	got, err := s.Conversation(conv.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 2)
}

// =============================================================================
// QUERY TESTS
// =============================================================================

func TestQueriesReturnCopies(t *testing.T) {
	s, _ := openMemory(t)
	conv := s.CreateConversation("")
	_, _, err := s.AppendExchange(conv.ID, model.NewUserMessage("original", nil))
	require.NoError(t, err)

	got, _ := s.Conversation(conv.ID)
	got.Title = "changed"
	got.Messages[0].Content = "changed"

	again, _ := s.Conversation(conv.ID)
	assert.Equal(t, "original", again.Title)
	assert.Equal(t, "original", again.Messages[0].Content)
}

func TestListSortsByUpdatedAt(t *testing.T) {
	s, _ := openMemory(t)
	older := s.CreateConversation("")
	newer := s.CreateConversation("")

	time.Sleep(2 * time.Millisecond)
	_, _, err := s.AppendExchange(older.ID, model.NewUserMessage("bump", nil))
	require.NoError(t, err)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, older.ID, list[0].ID)
	assert.Equal(t, newer.ID, list[1].ID)

	// Storage order is unchanged.
	assert.Equal(t, newer.ID, s.Conversations()[0].ID)
}

func TestSearch(t *testing.T) {
	s, _ := openMemory(t)
	a := s.CreateConversation("")
	_, reply, _ := s.AppendExchange(a.ID, model.NewUserMessage("Tell me about Go channels", nil))
	s.SetMessageContent(reply.ID, "Channels connect GOROUTINES.")
	s.FinalizeMessage(reply.ID)
	b := s.CreateConversation("")
	_, _, _ = s.AppendExchange(b.ID, model.NewUserMessage("Best pasta recipe", nil))

	assert.Len(t, s.Search(""), 2)

	byTitle := s.Search("go CHANNELS")
	require.Len(t, byTitle, 1)
	assert.Equal(t, a.ID, byTitle[0].ID)

	byReply := s.Search("goroutines")
	require.Len(t, byReply, 1)
	assert.Equal(t, a.ID, byReply[0].ID)

	assert.Empty(t, s.Search("sushi"))
}

// =============================================================================
// EVENT TESTS
// =============================================================================

func TestSubscribe(t *testing.T) {
	s, _ := openMemory(t)

	var kinds []EventKind
	unsubscribe := s.Subscribe(func(e Event) {
		kinds = append(kinds, e.Kind)
		// Listeners may read the store.
		_ = s.Conversations()
	})

	conv := s.CreateConversation("")
	_, reply, _ := s.AppendExchange(conv.ID, model.NewUserMessage("hi", nil))
	s.SetMessageContent(reply.ID, "yo")
	s.FinalizeMessage(reply.ID)

	unsubscribe()
	s.ToggleTheme()

	assert.Equal(t, []EventKind{
		EventConversationCreated,
		EventMessagesAppended,
		EventMessageUpdated,
		EventMessageFinalized,
	}, kinds)
	assert.Equal(t, "message_updated", EventMessageUpdated.String())
}
