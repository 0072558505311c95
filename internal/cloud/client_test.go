// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/masterchat/internal/logging"
	"github.com/jeranaias/masterchat/internal/prompt"
)

func sseServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *OpenRouterClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(srv.Close)
	return NewOpenRouterClient("test-key").
		WithBaseURL(srv.URL).
		WithHTTPClient(srv.Client()).
		WithLogger(logging.Discard())
}

func writeEvents(w http.ResponseWriter, events ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, e := range events {
		fmt.Fprintf(w, "data: %s\n\n", e)
	}
}

func delta(content string) string {
	return fmt.Sprintf(`{"id":"gen-1","choices":[{"delta":{"content":%q}}]}`, content)
}

func TestChatStreamFragments(t *testing.T) {
	client := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeEvents(w, delta("Hel"), delta("lo"), "[DONE]", delta("ignored"))
	})

	var got []string
	err := client.ChatStream(context.Background(), "", []ChatMessage{NewUserMessage("hi")}, func(c StreamChunk) {
		got = append(got, c.GetContent())
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo"}, got)
}

func TestChatStreamRequest(t *testing.T) {
	var body ChatRequest
	var raw map[string]any
	client := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		assert.Equal(t, "masterchat", r.Header.Get("X-Title"))
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		_ = json.Unmarshal(data, &raw)
		writeEvents(w, "[DONE]")
	})

	messages := []ChatMessage{
		NewSystemMessage("sys"),
		NewMultipartMessage("user", []ContentPart{TextPart("look"), ImagePart("data:image/png;base64,AA==")}),
	}
	require.NoError(t, client.ChatStream(context.Background(), "vendor/model", messages, func(StreamChunk) {}))

	assert.Equal(t, "vendor/model", body.Model)
	assert.True(t, body.Stream)
	msgs := raw["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "sys", msgs[0].(map[string]any)["content"])
	parts := msgs[1].(map[string]any)["content"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, "image_url", parts[1].(map[string]any)["type"])
	assert.Equal(t, "data:image/png;base64,AA==", parts[1].(map[string]any)["image_url"].(map[string]any)["url"])
}

func TestChatStreamDefaultModel(t *testing.T) {
	var body ChatRequest
	client := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeEvents(w, "[DONE]")
	})
	require.NoError(t, client.ChatStream(context.Background(), "", nil, func(StreamChunk) {}))
	assert.Equal(t, DefaultModel, body.Model)
}

func TestChatStreamNotConfigured(t *testing.T) {
	client := NewOpenRouterClient("  ")
	assert.False(t, client.IsConfigured())
	err := client.ChatStream(context.Background(), "", nil, func(StreamChunk) {})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestChatStreamErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"code":401,"message":"bad key"}}`, ErrAuthFailed},
		{"credits", http.StatusPaymentRequired, `{"error":{"message":"top up"}}`, ErrInsufficientCredits},
		{"model", http.StatusNotFound, ``, ErrModelNotFound},
		{"rate", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, ErrRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			err := client.ChatStream(context.Background(), "", nil, func(StreamChunk) {})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestChatStreamRetryAfter(t *testing.T) {
	client := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	err := client.ChatStream(context.Background(), "", nil, func(StreamChunk) {})

	var rl *RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, 7*time.Second, rl.RetryAfter)
	assert.Contains(t, rl.Error(), "retry after 7s")
}

func TestChatStreamServerError(t *testing.T) {
	client := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, `{"error":{"code":"upstream","message":"provider down"}}`)
	})
	err := client.ChatStream(context.Background(), "", nil, func(StreamChunk) {})

	var orErr *OpenRouterError
	require.True(t, errors.As(err, &orErr))
	assert.Equal(t, http.StatusBadGateway, orErr.Status)
	assert.Equal(t, "upstream", orErr.Code)
	assert.Equal(t, "provider down", orErr.Message)
}

func TestChatStreamMidStreamError(t *testing.T) {
	client := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeEvents(w, delta("Parti"), `{"error":{"code":502,"message":"upstream reset"}}`, delta("never"))
	})

	var got []string
	err := client.ChatStream(context.Background(), "", nil, func(c StreamChunk) {
		got = append(got, c.GetContent())
	})

	var orErr *OpenRouterError
	require.True(t, errors.As(err, &orErr))
	assert.Equal(t, "502", orErr.Code)
	assert.Equal(t, []string{"Parti"}, got)
}

// collect streams a chat and joins the content of every chunk.
func collect(client *OpenRouterClient) (string, error) {
	var sb strings.Builder
	err := client.ChatStream(context.Background(), "", nil, func(chunk StreamChunk) {
		sb.WriteString(chunk.GetContent())
	})
	return sb.String(), err
}

func TestChatStreamSkipsMalformedChunks(t *testing.T) {
	client := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, ": keepalive\n\n")
		io.WriteString(w, "data: {not json\n\n")
		writeEvents(w, delta("ok"))
	})

	out, err := collect(client)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestChatStreamFinishReasonEnds(t *testing.T) {
	client := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeEvents(w,
			delta("a"),
			`{"choices":[{"delta":{"content":"b"},"finish_reason":"stop"}]}`,
			delta("c"),
		)
	})
	out, err := collect(client)
	require.NoError(t, err)
	assert.Equal(t, "ab", out)
}

func TestSSEReaderMultiLineData(t *testing.T) {
	input := "event: message\ndata: first\ndata:second\r\nid: 3\n\ndata: tail"
	r := NewSSEReader(strings.NewReader(input))

	event, data, err := r.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, "message", event)
	assert.Equal(t, "first\nsecond", string(data))

	_, data, err = r.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, "tail", string(data))

	_, _, err = r.ReadEvent()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSSEReaderChunkTooLarge(t *testing.T) {
	r := NewSSEReader(strings.NewReader("data: " + strings.Repeat("x", MaxChunkSize+1) + "\n\n"))
	_, _, err := r.ReadEvent()
	assert.ErrorIs(t, err, ErrChunkTooLarge)
}

func TestOpenRouterError(t *testing.T) {
	err := &OpenRouterError{Code: "bad_request", Message: "nope", Status: 400}
	assert.Equal(t, "OpenRouter error [bad_request] (HTTP 400): nope", err.Error())

	err = &OpenRouterError{Message: "nope", Status: 500}
	assert.Equal(t, "OpenRouter error (HTTP 500): nope", err.Error())
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, 3*time.Second, parseRetryAfter("3"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))

	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	d := parseRetryAfter(future)
	assert.InDelta(t, time.Minute.Seconds(), d.Seconds(), 2)
}

func TestMessages(t *testing.T) {
	req := &prompt.Request{
		Model:             "m",
		SystemInstruction: "be brief",
		History: []prompt.Turn{
			{Role: prompt.RoleUser, Parts: []prompt.Part{prompt.TextPart("q1")}},
			{Role: prompt.RoleModel, Parts: []prompt.Part{prompt.TextPart("a1")}},
		},
		NewTurn: []prompt.Part{prompt.TextPart("look"), prompt.InlinePart("image/png", []byte{0x89, 0x50})},
	}

	msgs := Messages(req)
	require.Len(t, msgs, 4)
	assert.Equal(t, NewSystemMessage("be brief"), msgs[0])
	assert.Equal(t, NewUserMessage("q1"), msgs[1])
	assert.Equal(t, NewAssistantMessage("a1"), msgs[2])

	parts, ok := msgs[3].Content.([]ContentPart)
	require.True(t, ok)
	assert.Equal(t, "user", msgs[3].Role)
	assert.Equal(t, TextPart("look"), parts[0])
	assert.Equal(t, "data:image/png;base64,iVA=", parts[1].ImageURL.URL)
}

func TestMessagesWithoutSystemInstruction(t *testing.T) {
	msgs := Messages(&prompt.Request{NewTurn: []prompt.Part{prompt.TextPart("hi")}})
	require.Len(t, msgs, 1)
	assert.Equal(t, NewUserMessage("hi"), msgs[0])
}

func TestProviderStream(t *testing.T) {
	client := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeEvents(w, delta("x"), delta("y"), "[DONE]")
	})
	p := NewProvider(client)
	assert.Equal(t, "openrouter", p.Name())

	var got []string
	err := p.Stream(context.Background(), &prompt.Request{NewTurn: []prompt.Part{prompt.TextPart("hi")}}, func(s string) {
		got = append(got, s)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, got)
}
