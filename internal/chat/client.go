// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jeranaias/masterchat/internal/logging"
	"github.com/jeranaias/masterchat/internal/model"
	"github.com/jeranaias/masterchat/internal/prompt"
)

// ErrorFragment is the last fragment of a stream that failed.
const ErrorFragment = "Error: Unable to process request. Please check your connection and try again."

// DefaultBufferSize is the fragment channel capacity.
const DefaultBufferSize = 64

var (
	// ErrNoProvider indicates a Client without a provider.
	ErrNoProvider = errors.New("no chat provider configured")

	// ErrProviderPanic wraps a panic raised inside a provider.
	ErrProviderPanic = errors.New("provider panicked")
)

// Provider streams one model response. Stream calls emit once per fragment
// in arrival order and returns when the response ends. It must not call emit
// after returning.
type Provider interface {
	Name() string
	Stream(ctx context.Context, req *prompt.Request, emit func(fragment string)) error
}

// Client is the streaming chat client. It is safe for concurrent use; every
// StreamChat call is an independent provider session.
type Client struct {
	provider  Provider
	assembler *prompt.Assembler
	logger    *slog.Logger
	buffer    int
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a Client. A nil assembler uses prompt defaults.
func NewClient(provider Provider, assembler *prompt.Assembler, opts ...Option) *Client {
	if assembler == nil {
		assembler = prompt.NewAssembler("", "")
	}
	c := &Client{
		provider:  provider,
		assembler: assembler,
		buffer:    DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.Or(c.logger).With("component", "chat")
	return c
}

// Provider returns the configured provider.
func (c *Client) Provider() Provider {
	return c.provider
}

// StreamChat sends history plus newMessage to the provider and returns the
// response fragments. The channel is closed when the response ends. On any
// failure the final value is ErrorFragment. The caller must drain the channel.
func (c *Client) StreamChat(ctx context.Context, history []*model.Message, newMessage *model.Message) <-chan string {
	out := make(chan string, c.buffer)
	req := c.assembler.Assemble(history, newMessage)

	messageID := ""
	if newMessage != nil {
		messageID = newMessage.ID
	}

	go c.run(ctx, req, messageID, out)
	return out
}

func (c *Client) run(ctx context.Context, req *prompt.Request, messageID string, out chan<- string) {
	defer close(out)

	logger := c.logger.With("message_id", messageID, "model", req.Model, "turns", len(req.History)+1)
	start := time.Now()
	fragments := 0

	err := c.stream(ctx, req, func(fragment string) {
		if fragment == "" {
			return
		}
		fragments++
		out <- fragment
	})

	if err != nil {
		logger.Error("chat stream failed",
			"error", err,
			"fragments", fragments,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		out <- ErrorFragment
		return
	}

	logger.Info("chat stream complete",
		"fragments", fragments,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// stream calls the provider, converting a panic into an error.
func (c *Client) stream(ctx context.Context, req *prompt.Request, emit func(string)) (err error) {
	if c.provider == nil {
		return ErrNoProvider
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrProviderPanic, c.provider.Name(), r)
		}
	}()

	if err := c.provider.Stream(ctx, req, emit); err != nil {
		return fmt.Errorf("%s: %w", c.provider.Name(), err)
	}
	return nil
}

// Collect drains a fragment channel and returns the fragments in order.
func Collect(fragments <-chan string) []string {
	var all []string
	for f := range fragments {
		all = append(all, f)
	}
	return all
}
