// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gemini streams chat replies from Google Gemini, through either the
// Gemini API (API key) or Vertex AI (application default credentials).
package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"google.golang.org/genai"

	"github.com/jeranaias/masterchat/internal/logging"
	"github.com/jeranaias/masterchat/internal/prompt"
)

// ErrNotConfigured indicates a missing API key or Vertex project.
var ErrNotConfigured = errors.New("gemini not configured")

// Config selects the Gemini backend.
type Config struct {
	APIKey string

	// Vertex switches to Vertex AI; Project and Location are then required.
	Vertex   bool
	Project  string
	Location string
}

// streamFunc matches genai's Models.GenerateContentStream.
type streamFunc func(ctx context.Context, model string, contents []*genai.Content,
	config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]

// Provider implements chat.Provider on top of genai.
type Provider struct {
	generate streamFunc
	logger   *slog.Logger
}

// New creates a Provider. No network call is made until Stream.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Provider, error) {
	cc := &genai.ClientConfig{}
	if cfg.Vertex {
		if cfg.Project == "" || cfg.Location == "" {
			return nil, fmt.Errorf("%w: vertex needs project and location", ErrNotConfigured)
		}
		cc.Backend = genai.BackendVertexAI
		cc.Project = cfg.Project
		cc.Location = cfg.Location
	} else {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: set GEMINI_API_KEY or gemini.api_key", ErrNotConfigured)
		}
		cc.Backend = genai.BackendGeminiAPI
		cc.APIKey = cfg.APIKey
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return newWithStream(client.Models.GenerateContentStream, logger), nil
}

func newWithStream(fn streamFunc, logger *slog.Logger) *Provider {
	return &Provider{
		generate: fn,
		logger:   logging.Or(logger).With("component", "gemini"),
	}
}

// Name implements chat.Provider.
func (p *Provider) Name() string { return "gemini" }

// Stream implements chat.Provider. Each response chunk's text is one fragment.
func (p *Provider) Stream(ctx context.Context, req *prompt.Request, emit func(string)) error {
	contents := Contents(req)
	chunks := 0

	for resp, err := range p.generate(ctx, req.Model, contents, GenerateConfig(req)) {
		if err != nil {
			return fmt.Errorf("gemini stream: %w", err)
		}
		if resp == nil {
			continue
		}
		chunks++
		if text := resp.Text(); text != "" {
			emit(text)
		}
	}

	p.logger.Debug("gemini stream finished", "model", req.Model, "chunks", chunks)
	return nil
}

// Contents converts the request turns to genai contents.
func Contents(req *prompt.Request) []*genai.Content {
	turns := req.Turns()
	contents := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		var role genai.Role = genai.RoleUser
		if turn.Role == prompt.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromParts(Parts(turn.Parts), role))
	}
	return contents
}

// Parts converts prompt parts to genai parts.
func Parts(parts []prompt.Part) []*genai.Part {
	out := make([]*genai.Part, 0, len(parts))
	for _, part := range parts {
		if part.IsText() {
			out = append(out, genai.NewPartFromText(part.Text))
			continue
		}
		out = append(out, &genai.Part{InlineData: &genai.Blob{
			MIMEType: part.Inline.MIMEType,
			Data:     part.Inline.Data,
		}})
	}
	return out
}

// GenerateConfig returns the per-request configuration.
func GenerateConfig(req *prompt.Request) *genai.GenerateContentConfig {
	if req.SystemInstruction == "" {
		return nil
	}
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.SystemInstruction, genai.RoleUser),
	}
}
