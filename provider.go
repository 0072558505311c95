// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jeranaias/masterchat/internal/chat"
	"github.com/jeranaias/masterchat/internal/cloud"
	"github.com/jeranaias/masterchat/internal/config"
	"github.com/jeranaias/masterchat/internal/gemini"
	"github.com/jeranaias/masterchat/internal/ollama"
)

// ollamaCheckTimeout bounds the startup health check.
const ollamaCheckTimeout = 3 * time.Second

// newProvider builds the model backend named in the config.
func newProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (chat.Provider, error) {
	switch cfg.Provider.Name {
	case config.ProviderGemini, "":
		p, err := gemini.New(ctx, gemini.Config{
			APIKey:   cfg.Gemini.APIKey,
			Vertex:   cfg.Gemini.Backend == config.GeminiBackendVertex,
			Project:  cfg.Gemini.Project,
			Location: cfg.Gemini.Location,
		}, logger)
		if err != nil {
			return nil, err
		}
		return p, nil

	case config.ProviderOpenRouter:
		client := cloud.NewOpenRouterClient(cfg.OpenRouter.APIKey).
			WithBaseURL(cfg.OpenRouter.BaseURL).
			WithLogger(logger)
		if !client.IsConfigured() {
			return nil, fmt.Errorf("%w: set MASTERCHAT_OPENROUTER_KEY or openrouter.api_key", cloud.ErrNotConfigured)
		}
		return cloud.NewProvider(client), nil

	case config.ProviderOllama:
		client := ollama.NewClientWithConfig(&ollama.ClientConfig{
			BaseURL:      cfg.Ollama.URL,
			DefaultModel: cfg.EffectiveModel(),
			Logger:       logger,
		})
		checkCtx, cancel := context.WithTimeout(ctx, ollamaCheckTimeout)
		defer cancel()
		// Not fatal: the server may be started later. Replies fail with the
		// error fragment until then.
		if err := client.CheckRunning(checkCtx); ollama.IsNotRunning(err) {
			logger.Warn("ollama not running", "url", cfg.Ollama.URL)
		} else if err != nil {
			logger.Warn("ollama health check failed", "url", cfg.Ollama.URL, "error", err)
		}
		return ollama.NewProvider(client), nil

	case config.ProviderEcho:
		return chat.NewEchoProvider(), nil

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider.Name)
	}
}
