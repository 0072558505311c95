// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for masterchat.
//
// Configuration is TOML with sensible defaults, environment variable
// overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure
//   - ProviderConfig: Which model backend answers, and with which model
//   - GeminiConfig, OpenRouterConfig, OllamaConfig: Backend settings
//   - StorageConfig: Where conversations are persisted
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (MASTERCHAT_*, GEMINI_API_KEY, GOOGLE_API_KEY)
//   - ~/.masterchat/config.toml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	modelID := cfg.EffectiveModel()
package config
