// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jeranaias/masterchat/internal/prompt"
)

// isolate points HOME at a temp dir and clears every override variable.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, name := range []string{
		"MASTERCHAT_PROVIDER", "MASTERCHAT_MODEL", "MASTERCHAT_API_KEY",
		"GEMINI_API_KEY", "GOOGLE_API_KEY", "MASTERCHAT_OPENROUTER_KEY",
		"MASTERCHAT_OLLAMA_URL", "MASTERCHAT_STORAGE", "MASTERCHAT_DATA_DIR",
		"MASTERCHAT_MAX_ATTACHMENT_BYTES", "MASTERCHAT_LOG_LEVEL",
	} {
		t.Setenv(name, "")
	}
	return home
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() should validate, got %v", err)
	}
	if cfg.EffectiveModel() != prompt.DefaultModel {
		t.Errorf("EffectiveModel = %q, want %q", cfg.EffectiveModel(), prompt.DefaultModel)
	}
	if cfg.Provider.SystemInstruction != prompt.DefaultSystemInstruction {
		t.Errorf("unexpected default system instruction %q", cfg.Provider.SystemInstruction)
	}
}

func TestEffectiveModel_PerProvider(t *testing.T) {
	cfg := Default()

	cfg.Provider.Name = ProviderOpenRouter
	if got := cfg.EffectiveModel(); got != DefaultOpenRouterModel {
		t.Errorf("openrouter model = %q", got)
	}
	cfg.Provider.Name = ProviderOllama
	if got := cfg.EffectiveModel(); got != DefaultOllamaModel {
		t.Errorf("ollama model = %q", got)
	}
	cfg.Provider.Model = "custom"
	if got := cfg.EffectiveModel(); got != "custom" {
		t.Errorf("explicit model = %q", got)
	}
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider.Name != ProviderGemini {
		t.Errorf("Provider.Name = %q, want gemini", cfg.Provider.Name)
	}
}

func TestLoadFromPath_PartialFileKeepsDefaults(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
[provider]
name = "ollama"
model = "llava"

[storage]
backend = "sqlite"
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Provider.Name != "ollama" || cfg.Provider.Model != "llava" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("Storage.Backend = %q", cfg.Storage.Backend)
	}
	if cfg.Ollama.URL != DefaultOllamaURL {
		t.Errorf("Ollama.URL = %q, want default", cfg.Ollama.URL)
	}
	if cfg.Attachments.MaxBytes != DefaultMaxAttachmentBytes {
		t.Errorf("Attachments.MaxBytes = %d, want default", cfg.Attachments.MaxBytes)
	}
}

func TestLoadFromPath_Invalid(t *testing.T) {
	isolate(t)

	if _, err := LoadFromPath(writeConfig(t, "not = [valid")); err == nil {
		t.Error("expected a decode error")
	}

	_, err := LoadFromPath(writeConfig(t, "[provider]\nname = \"skynet\"\n"))
	var verrs ValidateErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidateErrors, got %v", err)
	}
	if verrs[0].Field != "provider.name" {
		t.Errorf("Field = %q, want provider.name", verrs[0].Field)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Ollama.URL = "localhost:11434"
	cfg.Storage.Backend = "redis"
	cfg.Attachments.MaxBytes = -1
	cfg.Attachments.Concurrency = 0
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	var verrs ValidateErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidateErrors, got %v", err)
	}
	if len(verrs) != 5 {
		t.Errorf("got %d errors, want 5: %v", len(verrs), verrs)
	}
}

func TestValidate_VertexNeedsProject(t *testing.T) {
	cfg := Default()
	cfg.Gemini.Backend = GeminiBackendVertex
	if err := cfg.Validate(); err == nil {
		t.Error("vertex without project should fail")
	}

	cfg.Gemini.Project = "my-project"
	cfg.Gemini.Location = "us-central1"
	if err := cfg.Validate(); err != nil {
		t.Errorf("vertex with project should pass: %v", err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("MASTERCHAT_PROVIDER", "OpenRouter")
	t.Setenv("MASTERCHAT_MODEL", "openai/gpt-4o")
	t.Setenv("GOOGLE_API_KEY", "google-key")
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("MASTERCHAT_OPENROUTER_KEY", "sk-or-test")
	t.Setenv("MASTERCHAT_STORAGE", "memory")
	t.Setenv("MASTERCHAT_MAX_ATTACHMENT_BYTES", "1024")
	t.Setenv("MASTERCHAT_LOG_LEVEL", "debug")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Provider.Name != ProviderOpenRouter {
		t.Errorf("Provider.Name = %q", cfg.Provider.Name)
	}
	if cfg.Provider.Model != "openai/gpt-4o" {
		t.Errorf("Provider.Model = %q", cfg.Provider.Model)
	}
	if cfg.Gemini.APIKey != "gemini-key" {
		t.Errorf("GEMINI_API_KEY should win over GOOGLE_API_KEY, got %q", cfg.Gemini.APIKey)
	}
	if cfg.OpenRouter.APIKey != "sk-or-test" {
		t.Errorf("OpenRouter.APIKey = %q", cfg.OpenRouter.APIKey)
	}
	if cfg.Storage.Backend != "memory" || cfg.Attachments.MaxBytes != 1024 || cfg.Log.Level != "debug" {
		t.Errorf("unexpected overrides: %+v %+v %+v", cfg.Storage, cfg.Attachments, cfg.Log)
	}
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Provider.Name = ProviderOllama
	cfg.Ollama.URL = "http://gpu-box:11434"
	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %o, want 600", perm)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, cfg)
	}
}

func TestString_RedactsSecrets(t *testing.T) {
	cfg := Default()
	cfg.Gemini.APIKey = "AIza-secret"
	cfg.OpenRouter.APIKey = "sk-or-secret"

	out := cfg.String()
	if strings.Contains(out, "secret") {
		t.Errorf("String() leaked a key:\n%s", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Errorf("String() should mark redacted keys:\n%s", out)
	}
	if cfg.Gemini.APIKey != "AIza-secret" {
		t.Error("String() must not modify the config")
	}
}

func TestPaths(t *testing.T) {
	home := isolate(t)
	cfg := Default()

	dir, err := cfg.DataDir()
	if err != nil || dir != filepath.Join(home, ".masterchat", "data") {
		t.Errorf("DataDir = %q, %v", dir, err)
	}
	cfg.Storage.Dir = "~/chats"
	if dir, _ := cfg.DataDir(); dir != filepath.Join(home, "chats") {
		t.Errorf("DataDir with ~ = %q", dir)
	}

	logPath, _ := cfg.LogPath()
	if logPath != filepath.Join(home, ".masterchat", "masterchat.log") {
		t.Errorf("LogPath = %q", logPath)
	}
	cfg.Log.File = "-"
	if logPath, _ := cfg.LogPath(); logPath != "" {
		t.Errorf("LogPath for stderr = %q", logPath)
	}
}
