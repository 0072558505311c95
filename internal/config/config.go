// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/masterchat/internal/prompt"
	"github.com/jeranaias/masterchat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Provider names.
const (
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
	ProviderEcho       = "echo"
)

// Gemini backends.
const (
	GeminiBackendAPI    = "gemini"
	GeminiBackendVertex = "vertex"
)

const (
	// DefaultOpenRouterURL is the OpenAI-compatible OpenRouter endpoint.
	DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

	// DefaultOpenRouterModel lets OpenRouter pick a model.
	DefaultOpenRouterModel = "openrouter/auto"

	// DefaultOllamaURL is the local Ollama server.
	DefaultOllamaURL = "http://localhost:11434"

	// DefaultOllamaModel is a small vision-capable local model.
	DefaultOllamaModel = "llama3.2-vision"

	// DefaultMaxAttachmentBytes caps a single attached file.
	DefaultMaxAttachmentBytes int64 = 20 << 20

	// DefaultAttachmentConcurrency bounds parallel file encoding.
	DefaultAttachmentConcurrency = 4
)

// Config represents the complete masterchat configuration.
type Config struct {
	Provider    ProviderConfig    `toml:"provider"`
	Gemini      GeminiConfig      `toml:"gemini"`
	OpenRouter  OpenRouterConfig  `toml:"openrouter"`
	Ollama      OllamaConfig      `toml:"ollama"`
	Storage     StorageConfig     `toml:"storage"`
	Attachments AttachmentsConfig `toml:"attachments"`
	Log         LogConfig         `toml:"log"`
}

// ProviderConfig selects the model backend.
type ProviderConfig struct {
	// Name is one of gemini, openrouter, ollama, echo.
	Name string `toml:"name"`

	// Model overrides the backend's default model.
	Model string `toml:"model"`

	// SystemInstruction is sent with every request.
	SystemInstruction string `toml:"system_instruction"`
}

// GeminiConfig holds Google Gemini settings.
type GeminiConfig struct {
	APIKey string `toml:"api_key"`

	// Backend is "gemini" (API key) or "vertex" (Vertex AI, ADC credentials).
	Backend  string `toml:"backend"`
	Project  string `toml:"project"`
	Location string `toml:"location"`
}

// OpenRouterConfig holds OpenRouter settings.
type OpenRouterConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// OllamaConfig holds local Ollama settings.
type OllamaConfig struct {
	URL string `toml:"url"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is file, sqlite or memory.
	Backend string `toml:"backend"`

	// Dir is the data directory. Empty means ~/.masterchat/data.
	Dir string `toml:"dir"`
}

// AttachmentsConfig bounds attachment encoding.
type AttachmentsConfig struct {
	MaxBytes    int64 `toml:"max_bytes"`
	Concurrency int   `toml:"concurrency"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level"`

	// File receives the JSON log. Empty means ~/.masterchat/masterchat.log,
	// "-" means stderr.
	File string `toml:"file"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			Name:              ProviderGemini,
			SystemInstruction: prompt.DefaultSystemInstruction,
		},
		Gemini: GeminiConfig{
			Backend: GeminiBackendAPI,
		},
		OpenRouter: OpenRouterConfig{
			BaseURL: DefaultOpenRouterURL,
		},
		Ollama: OllamaConfig{
			URL: DefaultOllamaURL,
		},
		Storage: StorageConfig{
			Backend: "file",
		},
		Attachments: AttachmentsConfig{
			MaxBytes:    DefaultMaxAttachmentBytes,
			Concurrency: DefaultAttachmentConcurrency,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// EffectiveModel returns the configured model, or the default of the
// selected provider.
func (c *Config) EffectiveModel() string {
	if c.Provider.Model != "" {
		return c.Provider.Model
	}
	switch c.Provider.Name {
	case ProviderOpenRouter:
		return DefaultOpenRouterModel
	case ProviderOllama:
		return DefaultOllamaModel
	default:
		return prompt.DefaultModel
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the masterchat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".masterchat"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DataDir returns the storage directory, resolving the default.
func (c *Config) DataDir() (string, error) {
	if c.Storage.Dir != "" {
		return expandHome(c.Storage.Dir)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "data"), nil
}

// LogPath returns the log file path, or "" for stderr.
func (c *Config) LogPath() (string, error) {
	switch c.Log.File {
	case "-", "stderr":
		return "", nil
	case "":
		dir, err := ConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "masterchat.log"), nil
	default:
		return expandHome(c.Log.File)
	}
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads ~/.masterchat/config.toml if it exists, applies environment
// overrides and validates the result.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return cfg, nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific TOML file with full
// validation. Keys missing from the file keep their defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SetDefaults fills fields that were explicitly blanked.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Provider.Name == "" {
		c.Provider.Name = d.Provider.Name
	}
	if c.Gemini.Backend == "" {
		c.Gemini.Backend = d.Gemini.Backend
	}
	if c.OpenRouter.BaseURL == "" {
		c.OpenRouter.BaseURL = d.OpenRouter.BaseURL
	}
	if c.Ollama.URL == "" {
		c.Ollama.URL = d.Ollama.URL
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = d.Storage.Backend
	}
	if c.Attachments.MaxBytes == 0 {
		c.Attachments.MaxBytes = d.Attachments.MaxBytes
	}
	if c.Attachments.Concurrency == 0 {
		c.Attachments.Concurrency = d.Attachments.Concurrency
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration atomically with 0600 permissions, since
// it may hold API keys.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# masterchat configuration file\n")
	buf.WriteString("# Generated by masterchat - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns every problem found.
// Missing API keys are not an error here; the provider reports them.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch c.Provider.Name {
	case ProviderGemini, ProviderOpenRouter, ProviderOllama, ProviderEcho:
	default:
		add("provider.name", "invalid provider '%s', must be one of: gemini, openrouter, ollama, echo", c.Provider.Name)
	}

	switch c.Gemini.Backend {
	case GeminiBackendAPI:
	case GeminiBackendVertex:
		if c.Provider.Name == ProviderGemini && (c.Gemini.Project == "" || c.Gemini.Location == "") {
			add("gemini.project", "vertex backend requires project and location")
		}
	default:
		add("gemini.backend", "invalid backend '%s', must be one of: gemini, vertex", c.Gemini.Backend)
	}

	if err := validateHTTPURL(c.OpenRouter.BaseURL); err != nil {
		add("openrouter.base_url", "%v", err)
	}
	if err := validateHTTPURL(c.Ollama.URL); err != nil {
		add("ollama.url", "%v", err)
	}

	switch strings.ToLower(c.Storage.Backend) {
	case "file", "sqlite", "memory":
	default:
		add("storage.backend", "invalid backend '%s', must be one of: file, sqlite, memory", c.Storage.Backend)
	}

	if c.Attachments.MaxBytes <= 0 {
		add("attachments.max_bytes", "must be positive, got %d", c.Attachments.MaxBytes)
	}
	if c.Attachments.Concurrency < 1 || c.Attachments.Concurrency > 64 {
		add("attachments.concurrency", "must be 1-64, got %d", c.Attachments.Concurrency)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("log.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL '%s': scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid URL '%s': missing host", raw)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
//   - MASTERCHAT_PROVIDER: overrides provider.name
//   - MASTERCHAT_MODEL: overrides provider.model
//   - MASTERCHAT_API_KEY, GEMINI_API_KEY, GOOGLE_API_KEY: gemini.api_key (first set wins)
//   - MASTERCHAT_OPENROUTER_KEY: overrides openrouter.api_key
//   - MASTERCHAT_OLLAMA_URL: overrides ollama.url
//   - MASTERCHAT_STORAGE: overrides storage.backend
//   - MASTERCHAT_DATA_DIR: overrides storage.dir
//   - MASTERCHAT_MAX_ATTACHMENT_BYTES: overrides attachments.max_bytes
//   - MASTERCHAT_LOG_LEVEL: overrides log.level
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("MASTERCHAT_PROVIDER"); v != "" {
		c.Provider.Name = strings.ToLower(v)
	}
	if v := os.Getenv("MASTERCHAT_MODEL"); v != "" {
		c.Provider.Model = v
	}
	for _, name := range []string{"MASTERCHAT_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		if v := os.Getenv(name); v != "" {
			c.Gemini.APIKey = v
			break
		}
	}
	if v := os.Getenv("MASTERCHAT_OPENROUTER_KEY"); v != "" {
		c.OpenRouter.APIKey = v
	}
	if v := os.Getenv("MASTERCHAT_OLLAMA_URL"); v != "" {
		c.Ollama.URL = v
	}
	if v := os.Getenv("MASTERCHAT_STORAGE"); v != "" {
		c.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("MASTERCHAT_DATA_DIR"); v != "" {
		c.Storage.Dir = v
	}
	if v := os.Getenv("MASTERCHAT_MAX_ATTACHMENT_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Attachments.MaxBytes = n
		}
	}
	if v := os.Getenv("MASTERCHAT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// =============================================================================
// DISPLAY
// =============================================================================

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String renders the configuration as TOML with secrets redacted.
func (c *Config) String() string {
	safe := c.Clone()
	safe.Gemini.APIKey = redact(safe.Gemini.APIKey)
	safe.OpenRouter.APIKey = redact(safe.OpenRouter.APIKey)

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(safe); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return buf.String()
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "[REDACTED]"
}
