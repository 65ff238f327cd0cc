package llm

import (
	"context"
	"strings"
	"time"

	"github.com/kyleking/energy-expert/internal/config"
)

// Completer is an opaque prompt-completion service: prompt in, text out.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}

// Config represents LLM client configuration
type Config struct {
	Provider  string        `json:"provider"` // ollama, openai, anthropic
	Model     string        `json:"model"`
	APIKey    string        `json:"api_key,omitempty"`
	BaseURL   string        `json:"base_url,omitempty"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	Timeout   time.Duration `json:"timeout"`
}

// Provider constants for different LLM providers
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Default endpoints per provider
const (
	DefaultOllamaURL    = "http://localhost:11434"
	DefaultOpenAIURL    = "https://api.openai.com/v1"
	DefaultAnthropicURL = "https://api.anthropic.com/v1"

	DefaultTimeout   = 800 * time.Second
	DefaultMaxTokens = 1024

	anthropicVersion = "2023-06-01"
)

// ConfigFromSettings converts the application LLM settings into a client Config.
// The shared base URL default points at Ollama, so it is dropped for the
// hosted providers unless it was changed.
func ConfigFromSettings(s config.LLMConfig) Config {
	cfg := Config{
		Provider:  strings.ToLower(s.Provider),
		Model:     s.Model,
		APIKey:    s.APIKey,
		BaseURL:   s.BaseURL,
		MaxTokens: s.MaxTokens,
		Timeout:   s.TimeoutDuration(),
	}

	if cfg.Provider != ProviderOllama && cfg.BaseURL == DefaultOllamaURL {
		cfg.BaseURL = ""
	}

	return cfg
}

// NewCompleter builds the Completer selected by the application settings
func NewCompleter(s config.LLMConfig) (Completer, error) {
	return NewClient(ConfigFromSettings(s))
}
