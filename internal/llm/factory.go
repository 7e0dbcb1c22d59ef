package llm

import (
	"fmt"
	"strings"
)

// NewProvider creates a reasoning-service provider based on configuration.
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	default:
		return nil, fmt.Errorf("unknown reasoning provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
}
