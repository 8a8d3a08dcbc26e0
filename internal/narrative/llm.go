// Package narrative turns retrieved lecture context into answers. It assembles
// bounded prompts in the lecturer's style, defines a provider-agnostic LLM
// interface with an OpenAI implementation and a deterministic mock, and maps
// upstream failures onto a small error taxonomy.
package narrative

import (
	"context"
	"errors"
	"time"
)

var (
	ErrLLMFailed     = errors.New("LLM request failed")
	ErrInvalidConfig = errors.New("invalid LLM configuration")
)

// LLM defines the interface for interacting with language models.
// Implementations must be stateless and thread-safe.
type LLM interface {
	// Generate produces text from a prompt using the configured model.
	// Returns the generated text or an error if generation fails.
	Generate(ctx context.Context, prompt string) (string, error)
}

// LLMConfig holds common configuration options for LLM providers.
type LLMConfig struct {
	// Model specifies the model identifier (e.g., "gpt-4o", "gpt-4o-mini")
	Model string

	// Temperature controls randomness (0.0 = provider default)
	Temperature float32

	// MaxTokens limits the response length (0 = use provider default)
	MaxTokens int

	// APIKey is the authentication key for the provider
	APIKey string

	// BaseURL points the client at an OpenAI-compatible endpoint
	BaseURL string

	// Timeout bounds a single generation call (0 = no timeout)
	Timeout time.Duration
}

// DefaultLLMConfig returns sensible defaults for answer generation.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Model:       "gpt-4o",
		Temperature: 0, // model default
		MaxTokens:   2000,
		Timeout:     60 * time.Second,
	}
}
