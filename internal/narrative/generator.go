package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrGenerationFailed = errors.New("answer generation failed")
)

// Answer is generated text plus call metadata.
type Answer struct {
	// Text is the generated answer content
	Text string `json:"text"`

	// Model is the LLM model used to generate this answer
	Model string `json:"model"`

	// GeneratedAt is when the answer was returned
	GeneratedAt time.Time `json:"generated_at"`

	// Duration is the wall-clock time of the model call
	Duration time.Duration `json:"duration"`
}

// Generator invokes an LLM on an already-assembled prompt.
// It does not retrieve context or build prompts.
type Generator struct {
	llm    LLM
	config LLMConfig
}

// NewGenerator creates an answer generator with the given LLM implementation.
func NewGenerator(llm LLM, config LLMConfig) *Generator {
	return &Generator{
		llm:    llm,
		config: config,
	}
}

// Model returns the configured model identifier.
func (g *Generator) Model() string {
	return g.config.Model
}

// Generate calls the model once. Failures of the remote call are returned as
// *UpstreamError; a blank response is reported as KindEmptyResponse.
func (g *Generator) Generate(ctx context.Context, prompt string) (*Answer, error) {
	if g.llm == nil {
		return nil, fmt.Errorf("%w: LLM is required", ErrGenerationFailed)
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrGenerationFailed)
	}

	callCtx := ctx
	if g.config.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := g.llm.Generate(callCtx, prompt)
	elapsed := time.Since(start)
	if err != nil {
		return nil, Classify(callCtx, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, &UpstreamError{Kind: KindEmptyResponse, Err: errors.New("model returned no text")}
	}

	return &Answer{
		Text:        text,
		Model:       g.config.Model,
		GeneratedAt: time.Now(),
		Duration:    elapsed,
	}, nil
}
