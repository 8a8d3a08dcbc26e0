package narrative

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockLLM is a deterministic LLM implementation for testing.
// It returns predictable responses based on prompt content and is safe for
// concurrent use.
type MockLLM struct {
	// Response is the fixed text returned by Generate.
	// If empty, a default response is generated from the prompt.
	Response string

	// Error, if set, is returned by Generate instead of a response.
	Error error

	// Respond, if set, takes precedence over Response and Error.
	Respond func(prompt string) (string, error)

	mu         sync.Mutex
	lastPrompt string
	calls      int
}

// NewMockLLM creates a mock LLM with the given fixed response.
func NewMockLLM(response string) *MockLLM {
	return &MockLLM{Response: response}
}

// NewMockLLMWithError creates a mock LLM that always returns an error.
func NewMockLLMWithError(err error) *MockLLM {
	return &MockLLM{Error: err}
}

// Generate returns the configured response or generates a deterministic one.
func (m *MockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.lastPrompt = prompt
	m.calls++
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	if m.Respond != nil {
		return m.Respond(prompt)
	}

	if m.Error != nil {
		return "", m.Error
	}

	if m.Response != "" {
		return m.Response, nil
	}

	return generateMockResponse(prompt), nil
}

// LastPrompt returns the most recent prompt passed to Generate.
func (m *MockLLM) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPrompt
}

// Calls returns how many times Generate was invoked.
func (m *MockLLM) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// generateMockResponse creates a predictable answer from the prompt.
func generateMockResponse(prompt string) string {
	question := "your question"
	if idx := strings.LastIndex(prompt, "Question:"); idx >= 0 {
		line := strings.SplitN(prompt[idx+len("Question:"):], "\n", 2)[0]
		if q := strings.TrimSpace(line); q != "" {
			question = q
		}
	}

	sources := countContextPassages(prompt)

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Let's look at %q step by step. ", question))
	if sources > 0 {
		b.WriteString(fmt.Sprintf("As we covered in %d lecture passages, ", sources))
	} else {
		b.WriteString("We haven't covered this in the lectures yet, but ")
	}
	b.WriteString("the idea is simple once you see an example.")
	return b.String()
}

// countContextPassages counts attributed passages in the lecture context section.
func countContextPassages(prompt string) int {
	start := strings.Index(prompt, "CONTEXT FROM LECTURES:")
	if start < 0 {
		return 0
	}
	section := prompt[start:]
	if end := strings.Index(section, "INSTRUCTIONS:"); end >= 0 {
		section = section[:end]
	}
	count := 0
	for _, line := range strings.Split(section, "\n") {
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			count++
		}
	}
	return count
}
