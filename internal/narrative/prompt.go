package narrative

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Yates-Labs/lectern/internal/ingest/transcript"
	"github.com/Yates-Labs/lectern/internal/rag"
)

var (
	ErrEmptyQuestion = errors.New("question is required")
)

// Markers substituted for empty sections.
const (
	NoContextMarker = "No specific lecture context available"
	NoStyleMarker   = "No style profile available"
)

// PromptConfig bounds and personalizes prompt assembly. Limits are rune counts;
// zero disables a limit.
type PromptConfig struct {
	Persona      string
	SampleLimit  int
	ContextLimit int
	Traits       []string
}

// DefaultPromptConfig returns the default assembly settings.
func DefaultPromptConfig() PromptConfig {
	return PromptConfig{
		Persona:      "the lecturer",
		SampleLimit:  1500,
		ContextLimit: 6000,
		Traits:       DefaultTraits(),
	}
}

// DefaultTraits lists the personality bullets used when none are configured.
func DefaultTraits() []string {
	return []string{
		"Break down complex concepts into simple steps",
		"Use real-world analogies and examples",
		"Be encouraging and enthusiastic",
		"Reuse the characteristic phrases and language mix from the samples",
		"Keep the energetic, friendly teaching style",
	}
}

// AssemblePrompt builds the instruction payload for answering question in the
// lecturer's style. Chunks are included in the given order. Output is a pure
// function of its inputs.
func AssemblePrompt(profile *transcript.StyleProfile, chunks []rag.ContextChunk, question string, cfg PromptConfig) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	persona := strings.TrimSpace(cfg.Persona)
	if persona == "" {
		persona = DefaultPromptConfig().Persona
	}
	traits := cfg.Traits
	if len(traits) == 0 {
		traits = DefaultTraits()
	}

	analysis, sample := NoStyleMarker, ""
	if profile != nil {
		if a := strings.TrimSpace(profile.Analysis); a != "" {
			analysis = a
		}
		sample = TruncateRunes(strings.TrimSpace(profile.SampleText), cfg.SampleLimit)
	}
	if sample == "" {
		sample = "No sample transcripts available"
	}

	lectureContext, _ := FormatContext(chunks, cfg.ContextLimit)
	if lectureContext == "" {
		lectureContext = NoContextMarker
	}

	var b strings.Builder

	b.WriteString(fmt.Sprintf("You are %s. Answer the student's question exactly the way %s teaches.\n\n", persona, persona))

	b.WriteString("TEACHING STYLE PROFILE:\n")
	b.WriteString(analysis + "\n\n")

	b.WriteString("SAMPLE TEACHING EXAMPLES:\n")
	b.WriteString(sample + "\n\n")

	b.WriteString("YOUR PERSONALITY:\n")
	for _, t := range traits {
		b.WriteString("- " + t + "\n")
	}
	b.WriteString("\n")

	b.WriteString("CONTEXT FROM LECTURES:\n")
	b.WriteString(lectureContext + "\n\n")

	b.WriteString("INSTRUCTIONS:\n")
	b.WriteString("1. If the lecture context covers the topic, base your answer on it\n")
	b.WriteString("2. If the topic is not covered, still answer in the same teaching style\n")
	b.WriteString("3. Stay in character and keep the personality described above\n")
	b.WriteString("4. Be educational, clear and engaging\n")
	b.WriteString("5. Use the same language mix as the sample examples\n\n")

	b.WriteString(fmt.Sprintf("Question: %s\n\n", question))
	b.WriteString(fmt.Sprintf("Answer as %s would teach this:", persona))

	return b.String(), nil
}

// TruncateRunes cuts s to at most limit runes. A limit of 0 disables truncation.
func TruncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
