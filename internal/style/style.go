// Package style derives a speaker's teaching style profile from lecture
// transcripts. It runs offline, once per corpus; the profile it writes is
// read-only at query time.
package style

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Yates-Labs/lectern/internal/ingest/transcript"
	"github.com/Yates-Labs/lectern/internal/logging"
	"github.com/Yates-Labs/lectern/internal/narrative"
)

var (
	ErrEmptyCorpus    = errors.New("no transcript text to analyze")
	ErrAnalysisFailed = errors.New("style analysis failed")
)

// Options bounds the text sent for analysis and kept as samples. Units are runes.
type Options struct {
	Persona       string
	AnalysisChars int
	SampleChars   int
	Logger        *slog.Logger
}

// DefaultOptions returns the default extraction bounds.
func DefaultOptions() Options {
	return Options{
		Persona:       "the lecturer",
		AnalysisChars: 8000,
		SampleChars:   3000,
	}
}

// Analyze asks llm to describe the teaching style visible in transcripts and
// returns a profile holding that description plus a bounded sample of the
// speaker's own words.
func Analyze(ctx context.Context, llm narrative.LLM, transcripts []transcript.Transcript, opts Options) (*transcript.StyleProfile, error) {
	if llm == nil {
		return nil, fmt.Errorf("%w: LLM is required", ErrAnalysisFailed)
	}
	logger := logging.OrDefault(opts.Logger).With("component", "style")

	full := CorpusText(transcripts)
	if strings.TrimSpace(full) == "" {
		return nil, ErrEmptyCorpus
	}

	prompt := buildAnalysisPrompt(opts.Persona, SummarizeCorpus(transcripts), narrative.TruncateRunes(full, opts.AnalysisChars))
	logger.Info("analyzing teaching style", "transcripts", len(transcripts), "prompt_runes", len([]rune(prompt)))

	analysis, err := llm.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}
	analysis = strings.TrimSpace(analysis)
	if analysis == "" {
		return nil, fmt.Errorf("%w: model returned an empty analysis", ErrAnalysisFailed)
	}

	return &transcript.StyleProfile{
		Analysis:   analysis,
		SampleText: narrative.TruncateRunes(full, opts.SampleChars),
	}, nil
}

// Save writes profile to path.
func Save(path string, profile *transcript.StyleProfile) error {
	if profile == nil || strings.TrimSpace(profile.Analysis) == "" {
		return transcript.ErrMissingStyle
	}
	return transcript.SaveStyleProfile(path, profile)
}

// CorpusText joins the transcripts' text with blank lines. Documents without a
// top-level text field contribute their segment text instead.
func CorpusText(transcripts []transcript.Transcript) string {
	parts := make([]string, 0, len(transcripts))
	for _, t := range transcripts {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			segs := make([]string, 0, len(t.Segments))
			for _, s := range t.Segments {
				if s := strings.TrimSpace(s.Text); s != "" {
					segs = append(segs, s)
				}
			}
			text = strings.Join(segs, " ")
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func buildAnalysisPrompt(persona, summary, excerpt string) string {
	if strings.TrimSpace(persona) == "" {
		persona = DefaultOptions().Persona
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Analyze the teaching style of %s based on these lecture transcripts.\n\n", persona))

	b.WriteString("# Lectures\n\n")
	b.WriteString(summary + "\n\n")

	b.WriteString("# Transcript Excerpt\n\n")
	b.WriteString(excerpt + "\n\n")

	b.WriteString("# Task\n\n")
	b.WriteString("Extract and describe:\n")
	b.WriteString("1. Communication style: formality, pace, tone\n")
	b.WriteString("2. Explanation pattern: how concepts are broken down (analogies, examples, step-by-step)\n")
	b.WriteString("3. Language mix: which languages are used and how they are blended\n")
	b.WriteString("4. Signature phrases: common expressions and catchphrases\n")
	b.WriteString("5. Teaching techniques: questioning style, recaps, emphasis\n")
	b.WriteString("6. Personality traits: enthusiasm, humor, encouragement\n\n")
	b.WriteString("Provide a detailed profile that can be used to mimic this teaching style. ")
	b.WriteString("Base every observation on the excerpt; do not invent phrases the speaker never uses.\n")

	return b.String()
}
