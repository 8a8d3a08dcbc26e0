package narrative

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/Yates-Labs/lectern/internal/ingest/transcript"
	"github.com/Yates-Labs/lectern/internal/rag"
)

func testProfile() *transcript.StyleProfile {
	return &transcript.StyleProfile{
		Analysis:   "Energetic Hinglish delivery, frequent checks for understanding.",
		SampleText: "Dekho, normalization simple hai. Samjhe?",
	}
}

func TestAssemblePrompt_EmptyQuestion(t *testing.T) {
	_, err := AssemblePrompt(testProfile(), nil, "   ", DefaultPromptConfig())
	if err != ErrEmptyQuestion {
		t.Fatalf("expected ErrEmptyQuestion, got %v", err)
	}
}

func TestAssemblePrompt_SectionOrder(t *testing.T) {
	chunks := []rag.ContextChunk{
		{Chunk: rag.Chunk{Text: "Normalization reduces redundancy in DBMS design", SourceFile: "lec1", StartTime: 0, EndTime: 10}, Score: 0.91},
	}

	prompt, err := AssemblePrompt(testProfile(), chunks, "What is normalization?", DefaultPromptConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sections := []string{
		"You are the lecturer.",
		"TEACHING STYLE PROFILE:",
		"SAMPLE TEACHING EXAMPLES:",
		"YOUR PERSONALITY:",
		"CONTEXT FROM LECTURES:",
		"INSTRUCTIONS:",
		"Question: What is normalization?",
		"Answer as the lecturer would teach this:",
	}
	last := -1
	for _, s := range sections {
		idx := strings.Index(prompt, s)
		if idx < 0 {
			t.Fatalf("missing section %q", s)
		}
		if idx < last {
			t.Errorf("section %q out of order", s)
		}
		last = idx
	}

	if !strings.Contains(prompt, "[lec1 0:00–0:10]\nNormalization reduces redundancy in DBMS design") {
		t.Error("missing attributed context passage")
	}
	if strings.Contains(prompt, NoContextMarker) {
		t.Error("no-context marker present despite retrieved chunks")
	}
}

func TestAssemblePrompt_Markers(t *testing.T) {
	tests := []struct {
		name    string
		profile *transcript.StyleProfile
		chunks  []rag.ContextChunk
		want    []string
	}{
		{
			name:    "no chunks",
			profile: testProfile(),
			want:    []string{"CONTEXT FROM LECTURES:\n" + NoContextMarker},
		},
		{
			name:    "nil profile",
			profile: nil,
			want:    []string{"TEACHING STYLE PROFILE:\n" + NoStyleMarker, NoContextMarker},
		},
		{
			name:    "blank analysis",
			profile: &transcript.StyleProfile{Analysis: "  ", SampleText: "dekho"},
			want:    []string{NoStyleMarker, "SAMPLE TEACHING EXAMPLES:\ndekho"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt, err := AssemblePrompt(tt.profile, tt.chunks, "What is an index?", DefaultPromptConfig())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(prompt, w) {
					t.Errorf("prompt missing %q", w)
				}
			}
		})
	}
}

func TestAssemblePrompt_SampleBound(t *testing.T) {
	cfg := DefaultPromptConfig()
	cfg.SampleLimit = 100

	short := &transcript.StyleProfile{Analysis: "calm", SampleText: "x"}
	base, err := AssemblePrompt(short, nil, "q?", cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	overhead := utf8.RuneCountInString(base) - 1

	for _, n := range []int{99, 100, 101, 5000} {
		long := &transcript.StyleProfile{Analysis: "calm", SampleText: strings.Repeat("है", n)}
		prompt, err := AssemblePrompt(long, nil, "q?", cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := utf8.RuneCountInString(prompt); got > overhead+cfg.SampleLimit {
			t.Errorf("sample of %d runes: prompt has %d runes, bound is %d", n, got, overhead+cfg.SampleLimit)
		}
		if !utf8.ValidString(prompt) {
			t.Errorf("sample of %d runes: truncation split a rune", n)
		}
	}
}

func TestAssemblePrompt_Deterministic(t *testing.T) {
	chunks := []rag.ContextChunk{
		{Chunk: rag.Chunk{Text: "a", SourceFile: "lec1"}, Score: 0.2},
		{Chunk: rag.Chunk{Text: "b", SourceFile: "lec2"}, Score: 0.9},
	}
	first, _ := AssemblePrompt(testProfile(), chunks, "q?", DefaultPromptConfig())
	second, _ := AssemblePrompt(testProfile(), chunks, "q?", DefaultPromptConfig())
	if first != second {
		t.Fatal("assembly is not deterministic")
	}
	// given order is preserved, not re-sorted by score
	if strings.Index(first, "[lec1") > strings.Index(first, "[lec2") {
		t.Error("chunks reordered")
	}
}

func TestFormatContext_Limit(t *testing.T) {
	chunks := []rag.ContextChunk{
		{Chunk: rag.Chunk{Text: strings.Repeat("a", 40), SourceFile: "s"}},
		{Chunk: rag.Chunk{Text: strings.Repeat("b", 40), SourceFile: "s"}},
		{Chunk: rag.Chunk{Text: strings.Repeat("c", 40), SourceFile: "s"}},
	}

	tests := []struct {
		name         string
		limit        int
		wantIncluded int
	}{
		{name: "unbounded", limit: 0, wantIncluded: 3},
		{name: "two fit", limit: 110, wantIncluded: 2},
		{name: "first cut", limit: 20, wantIncluded: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, included := FormatContext(chunks, tt.limit)
			if included != tt.wantIncluded {
				t.Errorf("expected %d chunks, got %d", tt.wantIncluded, included)
			}
			if tt.limit > 0 && utf8.RuneCountInString(text) > tt.limit {
				t.Errorf("context has %d runes, limit %d", utf8.RuneCountInString(text), tt.limit)
			}
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0:00"},
		{65.4, "1:05"},
		{3723, "1:02:03"},
		{-3, "0:00"},
	}
	for _, tt := range tests {
		if got := formatTimestamp(tt.seconds); got != tt.want {
			t.Errorf("formatTimestamp(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}
