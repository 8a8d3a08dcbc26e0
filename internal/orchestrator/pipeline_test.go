package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Yates-Labs/lectern/internal/ingest/transcript"
	"github.com/Yates-Labs/lectern/internal/logging"
	"github.com/Yates-Labs/lectern/internal/narrative"
	"github.com/Yates-Labs/lectern/internal/rag"
	"github.com/Yates-Labs/lectern/internal/rag/store"
)

type mockRetriever struct {
	RetrieveFunc func(ctx context.Context, question string, k int) ([]rag.ContextChunk, error)
	calls        int
	lastK        int
}

func (m *mockRetriever) Retrieve(ctx context.Context, question string, k int) ([]rag.ContextChunk, error) {
	m.calls++
	m.lastK = k
	if m.RetrieveFunc != nil {
		return m.RetrieveFunc(ctx, question, k)
	}
	return []rag.ContextChunk{}, nil
}

func newTestPipeline(t *testing.T, retriever ContextRetriever, llm narrative.LLM) *Pipeline {
	t.Helper()
	p, err := NewPipeline(Deps{
		Retriever:    retriever,
		Generator:    narrative.NewGenerator(llm, narrative.DefaultLLMConfig()),
		Profile:      &transcript.StyleProfile{Analysis: "Energetic", SampleText: "dekho"},
		PromptConfig: narrative.DefaultPromptConfig(),
		TopK:         rag.DefaultTopK,
		Logger:       logging.Discard(),
	})
	if err != nil {
		t.Fatalf("failed to create pipeline: %v", err)
	}
	return p
}

func TestNewPipeline_Validation(t *testing.T) {
	gen := narrative.NewGenerator(narrative.NewMockLLM("x"), narrative.DefaultLLMConfig())

	tests := []struct {
		name string
		deps Deps
	}{
		{name: "nil retriever", deps: Deps{Generator: gen}},
		{name: "nil generator", deps: Deps{Retriever: &mockRetriever{}}},
		{name: "negative top-k", deps: Deps{Retriever: &mockRetriever{}, Generator: gen, TopK: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPipeline(tt.deps); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPipeline_Answer_EndToEnd(t *testing.T) {
	ctx := context.Background()
	s, err := store.OpenSQLite(t.TempDir(), "keyword", 3)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer s.Close()

	_, err = BuildKnowledgeBase(ctx, BuildRequest{
		Transcripts: lectureCorpus(),
		Chunking:    rag.DefaultChunkOptions(),
		Embedder:    keywordEmbedder{},
		Store:       s,
		Logger:      logging.Discard(),
	})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	retriever, err := rag.NewRetriever(keywordEmbedder{}, s)
	if err != nil {
		t.Fatalf("failed to create retriever: %v", err)
	}

	llm := narrative.NewMockLLM("")
	p := newTestPipeline(t, retriever, llm)

	result, err := p.Answer(ctx, "  what is normalization?  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Question != "what is normalization?" {
		t.Errorf("question not trimmed: %q", result.Question)
	}
	if len(result.Chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(result.Chunks))
	}
	if result.Chunks[0].SourceFile != "lec1" {
		t.Errorf("expected lec1 first, got %s", result.Chunks[0].SourceFile)
	}
	if result.Text() == "" {
		t.Error("expected answer text")
	}

	prompt := llm.LastPrompt()
	if !strings.Contains(prompt, "[lec1 0:00–0:10]") {
		t.Error("prompt missing retrieved context")
	}
	if !strings.Contains(prompt, "Question: what is normalization?") {
		t.Error("prompt missing question")
	}
}

func TestPipeline_Answer_EmptyIndexUsesMarker(t *testing.T) {
	llm := narrative.NewMockLLM("")
	retriever := &mockRetriever{}
	p := newTestPipeline(t, retriever, llm)

	result, err := p.Answer(context.Background(), "what is polymorphism?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Chunks) != 0 {
		t.Errorf("expected no chunks, got %d", len(result.Chunks))
	}
	if retriever.lastK != rag.DefaultTopK {
		t.Errorf("expected k=%d, got %d", rag.DefaultTopK, retriever.lastK)
	}
	if !strings.Contains(llm.LastPrompt(), narrative.NoContextMarker) {
		t.Error("prompt missing no-context marker")
	}
}

func TestPipeline_Answer_Errors(t *testing.T) {
	retrievalErr := errors.New("index unavailable")

	tests := []struct {
		name      string
		retriever *mockRetriever
		llm       narrative.LLM
		question  string
		check     func(t *testing.T, err error)
	}{
		{
			name:      "empty question",
			retriever: &mockRetriever{},
			llm:       narrative.NewMockLLM("x"),
			question:  " ",
			check: func(t *testing.T, err error) {
				if !errors.Is(err, narrative.ErrEmptyQuestion) {
					t.Errorf("expected ErrEmptyQuestion, got %v", err)
				}
			},
		},
		{
			name: "retrieval failure",
			retriever: &mockRetriever{RetrieveFunc: func(context.Context, string, int) ([]rag.ContextChunk, error) {
				return nil, retrievalErr
			}},
			llm:      narrative.NewMockLLM("x"),
			question: "q?",
			check: func(t *testing.T, err error) {
				if !errors.Is(err, retrievalErr) {
					t.Errorf("expected retrieval error, got %v", err)
				}
				if errors.Is(err, narrative.ErrUpstream) {
					t.Errorf("store failure should not be an upstream error: %v", err)
				}
			},
		},
		{
			name: "embedding failure is typed",
			retriever: &mockRetriever{RetrieveFunc: func(context.Context, string, int) ([]rag.ContextChunk, error) {
				return nil, fmt.Errorf("failed to embed question: %w", fmt.Errorf("%w: 400 Bad Request", rag.ErrEmbeddingFailed))
			}},
			llm:      narrative.NewMockLLM("x"),
			question: "q?",
			check: func(t *testing.T, err error) {
				if !errors.Is(err, narrative.ErrUpstream) {
					t.Fatalf("expected upstream error, got %v", err)
				}
				if kind := narrative.UpstreamKindOf(err); kind != narrative.KindUnavailable {
					t.Errorf("kind = %q, want %q", kind, narrative.KindUnavailable)
				}
				if !errors.Is(err, rag.ErrEmbeddingFailed) {
					t.Errorf("expected ErrEmbeddingFailed in chain, got %v", err)
				}
			},
		},
		{
			name: "embedding deadline is a timeout",
			retriever: &mockRetriever{RetrieveFunc: func(context.Context, string, int) ([]rag.ContextChunk, error) {
				return nil, fmt.Errorf("failed to embed question: %w", fmt.Errorf("%w: %w", rag.ErrEmbeddingFailed, context.DeadlineExceeded))
			}},
			llm:      narrative.NewMockLLM("x"),
			question: "q?",
			check: func(t *testing.T, err error) {
				if kind := narrative.UpstreamKindOf(err); kind != narrative.KindTimeout {
					t.Errorf("kind = %q, want %q (err: %v)", kind, narrative.KindTimeout, err)
				}
			},
		},
		{
			name:      "upstream failure is typed",
			retriever: &mockRetriever{},
			llm:       narrative.NewMockLLMWithError(errors.New("503")),
			question:  "q?",
			check: func(t *testing.T, err error) {
				if narrative.UpstreamKindOf(err) != narrative.KindUnavailable {
					t.Errorf("expected unavailable upstream error, got %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(t, tt.retriever, tt.llm)
			result, err := p.Answer(context.Background(), tt.question)
			if result != nil {
				t.Errorf("expected nil result, got %+v", result)
			}
			tt.check(t, err)
		})
	}
}

func TestPipeline_AnswerWithoutContext(t *testing.T) {
	retriever := &mockRetriever{}
	llm := narrative.NewMockLLM("Polymorphism matlab many forms.")
	p := newTestPipeline(t, retriever, llm)

	result, err := p.AnswerWithoutContext(context.Background(), "Explain polymorphism")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if retriever.calls != 0 {
		t.Errorf("retriever should not be called, got %d calls", retriever.calls)
	}
	if result.Text() != "Polymorphism matlab many forms." {
		t.Errorf("unexpected answer %q", result.Text())
	}
	if !strings.Contains(llm.LastPrompt(), narrative.NoContextMarker) {
		t.Error("prompt missing no-context marker")
	}
}

func TestQueryResult_TextNil(t *testing.T) {
	var r *QueryResult
	if r.Text() != "" {
		t.Error("expected empty text for nil result")
	}
}
