package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/Yates-Labs/lectern/internal/ingest/transcript"
	"github.com/Yates-Labs/lectern/internal/logging"
	"github.com/Yates-Labs/lectern/internal/narrative"
	"github.com/Yates-Labs/lectern/internal/rag"
)

var (
	ErrMissingDependency = errors.New("missing pipeline dependency")
)

// ContextRetriever returns the chunks most relevant to a question.
type ContextRetriever interface {
	Retrieve(ctx context.Context, question string, k int) ([]rag.ContextChunk, error)
}

// AnswerGenerator turns an assembled prompt into an answer.
type AnswerGenerator interface {
	Generate(ctx context.Context, prompt string) (*narrative.Answer, error)
}

// Deps holds everything a Pipeline needs. Each collaborator is constructed and
// owned by the caller.
type Deps struct {
	Retriever    ContextRetriever
	Generator    AnswerGenerator
	Profile      *transcript.StyleProfile
	PromptConfig narrative.PromptConfig
	TopK         int
	Logger       *slog.Logger
}

// QueryResult is the outcome of answering one question.
type QueryResult struct {
	Question string             `json:"question"`
	Chunks   []rag.ContextChunk `json:"retrieved_chunks"`
	Answer   *narrative.Answer  `json:"answer"`
	AudioRef string             `json:"audio_ref,omitempty"`
}

// Text returns the answer text, or "" when no answer was produced.
func (r *QueryResult) Text() string {
	if r == nil || r.Answer == nil {
		return ""
	}
	return r.Answer.Text
}

// Pipeline runs the query path: retrieval, prompt assembly, generation.
type Pipeline struct {
	retriever    ContextRetriever
	generator    AnswerGenerator
	profile      *transcript.StyleProfile
	promptConfig narrative.PromptConfig
	topK         int
	logger       *slog.Logger
}

// NewPipeline wires a pipeline from explicit dependencies.
func NewPipeline(deps Deps) (*Pipeline, error) {
	if deps.Retriever == nil {
		return nil, fmt.Errorf("%w: retriever", ErrMissingDependency)
	}
	if deps.Generator == nil {
		return nil, fmt.Errorf("%w: generator", ErrMissingDependency)
	}
	if deps.TopK < 0 {
		return nil, fmt.Errorf("top-k must be >= 0, got %d", deps.TopK)
	}

	return &Pipeline{
		retriever:    deps.Retriever,
		generator:    deps.Generator,
		profile:      deps.Profile,
		promptConfig: deps.PromptConfig,
		topK:         deps.TopK,
		logger:       logging.OrDefault(deps.Logger).With("component", "pipeline"),
	}, nil
}

// Answer retrieves lecture context for question and generates a styled answer.
// Embedding and generator failures come back as a narrative.UpstreamError so
// callers can decide on a fallback.
func (p *Pipeline) Answer(ctx context.Context, question string) (*QueryResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, narrative.ErrEmptyQuestion
	}

	p.logger.Debug("retrieving context", "top_k", p.topK)
	chunks, err := p.retriever.Retrieve(ctx, question, p.topK)
	if err != nil {
		err = fmt.Errorf("retrieval failed: %w", err)
		if errors.Is(err, rag.ErrEmbeddingFailed) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			upstream := narrative.Classify(ctx, err)
			p.logger.Warn("question embedding failed", "kind", upstream.Kind, "error", err)
			return nil, upstream
		}
		return nil, err
	}
	p.logger.Debug("retrieved context", "chunks", len(chunks))

	return p.answer(ctx, question, chunks)
}

// AnswerWithoutContext answers in the lecturer's style without consulting the index.
func (p *Pipeline) AnswerWithoutContext(ctx context.Context, question string) (*QueryResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, narrative.ErrEmptyQuestion
	}
	return p.answer(ctx, question, []rag.ContextChunk{})
}

func (p *Pipeline) answer(ctx context.Context, question string, chunks []rag.ContextChunk) (*QueryResult, error) {
	prompt, err := narrative.AssemblePrompt(p.profile, chunks, question, p.promptConfig)
	if err != nil {
		return nil, fmt.Errorf("prompt assembly failed: %w", err)
	}
	p.logger.Debug("assembled prompt", "runes", utf8.RuneCountInString(prompt))

	answer, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		p.logger.Warn("answer generation failed", "kind", narrative.UpstreamKindOf(err), "error", err)
		return nil, err
	}
	p.logger.Info("answered question", "chunks", len(chunks), "duration", answer.Duration, "answer_runes", utf8.RuneCountInString(answer.Text))

	return &QueryResult{
		Question: question,
		Chunks:   chunks,
		Answer:   answer,
	}, nil
}
