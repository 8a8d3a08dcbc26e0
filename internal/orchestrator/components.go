package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/Yates-Labs/lectern/internal/config"
	"github.com/Yates-Labs/lectern/internal/ingest/transcript"
	"github.com/Yates-Labs/lectern/internal/logging"
	"github.com/Yates-Labs/lectern/internal/narrative"
	"github.com/Yates-Labs/lectern/internal/rag"
	"github.com/Yates-Labs/lectern/internal/rag/store"
)

// Components are the constructed collaborators for one process. The caller owns
// them and must call Close once at shutdown.
type Components struct {
	Embedder  rag.Embedder
	Store     rag.VectorStore
	Retriever *rag.Retriever

	// Set by Open only.
	LLM       narrative.LLM
	Judge     narrative.LLM
	Generator *narrative.Generator
	Profile   *transcript.StyleProfile
	Pipeline  *Pipeline

	closers []func() error
}

// Close releases every resource acquired by OpenIndex or Open, in reverse order.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// OpenIndex constructs the embedder, vector store and retriever from cfg.
func OpenIndex(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	logger = logging.OrDefault(logger).With("component", "rag")
	c := &Components{}

	embedder, err := newEmbedder(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	c.Embedder = embedder
	if closer, ok := embedder.(interface{ Close() error }); ok {
		c.closers = append(c.closers, closer.Close)
	}

	vectorStore, err := newVectorStore(ctx, cfg, embedder, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Store = vectorStore
	c.closers = append(c.closers, vectorStore.Close)

	retriever, err := rag.NewRetriever(embedder, vectorStore)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Retriever = retriever

	logger.Info("index opened",
		"embedding_backend", cfg.Embedding.Backend,
		"model", embedder.GetModel(),
		"dimension", embedder.GetDimension(),
		"index_backend", cfg.Index.Backend)
	return c, nil
}

// Open constructs the full query path from cfg: index, answer model, judge
// model, style profile and pipeline. A missing style profile is not an error;
// prompts then carry the no-style marker.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	logger = logging.OrDefault(logger)

	c, err := OpenIndex(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	llmConfig := LLMConfig(cfg.LLM)
	llm, err := narrative.NewOpenAILLM(llmConfig)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create LLM: %w", err)
	}
	c.LLM = llm
	c.Generator = narrative.NewGenerator(llm, llmConfig)

	judge, err := narrative.NewOpenAILLM(LLMConfig(cfg.JudgeLLM()))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create judge LLM: %w", err)
	}
	c.Judge = judge

	profile, err := transcript.LoadStyleProfile(cfg.Paths.StyleFile)
	switch {
	case err == nil:
		c.Profile = profile
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("style profile not found, answering without it", "path", cfg.Paths.StyleFile)
	default:
		c.Close()
		return nil, err
	}

	pipeline, err := NewPipeline(Deps{
		Retriever:    c.Retriever,
		Generator:    c.Generator,
		Profile:      c.Profile,
		PromptConfig: PromptConfig(cfg.Prompt),
		TopK:         cfg.Retrieval.TopK,
		Logger:       logger,
	})
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Pipeline = pipeline

	return c, nil
}

// LLMConfig converts the [llm] section into a narrative.LLMConfig.
func LLMConfig(section config.LLM) narrative.LLMConfig {
	return narrative.LLMConfig{
		Model:       section.Model,
		Temperature: section.Temperature,
		MaxTokens:   section.MaxTokens,
		APIKey:      section.APIKey,
		BaseURL:     section.BaseURL,
		Timeout:     time.Duration(section.TimeoutSeconds) * time.Second,
	}
}

// PromptConfig converts the [prompt] section into a narrative.PromptConfig.
func PromptConfig(section config.Prompt) narrative.PromptConfig {
	pc := narrative.DefaultPromptConfig()
	if p := strings.TrimSpace(section.Persona); p != "" {
		pc.Persona = p
	}
	pc.SampleLimit = section.SampleLimit
	pc.ContextLimit = section.ContextLimit
	if len(section.Traits) > 0 {
		pc.Traits = section.Traits
	}
	return pc
}

// ChunkOptions converts the [chunking] section into rag.ChunkOptions.
func ChunkOptions(section config.Chunking) rag.ChunkOptions {
	return rag.ChunkOptions{WindowSize: section.WindowSize, Overlap: section.Overlap}
}

func newEmbedder(section config.Embedding) (rag.Embedder, error) {
	switch strings.ToLower(section.Backend) {
	case "hugot":
		e, err := rag.NewHugotEmbedder(section.Model, section.ModelDir, section.Dimension)
		if err != nil {
			return nil, fmt.Errorf("failed to create local embedder: %w", err)
		}
		return e, nil
	case "openai":
		e, err := rag.NewOpenAIEmbedder(rag.OpenAIEmbedderConfig{
			APIKey:    section.APIKey,
			BaseURL:   section.BaseURL,
			Model:     section.Model,
			Dimension: section.Dimension,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("%w: unsupported embedding backend %q", config.ErrInvalidConfig, section.Backend)
	}
}

func newVectorStore(ctx context.Context, cfg *config.Config, embedder rag.Embedder, logger *slog.Logger) (rag.VectorStore, error) {
	dimension := embedder.GetDimension()

	switch strings.ToLower(cfg.Index.Backend) {
	case "sqlite":
		s, err := store.OpenSQLite(cfg.Paths.IndexDir, embedder.GetModel(), dimension)
		if err != nil {
			return nil, fmt.Errorf("failed to open index: %w", err)
		}
		s.SetLogger(logger)
		return s, nil
	case "milvus":
		mc := rag.DefaultMilvusConfig()
		mc.Address = cfg.Index.Milvus.Address
		mc.CollectionName = cfg.Index.Milvus.CollectionName
		mc.Dimension = dimension
		if cfg.Index.Milvus.M > 0 {
			mc.M = cfg.Index.Milvus.M
		}
		if cfg.Index.Milvus.EfConstruction > 0 {
			mc.EfConstruction = cfg.Index.Milvus.EfConstruction
		}
		if cfg.Index.Milvus.Ef > 0 {
			mc.Ef = cfg.Index.Milvus.Ef
		}
		s, err := rag.NewMilvusStore(ctx, mc)
		if err != nil {
			return nil, fmt.Errorf("failed to create vector store: %w", err)
		}
		return s, nil
	case "pgvector":
		s, err := store.OpenPGVector(ctx, store.PGVectorConfig{
			URL:       cfg.Index.PGVector.URL,
			Table:     cfg.Index.PGVector.Table,
			Dimension: dimension,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open pgvector index: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unsupported index backend %q", config.ErrInvalidConfig, cfg.Index.Backend)
	}
}
