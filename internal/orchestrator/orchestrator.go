// Package orchestrator wires lectern's components together: it builds the
// knowledge base from transcripts and runs the question-answering pipeline.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Yates-Labs/lectern/internal/adapter"
	"github.com/Yates-Labs/lectern/internal/ingest/transcript"
	"github.com/Yates-Labs/lectern/internal/logging"
	"github.com/Yates-Labs/lectern/internal/rag"
)

// BuildRequest describes one knowledge base build.
type BuildRequest struct {
	Transcripts []transcript.Transcript
	Chunking    rag.ChunkOptions
	Embedder    rag.Embedder
	Store       rag.VectorStore
	Mode        rag.BuildMode
	BatchSize   int

	// Export, when set, receives the chunks in ExportFormat before embedding.
	Export       io.Writer
	ExportFormat string

	Logger *slog.Logger
}

// BuildStats summarizes a finished build.
type BuildStats struct {
	Documents int           `json:"documents"`
	Segments  int           `json:"segments"`
	Chunks    int           `json:"chunks"`
	Mode      rag.BuildMode `json:"mode"`
	Inserted  int           `json:"inserted"`
	Total     int           `json:"total"`
	Duration  time.Duration `json:"duration"`
}

// BuildKnowledgeBase chunks the transcripts, embeds the chunks and publishes
// them to the store. A failed build leaves the previously published index in
// place for stores that stage builds.
func BuildKnowledgeBase(ctx context.Context, req BuildRequest) (*BuildStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled before build: %w", err)
	}
	logger := logging.OrDefault(req.Logger).With("component", "rag")
	start := time.Now()

	segments := 0
	for _, t := range req.Transcripts {
		segments += len(t.Segments)
	}

	chunks, err := rag.ChunkTranscripts(req.Transcripts, req.Chunking)
	if err != nil {
		return nil, fmt.Errorf("failed to chunk transcripts: %w", err)
	}
	logger.Info("chunked transcripts", "documents", len(req.Transcripts), "segments", segments, "chunks", len(chunks))

	if req.Export != nil {
		if err := rag.ExportChunks(chunks, req.ExportFormat, req.Export); err != nil {
			return nil, fmt.Errorf("failed to export chunks: %w", err)
		}
	}

	opts := rag.DefaultIndexOptions()
	if req.Mode != "" {
		opts.Mode = req.Mode
	}
	if req.BatchSize > 0 {
		opts.BatchSize = req.BatchSize
	}

	logger.Info("building index", "mode", opts.Mode, "batch_size", opts.BatchSize)
	indexStats, err := rag.BuildIndex(ctx, chunks, req.Embedder, req.Store, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to build index: %w", err)
	}

	stats := &BuildStats{
		Documents: len(req.Transcripts),
		Segments:  segments,
		Chunks:    len(chunks),
		Mode:      indexStats.Mode,
		Inserted:  indexStats.Inserted,
		Total:     indexStats.Total,
		Duration:  time.Since(start),
	}
	logger.Info("index published", "inserted", stats.Inserted, "total", stats.Total, "duration", stats.Duration)
	return stats, nil
}

// LoadCorpus reads the transcript corpus. The combined document is preferred
// when it exists; otherwise every supported per-source file in transcriptsDir
// is loaded.
func LoadCorpus(transcriptsDir, combinedFile string, logger *slog.Logger) ([]transcript.Transcript, error) {
	logger = logging.OrDefault(logger)

	if combinedFile != "" {
		docs, err := transcript.LoadCombined(combinedFile)
		if err == nil {
			logUnknownSources(logger, docs)
			return docs, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		logger.Debug("combined transcript not found, reading per-source files", "path", combinedFile)
	}

	docs, err := adapter.LoadDir(transcriptsDir, filepath.Base(combinedFile))
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no transcripts found in %s: %w", transcriptsDir, os.ErrNotExist)
	}
	logUnknownSources(logger, docs)
	return docs, nil
}

func logUnknownSources(logger *slog.Logger, docs []transcript.Transcript) {
	for i, d := range docs {
		if d.File == transcript.UnknownSource {
			logger.Warn("transcript has no file name", "document", i, "source", transcript.UnknownSource)
		}
	}
}
