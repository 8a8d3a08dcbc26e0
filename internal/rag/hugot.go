package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"
)

// DefaultLocalModel is the sentence transformer used by HugotEmbedder.
const (
	DefaultLocalModel     = "sentence-transformers/all-MiniLM-L6-v2"
	DefaultLocalDimension = 384
)

// HugotEmbedder implements the Embedder interface with a local ONNX sentence
// transformer run through hugot's pure Go backend.
type HugotEmbedder struct {
	session   *hugot.Session
	run       func(texts []string) ([][]float32, error)
	mu        sync.Mutex
	model     string
	dimension int
}

// PrepareModel downloads the model into modelDir unless it is already present
// and returns the local model path.
func PrepareModel(modelName, modelDir string) (string, error) {
	modelPath := filepath.Join(modelDir, strings.ReplaceAll(modelName, "/", "_"))
	if _, err := os.Stat(modelPath); err == nil {
		return modelPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to stat model directory: %w", err)
	}

	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create model directory: %w", err)
	}
	downloadOptions := hugot.NewDownloadOptions()
	downloadOptions.OnnxFilePath = "onnx/model.onnx"
	downloadedPath, err := hugot.DownloadModel(modelName, modelDir, downloadOptions)
	if err != nil {
		return "", fmt.Errorf("failed to download model: %w", err)
	}
	return downloadedPath, nil
}

// NewHugotEmbedder loads (downloading if needed) a feature extraction model.
func NewHugotEmbedder(modelName, modelDir string, dimension int) (*HugotEmbedder, error) {
	if modelName == "" {
		modelName = DefaultLocalModel
	}
	if dimension <= 0 {
		dimension = DefaultLocalDimension
	}

	modelPath, err := PrepareModel(modelName, modelDir)
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "lectern-embedder",
	}
	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create embedding pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create embedding pipeline: %w", err)
	}

	return &HugotEmbedder{
		session: session,
		run: func(texts []string) ([][]float32, error) {
			result, err := pipeline.RunPipeline(texts)
			if err != nil {
				return nil, err
			}
			return result.Embeddings, nil
		},
		model:     modelName,
		dimension: dimension,
	}, nil
}

// GetModel returns the embedding model identifier
func (e *HugotEmbedder) GetModel() string {
	return e.model
}

// GetDimension returns the embedding vector dimension
func (e *HugotEmbedder) GetDimension() int {
	return e.dimension
}

// Embed generates embeddings locally. The context is checked before the batch runs.
func (e *HugotEmbedder) Embed(ctx context.Context, texts []string) ([]EmbeddingRecord, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyTexts
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	vectors, err := e.run(texts)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrEmbeddingFailed, len(vectors), len(texts))
	}

	records := make([]EmbeddingRecord, len(texts))
	for i, v := range vectors {
		if len(v) != e.dimension {
			return nil, fmt.Errorf("%w: model %s produced %d, expected %d", ErrDimensionMismatch, e.model, len(v), e.dimension)
		}
		records[i] = EmbeddingRecord{
			Text:      texts[i],
			Embedding: v,
			Index:     i,
			Model:     e.model,
		}
	}
	return records, nil
}

// Close destroys the hugot session.
func (e *HugotEmbedder) Close() error {
	if e.session == nil {
		return nil
	}
	return e.session.Destroy()
}
