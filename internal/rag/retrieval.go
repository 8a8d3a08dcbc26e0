package rag

import (
	"context"
	"fmt"
	"strings"
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 3

// Retriever provides semantic retrieval over indexed transcript chunks. It holds
// no state besides its collaborators.
type Retriever struct {
	embedder    Embedder
	vectorStore VectorStore
}

// NewRetriever creates a new Retriever instance.
func NewRetriever(embedder Embedder, vectorStore VectorStore) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	if vectorStore == nil {
		return nil, fmt.Errorf("vector store cannot be nil")
	}

	return &Retriever{
		embedder:    embedder,
		vectorStore: vectorStore,
	}, nil
}

// Retrieve returns up to k chunks most similar to question, most similar first.
// An empty index, or k == 0, yields an empty slice.
func (r *Retriever) Retrieve(ctx context.Context, question string, k int) ([]ContextChunk, error) {
	if k < 0 {
		return nil, fmt.Errorf("k must be non-negative, got %d", k)
	}
	if k == 0 {
		return []ContextChunk{}, nil
	}
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("question cannot be empty")
	}

	// Generate embedding for the question
	embeddingRecords, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	if len(embeddingRecords) == 0 {
		return nil, fmt.Errorf("no embedding generated for question")
	}

	chunks, err := r.vectorStore.Search(ctx, embeddingRecords[0].Embedding, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search for question: %w", err)
	}
	if chunks == nil {
		chunks = []ContextChunk{}
	}
	if len(chunks) > k {
		chunks = chunks[:k]
	}

	return chunks, nil
}
