package rag

import (
	"context"
	"fmt"
	"strings"
)

// Chunk is a bounded span of transcript text used as the unit of retrieval.
// Text is a contiguous substring of the source document built from the
// segments of SourceFile. Offset is the rune offset of Text within that document.
type Chunk struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	SourceFile string  `json:"source_file"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Index      int     `json:"index"`
	Offset     int     `json:"offset"`
}

// ChunkRecord is the persisted form of a chunk: the chunk plus its embedding.
type ChunkRecord struct {
	Chunk
	Embedding []float32 `json:"embedding"`
}

// ContextChunk is a retrieved chunk with its cosine similarity to the query.
type ContextChunk struct {
	Chunk
	Score float32 `json:"score"`
}

// VectorStore defines the interface for chunk vector storage and similarity search.
//
// Search returns at most topK chunks ordered by non-increasing score, ties broken
// by insertion order. Searching an empty or never-built store returns an empty
// slice and a nil error.
type VectorStore interface {
	// Insert appends records after any existing ones
	Insert(ctx context.Context, records []ChunkRecord) error

	// Search performs top-K cosine similarity search
	Search(ctx context.Context, queryVector []float32, topK int) ([]ContextChunk, error)

	// Count returns the number of stored records
	Count(ctx context.Context) (int, error)

	// Reset removes every record
	Reset(ctx context.Context) error

	// Dimension returns the fixed vector dimension of the store
	Dimension() int

	// Close releases resources and closes connections
	Close() error
}

// Snapshotter is implemented by stores that build into a staging area and
// publish atomically. BuildIndex prefers it over direct inserts.
type Snapshotter interface {
	Begin(ctx context.Context, mode BuildMode) (SnapshotBuilder, error)
}

// SnapshotBuilder stages records until Commit publishes them. Abort discards the
// staged records and leaves the active index untouched.
type SnapshotBuilder interface {
	Insert(ctx context.Context, records []ChunkRecord) error
	Commit(ctx context.Context) error
	Abort() error
}

// BuildMode selects how a build treats records already in the index.
type BuildMode string

const (
	// ModeReplace discards existing records; repeated builds are idempotent.
	ModeReplace BuildMode = "replace"
	// ModeAppend keeps existing records and adds new ones after them.
	ModeAppend BuildMode = "append"
)

// ParseBuildMode converts a configuration value to a BuildMode.
func ParseBuildMode(s string) (BuildMode, error) {
	switch BuildMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeReplace, "":
		return ModeReplace, nil
	case ModeAppend:
		return ModeAppend, nil
	default:
		return "", fmt.Errorf("unknown build mode %q (use replace or append)", s)
	}
}

// IndexOptions provides configuration for index builds
type IndexOptions struct {
	// Mode decides whether existing records are replaced or kept
	Mode BuildMode

	// BatchSize determines how many chunks to embed at once
	BatchSize int
}

// IndexStats summarizes a completed build.
type IndexStats struct {
	Mode     BuildMode `json:"mode"`
	Inserted int       `json:"inserted"`
	Total    int       `json:"total"`
}
