package rag

import (
	"context"
	"fmt"
)

// DefaultIndexOptions returns sensible defaults for indexing
func DefaultIndexOptions() IndexOptions {
	return IndexOptions{
		Mode:      ModeReplace,
		BatchSize: 32, // Batch size for embedding calls
	}
}

// BuildIndex embeds chunks and stores them in the vector store.
//
// In ModeReplace the previous contents are discarded, so building the same
// corpus twice yields the same index. In ModeAppend new records follow the
// existing ones. Stores implementing Snapshotter stage the whole build and
// publish it on success only; a failed build leaves the previous index active.
func BuildIndex(
	ctx context.Context,
	chunks []Chunk,
	embedder Embedder,
	vectorStore VectorStore,
	opts IndexOptions,
) (*IndexStats, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	if vectorStore == nil {
		return nil, fmt.Errorf("vector store cannot be nil")
	}
	if opts.Mode == "" {
		opts.Mode = ModeReplace
	}
	if opts.Mode != ModeReplace && opts.Mode != ModeAppend {
		return nil, fmt.Errorf("unknown build mode %q", opts.Mode)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultIndexOptions().BatchSize
	}
	if embedder.GetDimension() != vectorStore.Dimension() {
		return nil, fmt.Errorf("%w: embedder %s produces %d, store expects %d",
			ErrDimensionMismatch, embedder.GetModel(), embedder.GetDimension(), vectorStore.Dimension())
	}

	sink, finish, abort, err := openSink(ctx, vectorStore, opts.Mode)
	if err != nil {
		return nil, err
	}

	inserted, err := embedInto(ctx, chunks, embedder, vectorStore.Dimension(), sink, opts.BatchSize)
	if err != nil {
		if abortErr := abort(); abortErr != nil {
			return nil, fmt.Errorf("%w (abort: %v)", err, abortErr)
		}
		return nil, err
	}
	if err := finish(); err != nil {
		return nil, fmt.Errorf("failed to publish index: %w", err)
	}

	total, err := vectorStore.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}

	return &IndexStats{Mode: opts.Mode, Inserted: inserted, Total: total}, nil
}

type insertFunc func(ctx context.Context, records []ChunkRecord) error

// openSink returns the insert target for a build plus its commit and abort hooks.
func openSink(ctx context.Context, vectorStore VectorStore, mode BuildMode) (insertFunc, func() error, func() error, error) {
	if snap, ok := vectorStore.(Snapshotter); ok {
		builder, err := snap.Begin(ctx, mode)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to begin build: %w", err)
		}
		return builder.Insert,
			func() error { return builder.Commit(ctx) },
			builder.Abort,
			nil
	}

	if mode == ModeReplace {
		if err := vectorStore.Reset(ctx); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to reset vector store: %w", err)
		}
	}
	noop := func() error { return nil }
	return vectorStore.Insert, noop, noop, nil
}

func embedInto(
	ctx context.Context,
	chunks []Chunk,
	embedder Embedder,
	dimension int,
	insert insertFunc,
	batchSize int,
) (int, error) {
	inserted := 0
	for batchStart := 0; batchStart < len(chunks); batchStart += batchSize {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}

		batchEnd := batchStart + batchSize
		if batchEnd > len(chunks) {
			batchEnd = len(chunks)
		}
		batch := chunks[batchStart:batchEnd]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		embeddingRecords, err := embedder.Embed(ctx, texts)
		if err != nil {
			return inserted, fmt.Errorf("failed to generate embeddings for batch starting at %d: %w", batchStart, err)
		}
		if len(embeddingRecords) != len(batch) {
			return inserted, fmt.Errorf("embedder returned %d records for batch of %d", len(embeddingRecords), len(batch))
		}

		records := make([]ChunkRecord, len(batch))
		for i, c := range batch {
			vec := embeddingRecords[i].Embedding
			if len(vec) != dimension {
				return inserted, fmt.Errorf("%w: chunk %s has %d, expected %d", ErrDimensionMismatch, c.ID, len(vec), dimension)
			}
			records[i] = ChunkRecord{Chunk: c, Embedding: vec}
		}

		if err := insert(ctx, records); err != nil {
			return inserted, fmt.Errorf("failed to insert batch starting at %d: %w", batchStart, err)
		}
		inserted += len(records)
	}
	return inserted, nil
}
