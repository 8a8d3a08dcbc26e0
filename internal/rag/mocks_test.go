package rag

import (
	"context"
	"strings"
	"sync"
)

// mockEmbedder implements Embedder interface for testing
type mockEmbedder struct {
	embedFunc func(ctx context.Context, texts []string) ([]EmbeddingRecord, error)
	calls     int
	dimension int
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([]EmbeddingRecord, error) {
	m.calls++
	if m.embedFunc != nil {
		return m.embedFunc(ctx, texts)
	}
	records := make([]EmbeddingRecord, len(texts))
	for i, text := range texts {
		records[i] = EmbeddingRecord{
			Text:      text,
			Embedding: topicVector(text),
			Index:     i,
			Model:     "mock",
		}
	}
	return records, nil
}

func (m *mockEmbedder) GetModel() string { return "mock" }

func (m *mockEmbedder) GetDimension() int {
	if m.dimension != 0 {
		return m.dimension
	}
	return 3
}

// topicVector maps text onto three topic axes: databases, operating systems, other.
func topicVector(text string) []float32 {
	lower := strings.ToLower(text)
	v := []float32{0, 0, 0.1}
	for _, kw := range []string{"normaliz", "acid", "index", "dbms", "table"} {
		if strings.Contains(lower, kw) {
			v[0]++
		}
	}
	for _, kw := range []string{"deadlock", "process", "scheduler"} {
		if strings.Contains(lower, kw) {
			v[1]++
		}
	}
	return v
}

// memoryStore implements VectorStore with exact in-memory search
type memoryStore struct {
	mu        sync.Mutex
	records   []ChunkRecord
	dimension int
	resets    int
	insertErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{dimension: 3}
}

func (m *memoryStore) Insert(ctx context.Context, records []ChunkRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.records = append(m.records, records...)
	return nil
}

func (m *memoryStore) Search(ctx context.Context, queryVector []float32, topK int) ([]ContextChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return RankRecords(m.records, queryVector, topK), nil
}

func (m *memoryStore) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records), nil
}

func (m *memoryStore) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	m.resets++
	return nil
}

func (m *memoryStore) Dimension() int { return m.dimension }

func (m *memoryStore) Close() error { return nil }

// snapshotStore stages builds and publishes them on Commit
type snapshotStore struct {
	*memoryStore
	commits int
	aborts  int
}

type snapshotBuilder struct {
	store  *snapshotStore
	staged []ChunkRecord
}

func (s *snapshotStore) Begin(ctx context.Context, mode BuildMode) (SnapshotBuilder, error) {
	b := &snapshotBuilder{store: s}
	if mode == ModeAppend {
		b.staged = append(b.staged, s.records...)
	}
	return b, nil
}

func (b *snapshotBuilder) Insert(ctx context.Context, records []ChunkRecord) error {
	b.staged = append(b.staged, records...)
	return nil
}

func (b *snapshotBuilder) Commit(ctx context.Context) error {
	b.store.records = b.staged
	b.store.commits++
	return nil
}

func (b *snapshotBuilder) Abort() error {
	b.store.aborts++
	return nil
}
