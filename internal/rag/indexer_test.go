package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/Yates-Labs/lectern/internal/ingest/transcript"
)

func sampleChunks(t *testing.T) []Chunk {
	t.Helper()
	segs := []transcript.Segment{
		{SourceFile: "lec1", Start: 0, End: 10, Text: "Normalization reduces redundancy in DBMS design"},
		{SourceFile: "lec2", Start: 0, End: 12, Text: "ACID transactions guarantee durability"},
		{SourceFile: "lec3", Start: 0, End: 8, Text: "Indexes speed up table lookups"},
	}
	chunks, err := ChunkSegments(segs, DefaultChunkOptions())
	if err != nil {
		t.Fatalf("ChunkSegments failed: %v", err)
	}
	return chunks
}

func TestBuildIndex_ReplaceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	chunks := sampleChunks(t)
	embedder := &mockEmbedder{}
	store := newMemoryStore()
	opts := IndexOptions{Mode: ModeReplace, BatchSize: 2}

	first, err := BuildIndex(ctx, chunks, embedder, store, opts)
	if err != nil {
		t.Fatalf("first build failed: %v", err)
	}
	before, _ := store.Search(ctx, topicVector("what is indexing?"), 3)

	second, err := BuildIndex(ctx, chunks, embedder, store, opts)
	if err != nil {
		t.Fatalf("second build failed: %v", err)
	}
	after, _ := store.Search(ctx, topicVector("what is indexing?"), 3)

	if first.Total != 3 || second.Total != 3 {
		t.Errorf("expected 3 records after each build, got %d and %d", first.Total, second.Total)
	}
	if len(before) != len(after) {
		t.Fatalf("result counts differ: %d vs %d", len(before), len(after))
	}
	for i := range before {
		if before[i].ID != after[i].ID || before[i].Score != after[i].Score {
			t.Errorf("result %d differs after rebuild", i)
		}
	}
	if store.resets != 2 {
		t.Errorf("expected 2 resets, got %d", store.resets)
	}
}

func TestBuildIndex_AppendIncreasesCount(t *testing.T) {
	ctx := context.Background()
	chunks := sampleChunks(t)
	store := newMemoryStore()
	opts := IndexOptions{Mode: ModeAppend}

	first, err := BuildIndex(ctx, chunks, &mockEmbedder{}, store, opts)
	if err != nil {
		t.Fatal(err)
	}
	second, err := BuildIndex(ctx, chunks, &mockEmbedder{}, store, opts)
	if err != nil {
		t.Fatal(err)
	}

	if second.Total <= first.Total {
		t.Errorf("append should increase count: %d -> %d", first.Total, second.Total)
	}
	if second.Inserted != len(chunks) {
		t.Errorf("expected %d inserted, got %d", len(chunks), second.Inserted)
	}
	if store.resets != 0 {
		t.Errorf("append mode must not reset, got %d resets", store.resets)
	}
}

func TestBuildIndex_UsesSnapshotter(t *testing.T) {
	ctx := context.Background()
	store := &snapshotStore{memoryStore: newMemoryStore()}

	if _, err := BuildIndex(ctx, sampleChunks(t), &mockEmbedder{}, store, DefaultIndexOptions()); err != nil {
		t.Fatal(err)
	}
	if store.commits != 1 {
		t.Errorf("expected 1 commit, got %d", store.commits)
	}
	if store.resets != 0 {
		t.Errorf("snapshot builds should not reset in place, got %d", store.resets)
	}
}

func TestBuildIndex_FailureKeepsPreviousIndex(t *testing.T) {
	ctx := context.Background()
	store := &snapshotStore{memoryStore: newMemoryStore()}
	chunks := sampleChunks(t)

	if _, err := BuildIndex(ctx, chunks, &mockEmbedder{}, store, DefaultIndexOptions()); err != nil {
		t.Fatal(err)
	}

	calls := 0
	failing := &mockEmbedder{embedFunc: func(ctx context.Context, texts []string) ([]EmbeddingRecord, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("rate limited")
		}
		return (&mockEmbedder{}).Embed(ctx, texts)
	}}

	_, err := BuildIndex(ctx, chunks, failing, store, IndexOptions{Mode: ModeReplace, BatchSize: 1})
	if err == nil {
		t.Fatal("expected build error")
	}
	if store.aborts != 1 {
		t.Errorf("expected abort, got %d", store.aborts)
	}
	if n, _ := store.Count(ctx); n != len(chunks) {
		t.Errorf("previous index should remain active with %d records, got %d", len(chunks), n)
	}
}

func TestBuildIndex_Validation(t *testing.T) {
	ctx := context.Background()
	chunks := sampleChunks(t)

	tests := []struct {
		name     string
		embedder Embedder
		store    VectorStore
		opts     IndexOptions
		wantErr  error
	}{
		{"nil embedder", nil, newMemoryStore(), DefaultIndexOptions(), nil},
		{"nil store", &mockEmbedder{}, nil, DefaultIndexOptions(), nil},
		{"unknown mode", &mockEmbedder{}, newMemoryStore(), IndexOptions{Mode: "merge"}, nil},
		{"dimension mismatch", &mockEmbedder{dimension: 384}, newMemoryStore(), DefaultIndexOptions(), ErrDimensionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildIndex(ctx, chunks, tt.embedder, tt.store, tt.opts)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestBuildIndex_EmptyCorpus(t *testing.T) {
	store := newMemoryStore()
	stats, err := BuildIndex(context.Background(), nil, &mockEmbedder{}, store, DefaultIndexOptions())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 0 || stats.Inserted != 0 {
		t.Errorf("expected empty index, got %+v", stats)
	}
	results, err := store.Search(context.Background(), []float32{1, 0, 0}, 3)
	if err != nil || len(results) != 0 {
		t.Errorf("expected empty search on empty index, got %v, %v", results, err)
	}
}

func TestParseBuildMode(t *testing.T) {
	tests := []struct {
		in      string
		want    BuildMode
		wantErr bool
	}{
		{"", ModeReplace, false},
		{"replace", ModeReplace, false},
		{"APPEND", ModeAppend, false},
		{"merge", "", true},
	}
	for _, tt := range tests {
		got, err := ParseBuildMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseBuildMode(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseBuildMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
