package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/Yates-Labs/lectern/internal/ingest/transcript"
)

func TestNewRetriever(t *testing.T) {
	tests := []struct {
		name        string
		embedder    Embedder
		vectorStore VectorStore
		wantErr     bool
	}{
		{"valid", &mockEmbedder{}, newMemoryStore(), false},
		{"nil embedder", nil, newMemoryStore(), true},
		{"nil store", &mockEmbedder{}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRetriever(tt.embedder, tt.vectorStore)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewRetriever() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && r == nil {
				t.Error("expected retriever, got nil")
			}
		})
	}
}

func buildCorpus(t *testing.T, texts ...string) (*mockEmbedder, *memoryStore) {
	t.Helper()
	segs := make([]transcript.Segment, len(texts))
	for i, text := range texts {
		segs[i] = transcript.Segment{SourceFile: "lec" + string(rune('1'+i)), Start: 0, End: 10, Text: text}
	}
	chunks, err := ChunkSegments(segs, DefaultChunkOptions())
	if err != nil {
		t.Fatalf("ChunkSegments failed: %v", err)
	}

	embedder := &mockEmbedder{}
	store := newMemoryStore()
	if _, err := BuildIndex(context.Background(), chunks, embedder, store, DefaultIndexOptions()); err != nil {
		t.Fatalf("BuildIndex failed: %v", err)
	}
	return embedder, store
}

func TestRetrieve_SingleChunkCorpus(t *testing.T) {
	embedder, store := buildCorpus(t, "Normalization reduces redundancy in DBMS design")
	r, err := NewRetriever(embedder, store)
	if err != nil {
		t.Fatal(err)
	}

	chunks, err := r.Retrieve(context.Background(), "what is normalization?", DefaultTopK)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	if len(chunks) != 1 {
		t.Fatalf("expected exactly 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if c.Text != "Normalization reduces redundancy in DBMS design" {
		t.Errorf("unexpected text %q", c.Text)
	}
	if c.SourceFile != "lec1" || c.StartTime != 0 || c.EndTime != 10 {
		t.Errorf("unexpected metadata %s %v-%v", c.SourceFile, c.StartTime, c.EndTime)
	}
}

func TestRetrieve_OrderingAndBound(t *testing.T) {
	embedder, store := buildCorpus(t,
		"Deadlock happens when a process waits forever",
		"Normalization and ACID keep DBMS tables consistent",
		"Welcome to the course",
		"Normalization removes redundancy",
	)
	r, _ := NewRetriever(embedder, store)

	for k := 0; k <= 5; k++ {
		chunks, err := r.Retrieve(context.Background(), "normalization in dbms", k)
		if err != nil {
			t.Fatalf("k=%d: Retrieve failed: %v", k, err)
		}
		if len(chunks) > k {
			t.Errorf("k=%d: got %d results", k, len(chunks))
		}
		for i := 1; i < len(chunks); i++ {
			if chunks[i].Score > chunks[i-1].Score {
				t.Errorf("k=%d: results not ordered by score at %d", k, i)
			}
		}
	}
}

func TestRetrieve_TiesKeepInsertionOrder(t *testing.T) {
	embedder, store := buildCorpus(t,
		"Normalization part one",
		"Normalization part two",
		"Normalization part three",
	)
	r, _ := NewRetriever(embedder, store)

	chunks, err := r.Retrieve(context.Background(), "normalization", 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"lec1", "lec2", "lec3"}
	for i, c := range chunks {
		if c.SourceFile != want[i] {
			t.Errorf("position %d = %s, want %s", i, c.SourceFile, want[i])
		}
	}
}

func TestRetrieve_EmptyIndex(t *testing.T) {
	r, _ := NewRetriever(&mockEmbedder{}, newMemoryStore())

	chunks, err := r.Retrieve(context.Background(), "what is normalization?", 3)
	if err != nil {
		t.Fatalf("expected no error on empty index, got %v", err)
	}
	if chunks == nil || len(chunks) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", chunks)
	}
}

func TestRetrieve_ZeroK(t *testing.T) {
	embedder := &mockEmbedder{}
	r, _ := NewRetriever(embedder, newMemoryStore())

	chunks, err := r.Retrieve(context.Background(), "anything", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks, got %d", len(chunks))
	}
	if embedder.calls != 0 {
		t.Errorf("expected embedder not to be called, got %d calls", embedder.calls)
	}
}

func TestRetrieve_Errors(t *testing.T) {
	embedErr := errors.New("embedding service down")
	failing := &mockEmbedder{embedFunc: func(ctx context.Context, texts []string) ([]EmbeddingRecord, error) {
		return nil, embedErr
	}}

	tests := []struct {
		name     string
		embedder Embedder
		question string
		k        int
	}{
		{"negative k", &mockEmbedder{}, "q", -1},
		{"empty question", &mockEmbedder{}, "   ", 3},
		{"embedder failure", failing, "q", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := NewRetriever(tt.embedder, newMemoryStore())
			if _, err := r.Retrieve(context.Background(), tt.question, tt.k); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}

	r, _ := NewRetriever(failing, newMemoryStore())
	_, err := r.Retrieve(context.Background(), "q", 3)
	if !errors.Is(err, embedErr) {
		t.Errorf("expected wrapped embedder error, got %v", err)
	}
}
