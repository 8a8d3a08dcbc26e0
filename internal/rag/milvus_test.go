package rag

import (
	"context"
	"fmt"
	"os"
	"testing"
)

// TestMilvusStore_EmptyRecords tests that empty inserts are rejected before any call
func TestMilvusStore_EmptyRecords(t *testing.T) {
	store := &MilvusStore{config: DefaultMilvusConfig()}

	if err := store.Insert(context.Background(), []ChunkRecord{}); err != ErrEmptyRecords {
		t.Errorf("Expected ErrEmptyRecords, got: %v", err)
	}
}

func TestMilvusStore_InsertDimensionCheck(t *testing.T) {
	store := &MilvusStore{config: DefaultMilvusConfig()}

	err := store.Insert(context.Background(), []ChunkRecord{{Chunk: Chunk{ID: "x"}, Embedding: []float32{1, 2}}})
	if err == nil {
		t.Error("Expected dimension error")
	}
}

func TestMilvusStore_SearchZeroK(t *testing.T) {
	store := &MilvusStore{config: DefaultMilvusConfig()}

	results, err := store.Search(context.Background(), make([]float32, DefaultLocalDimension), 0)
	if err != nil || len(results) != 0 {
		t.Errorf("Expected empty results, got %v, %v", results, err)
	}
}

// TestDefaultMilvusConfig tests default configuration
func TestDefaultMilvusConfig(t *testing.T) {
	config := DefaultMilvusConfig()

	if config.Address == "" {
		t.Error("Expected non-empty address")
	}
	if config.CollectionName != "lectern_chunks" {
		t.Errorf("Expected collection lectern_chunks, got %s", config.CollectionName)
	}
	if config.Dimension != 384 {
		t.Errorf("Expected dimension 384, got %d", config.Dimension)
	}
	if config.M != 16 || config.EfConstruction != 256 || config.Ef != 64 {
		t.Errorf("Unexpected HNSW parameters %+v", config)
	}
}

// Integration test: build, search, reset against a running Milvus
func TestMilvusStore_Integration_FullWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	address := os.Getenv("MILVUS_ADDRESS")
	if address == "" {
		t.Skip("MILVUS_ADDRESS not set")
	}

	ctx := context.Background()
	config := DefaultMilvusConfig()
	config.Address = address
	config.CollectionName = fmt.Sprintf("lectern_test_%d", os.Getpid())
	config.Dimension = 3

	store, err := NewMilvusStore(ctx, config)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() {
		_ = store.client.DropCollection(ctx, config.CollectionName)
		store.Close()
	}()

	chunks := sampleChunks(t)
	if _, err := BuildIndex(ctx, chunks, &mockEmbedder{}, store, DefaultIndexOptions()); err != nil {
		t.Fatalf("BuildIndex failed: %v", err)
	}

	results, err := store.Search(ctx, topicVector("what is normalization?"), 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("Expected results")
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("Results not ordered at %d", i)
		}
	}

	if err := store.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if n, err := store.Count(ctx); err != nil || n != 0 {
		t.Errorf("Expected empty collection after reset, got %d (%v)", n, err)
	}
}
