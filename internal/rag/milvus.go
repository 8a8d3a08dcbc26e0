package rag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// Common errors for Milvus operations
var (
	ErrInvalidDimension = errors.New("invalid vector dimension")
	ErrEmptyRecords     = errors.New("no records provided for insertion")
	ErrConnectionFailed = errors.New("failed to connect to Milvus")
	ErrInsertFailed     = errors.New("failed to insert records")
	ErrSearchFailed     = errors.New("failed to search vectors")
)

// MilvusConfig holds configuration for Milvus connection and collection
type MilvusConfig struct {
	Address        string // Milvus server address (e.g., "localhost:19530")
	CollectionName string // Name of the collection
	Dimension      int    // Vector dimension (384 for all-MiniLM-L6-v2)

	// HNSW index parameters
	M              int // HNSW M parameter (default: 16)
	EfConstruction int // HNSW efConstruction (default: 256)
	Ef             int // HNSW search ef (default: 64)
}

// DefaultMilvusConfig returns the default local configuration
func DefaultMilvusConfig() MilvusConfig {
	return MilvusConfig{
		Address:        "localhost:19530",
		CollectionName: "lectern_chunks",
		Dimension:      DefaultLocalDimension,
		M:              16,
		EfConstruction: 256,
		Ef:             64,
	}
}

var milvusOutputFields = []string{"chunk_id", "seq", "chunk_index", "char_offset", "text", "source_file", "start_time", "end_time"}

// MilvusStore implements VectorStore interface using Milvus
type MilvusStore struct {
	client client.Client
	config MilvusConfig

	mu      sync.Mutex
	nextSeq int64
}

// NewMilvusStore creates a new Milvus vector store instance
// Connects to Milvus and ensures the collection exists with proper schema
func NewMilvusStore(ctx context.Context, config MilvusConfig) (*MilvusStore, error) {
	if config.Dimension <= 0 {
		return nil, ErrInvalidDimension
	}
	if config.Ef <= 0 {
		config.Ef = 64
	}

	c, err := client.NewGrpcClient(ctx, config.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store := &MilvusStore{
		client: c,
		config: config,
	}

	if err := store.ensureCollection(ctx); err != nil {
		c.Close()
		return nil, err
	}

	count, err := store.Count(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}
	store.nextSeq = int64(count)

	return store, nil
}

// ensureCollection creates the collection with schema if it doesn't exist
func (m *MilvusStore) ensureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.config.CollectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !has {
		if err := m.createCollection(ctx); err != nil {
			return err
		}
	}

	if err := m.client.LoadCollection(ctx, m.config.CollectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	return nil
}

func (m *MilvusStore) createCollection(ctx context.Context) error {
	schema := &entity.Schema{
		CollectionName: m.config.CollectionName,
		AutoID:         true,
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeInt64,
				PrimaryKey: true,
				AutoID:     true,
			},
			{
				Name:     "chunk_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "seq",
				DataType: entity.FieldTypeInt64, // insertion order, breaks score ties
			},
			{
				Name:     "chunk_index",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "char_offset",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "text",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
			{
				Name:     "source_file",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "1024",
				},
			},
			{
				Name:     "start_time",
				DataType: entity.FieldTypeDouble,
			},
			{
				Name:     "end_time",
				DataType: entity.FieldTypeDouble,
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.config.Dimension),
				},
			},
		},
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexHNSW(entity.COSINE, m.config.M, m.config.EfConstruction)
	if err != nil {
		return fmt.Errorf("failed to create index config: %w", err)
	}

	if err := m.client.CreateIndex(ctx, m.config.CollectionName, "embedding", idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// Dimension returns the collection's vector dimension
func (m *MilvusStore) Dimension() int {
	return m.config.Dimension
}

// Insert adds chunk records to Milvus after the existing ones
func (m *MilvusStore) Insert(ctx context.Context, records []ChunkRecord) error {
	if len(records) == 0 {
		return ErrEmptyRecords
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	chunkIDs := make([]string, len(records))
	seqs := make([]int64, len(records))
	indexes := make([]int64, len(records))
	offsets := make([]int64, len(records))
	texts := make([]string, len(records))
	sources := make([]string, len(records))
	starts := make([]float64, len(records))
	ends := make([]float64, len(records))
	embeddings := make([][]float32, len(records))

	for i, record := range records {
		if len(record.Embedding) != m.config.Dimension {
			return fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, m.config.Dimension, len(record.Embedding))
		}
		chunkIDs[i] = record.ID
		seqs[i] = m.nextSeq + int64(i)
		indexes[i] = int64(record.Index)
		offsets[i] = int64(record.Offset)
		texts[i] = record.Text
		sources[i] = record.SourceFile
		starts[i] = record.StartTime
		ends[i] = record.EndTime
		embeddings[i] = record.Embedding
	}

	columns := []entity.Column{
		entity.NewColumnVarChar("chunk_id", chunkIDs),
		entity.NewColumnInt64("seq", seqs),
		entity.NewColumnInt64("chunk_index", indexes),
		entity.NewColumnInt64("char_offset", offsets),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnVarChar("source_file", sources),
		entity.NewColumnDouble("start_time", starts),
		entity.NewColumnDouble("end_time", ends),
		entity.NewColumnFloatVector("embedding", m.config.Dimension, embeddings),
	}

	if _, err := m.client.Insert(ctx, m.config.CollectionName, "", columns...); err != nil {
		return fmt.Errorf("%w: %v", ErrInsertFailed, err)
	}

	// Flush to ensure data is persisted and counted
	if err := m.client.Flush(ctx, m.config.CollectionName, false); err != nil {
		return fmt.Errorf("failed to flush data: %w", err)
	}

	m.nextSeq += int64(len(records))
	return nil
}

// Search performs top-K cosine similarity search. Results are re-sorted by
// score, then by insertion sequence.
func (m *MilvusStore) Search(ctx context.Context, queryVector []float32, topK int) ([]ContextChunk, error) {
	if topK <= 0 {
		return []ContextChunk{}, nil
	}
	if len(queryVector) != m.config.Dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, m.config.Dimension, len(queryVector))
	}

	sp, err := entity.NewIndexHNSWSearchParam(m.config.Ef)
	if err != nil {
		return nil, fmt.Errorf("failed to create search params: %w", err)
	}

	vectors := []entity.Vector{entity.FloatVector(queryVector)}
	results, err := m.client.Search(
		ctx,
		m.config.CollectionName,
		nil, // partition names
		"",
		milvusOutputFields,
		vectors,
		"embedding",
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	if len(results) == 0 {
		return []ContextChunk{}, nil
	}

	chunks := make([]ContextChunk, results[0].ResultCount)
	seqs := make([]int64, results[0].ResultCount)

	for i := 0; i < results[0].ResultCount; i++ {
		chunks[i].Score = results[0].Scores[i]

		for _, field := range results[0].Fields {
			switch col := field.(type) {
			case *entity.ColumnVarChar:
				switch col.Name() {
				case "chunk_id":
					chunks[i].ID = col.Data()[i]
				case "text":
					chunks[i].Text = col.Data()[i]
				case "source_file":
					chunks[i].SourceFile = col.Data()[i]
				}
			case *entity.ColumnInt64:
				switch col.Name() {
				case "seq":
					seqs[i] = col.Data()[i]
				case "chunk_index":
					chunks[i].Index = int(col.Data()[i])
				case "char_offset":
					chunks[i].Offset = int(col.Data()[i])
				}
			case *entity.ColumnDouble:
				switch col.Name() {
				case "start_time":
					chunks[i].StartTime = col.Data()[i]
				case "end_time":
					chunks[i].EndTime = col.Data()[i]
				}
			}
		}
	}

	order := make([]int, len(chunks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		if chunks[ia].Score != chunks[ib].Score {
			return chunks[ia].Score > chunks[ib].Score
		}
		return seqs[ia] < seqs[ib]
	})

	sorted := make([]ContextChunk, len(chunks))
	for i, idx := range order {
		sorted[i] = chunks[idx]
	}
	return sorted, nil
}

// Count returns the collection row count
func (m *MilvusStore) Count(ctx context.Context) (int, error) {
	stats, err := m.client.GetCollectionStatistics(ctx, m.config.CollectionName)
	if err != nil {
		return 0, fmt.Errorf("failed to get stats: %w", err)
	}
	raw, ok := stats["row_count"]
	if !ok || raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid row_count %q: %w", raw, err)
	}
	return n, nil
}

// Reset drops and recreates the collection
func (m *MilvusStore) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.client.DropCollection(ctx, m.config.CollectionName); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	if err := m.ensureCollection(ctx); err != nil {
		return err
	}
	m.nextSeq = 0
	return nil
}

// Close releases resources and closes the Milvus connection
func (m *MilvusStore) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}
