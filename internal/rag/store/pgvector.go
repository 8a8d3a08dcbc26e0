package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/Yates-Labs/lectern/internal/rag"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PGVectorConfig holds connection settings for the Postgres store.
type PGVectorConfig struct {
	URL       string
	Table     string
	Dimension int
}

// PGVectorStore implements rag.VectorStore on Postgres with the pgvector
// extension. Builds run in one transaction so readers never see a partial index.
type PGVectorStore struct {
	db        *sql.DB
	table     string
	dimension int
}

// OpenPGVector connects to Postgres and ensures the chunk table exists.
func OpenPGVector(ctx context.Context, cfg PGVectorConfig) (*PGVectorStore, error) {
	if cfg.Dimension <= 0 {
		return nil, rag.ErrInvalidDimension
	}
	if cfg.Table == "" {
		cfg.Table = "lectern_chunks"
	}
	if !tableNamePattern.MatchString(cfg.Table) {
		return nil, fmt.Errorf("invalid table name %q", cfg.Table)
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", rag.ErrConnectionFailed, err)
	}

	s := &PGVectorStore{
		db:        db,
		table:     pq.QuoteIdentifier(cfg.Table),
		dimension: cfg.Dimension,
	}
	if err := s.createTable(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGVectorStore) createTable(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            seq BIGSERIAL PRIMARY KEY,
            chunk_id TEXT NOT NULL,
            chunk_index INTEGER NOT NULL,
            char_offset INTEGER NOT NULL,
            text TEXT NOT NULL,
            source_file TEXT NOT NULL,
            start_time DOUBLE PRECISION NOT NULL,
            end_time DOUBLE PRECISION NOT NULL,
            embedding vector(%d) NOT NULL
        )`, s.table, s.dimension),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create chunk table: %w", err)
		}
	}
	return nil
}

// Dimension returns the fixed vector dimension of the table
func (s *PGVectorStore) Dimension() int {
	return s.dimension
}

// Insert appends records in a single transaction
func (s *PGVectorStore) Insert(ctx context.Context, records []rag.ChunkRecord) error {
	b, err := s.Begin(ctx, rag.ModeAppend)
	if err != nil {
		return err
	}
	if err := b.Insert(ctx, records); err != nil {
		_ = b.Abort()
		return err
	}
	return b.Commit(ctx)
}

// Search orders by cosine distance, then insertion sequence.
func (s *PGVectorStore) Search(ctx context.Context, queryVector []float32, topK int) ([]rag.ContextChunk, error) {
	if topK <= 0 {
		return []rag.ContextChunk{}, nil
	}
	if len(queryVector) != s.dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", rag.ErrInvalidDimension, s.dimension, len(queryVector))
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT chunk_id, chunk_index, char_offset, text, source_file,
            start_time, end_time, 1 - (embedding <=> $1) AS score
        FROM %s
        ORDER BY embedding <=> $1, seq
        LIMIT $2`, s.table),
		pgvector.NewVector(queryVector),
		topK,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrSearchFailed, err)
	}
	defer rows.Close()

	results := []rag.ContextChunk{}
	for rows.Next() {
		var c rag.ContextChunk
		var score float64
		if err := rows.Scan(&c.ID, &c.Index, &c.Offset, &c.Text, &c.SourceFile, &c.StartTime, &c.EndTime, &score); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.Score = float32(score)
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrSearchFailed, err)
	}
	return results, nil
}

// Count returns the number of stored chunks
func (s *PGVectorStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, s.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Reset truncates the chunk table and restarts the sequence
func (s *PGVectorStore) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`TRUNCATE %s RESTART IDENTITY`, s.table)); err != nil {
		return fmt.Errorf("truncate chunks: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *PGVectorStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Begin opens a build transaction. In replace mode the table is emptied inside
// the transaction, so concurrent readers keep seeing the previous rows until Commit.
func (s *PGVectorStore) Begin(ctx context.Context, mode rag.BuildMode) (rag.SnapshotBuilder, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin build: %w", err)
	}
	if mode == rag.ModeReplace {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, s.table)); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("clear chunks: %w", err)
		}
	}
	return &pgBuilder{store: s, tx: tx}, nil
}

type pgBuilder struct {
	store *PGVectorStore
	tx    *sql.Tx
	done  bool
}

func (b *pgBuilder) Insert(ctx context.Context, records []rag.ChunkRecord) error {
	if b.done {
		return ErrBuilderClosed
	}
	stmt, err := b.tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (
            chunk_id, chunk_index, char_offset, text, source_file, start_time, end_time, embedding
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, b.store.table))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if len(r.Embedding) != b.store.dimension {
			return fmt.Errorf("%w: chunk %s has %d, expected %d", rag.ErrInvalidDimension, r.ID, len(r.Embedding), b.store.dimension)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.Index, r.Offset, r.Text, r.SourceFile,
			r.StartTime, r.EndTime, pgvector.NewVector(r.Embedding)); err != nil {
			return fmt.Errorf("%w: %v", rag.ErrInsertFailed, err)
		}
	}
	return nil
}

func (b *pgBuilder) Commit(ctx context.Context) error {
	if b.done {
		return ErrBuilderClosed
	}
	b.done = true
	if err := b.tx.Commit(); err != nil {
		return fmt.Errorf("commit build: %w", err)
	}
	return nil
}

func (b *pgBuilder) Abort() error {
	if b.done {
		return nil
	}
	b.done = true
	return b.tx.Rollback()
}
