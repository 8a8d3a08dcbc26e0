// Package store provides persistent rag.VectorStore implementations.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/Yates-Labs/lectern/internal/logging"
	"github.com/Yates-Labs/lectern/internal/rag"
)

// Common errors for index storage
var (
	ErrBuildInProgress   = errors.New("another index build is in progress")
	ErrIncompatibleIndex = errors.New("persisted index is incompatible")
	ErrBuilderClosed     = errors.New("index builder already committed or aborted")
)

const (
	currentFile   = "CURRENT"
	lockFile      = "build.lock"
	snapshotDir   = "snapshots"
	snapshotExt   = ".db"
	metaModel     = "model"
	metaDimension = "dimension"
)

var removeFile = os.Remove

// snapshot is an immutable, fully loaded index generation.
type snapshot struct {
	id      string
	records []rag.ChunkRecord
}

// SQLiteStore keeps each index generation in its own SQLite file under
// <dir>/snapshots and publishes the active one through the <dir>/CURRENT
// pointer. Searches run against the in-memory copy of the active snapshot.
// Builds are single-writer across processes via <dir>/build.lock.
type SQLiteStore struct {
	dir       string
	model     string
	dimension int

	lock    *flock.Flock
	buildMu sync.Mutex
	logger  *slog.Logger

	mu     sync.RWMutex
	active *snapshot
}

// OpenSQLite opens the index in dir, creating the directory if needed. A
// directory without a CURRENT pointer yields an empty index.
func OpenSQLite(dir, model string, dimension int) (*SQLiteStore, error) {
	if dimension <= 0 {
		return nil, rag.ErrInvalidDimension
	}
	if err := os.MkdirAll(filepath.Join(dir, snapshotDir), 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	s := &SQLiteStore{
		dir:       dir,
		model:     model,
		dimension: dimension,
		lock:      flock.New(filepath.Join(dir, lockFile)),
		logger:    logging.OrDefault(nil).With("component", "sqlite_store"),
		active:    &snapshot{},
	}

	id, err := s.readCurrent()
	if err != nil {
		return nil, err
	}
	if id == "" {
		return s, nil
	}

	snap, err := s.loadSnapshot(id)
	if err != nil {
		return nil, err
	}
	s.active = snap
	return s, nil
}

// SetLogger replaces the store's logger. Call it before the first build.
func (s *SQLiteStore) SetLogger(logger *slog.Logger) {
	s.logger = logging.OrDefault(logger).With("component", "sqlite_store")
}

// SnapshotID returns the identifier of the active snapshot, or "" when empty.
func (s *SQLiteStore) SnapshotID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active.id
}

// Dimension returns the fixed vector dimension of the index
func (s *SQLiteStore) Dimension() int {
	return s.dimension
}

// Search ranks the active snapshot by exact cosine similarity.
func (s *SQLiteStore) Search(ctx context.Context, queryVector []float32, topK int) ([]rag.ContextChunk, error) {
	if len(queryVector) != s.dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", rag.ErrInvalidDimension, s.dimension, len(queryVector))
	}

	s.mu.RLock()
	records := s.active.records
	s.mu.RUnlock()

	return rag.RankRecords(records, queryVector, topK), nil
}

// Count returns the number of records in the active snapshot
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active.records), nil
}

// Insert appends records by building and publishing a new snapshot.
func (s *SQLiteStore) Insert(ctx context.Context, records []rag.ChunkRecord) error {
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

// Reset publishes an empty snapshot.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	b, err := s.Begin(ctx, rag.ModeReplace)
	if err != nil {
		return err
	}
	return b.Commit(ctx)
}

// Close releases the store. Snapshots stay on disk.
func (s *SQLiteStore) Close() error {
	return nil
}

// Begin starts a new snapshot build. In append mode the active records are
// copied into the new snapshot first.
func (s *SQLiteStore) Begin(ctx context.Context, mode rag.BuildMode) (rag.SnapshotBuilder, error) {
	if !s.buildMu.TryLock() {
		return nil, ErrBuildInProgress
	}
	ok, err := s.lock.TryLock()
	if err != nil {
		s.buildMu.Unlock()
		return nil, fmt.Errorf("acquire build lock: %w", err)
	}
	if !ok {
		s.buildMu.Unlock()
		return nil, ErrBuildInProgress
	}

	b, err := s.newBuilder(ctx, mode)
	if err != nil {
		s.releaseBuild()
		return nil, err
	}
	return b, nil
}

func (s *SQLiteStore) releaseBuild() {
	_ = s.lock.Unlock()
	s.buildMu.Unlock()
}

func (s *SQLiteStore) newBuilder(ctx context.Context, mode rag.BuildMode) (*sqliteBuilder, error) {
	// If another process published since we opened, start from its snapshot.
	if err := s.syncActive(); err != nil {
		return nil, err
	}

	id := time.Now().UTC().Format("20060102T150405.000000000Z") + "-" + uuid.NewString()[:8]
	path := s.snapshotPath(id)

	db, err := openSnapshotDB(path)
	if err != nil {
		return nil, err
	}
	if err := initSnapshotSchema(ctx, db, s.model, s.dimension); err != nil {
		_ = db.Close()
		_ = os.Remove(path)
		return nil, err
	}

	b := &sqliteBuilder{store: s, id: id, path: path, db: db}
	if mode == rag.ModeAppend {
		s.mu.RLock()
		existing := s.active.records
		s.mu.RUnlock()
		if len(existing) > 0 {
			if err := b.Insert(ctx, existing); err != nil {
				_ = b.discard()
				return nil, fmt.Errorf("copy active snapshot: %w", err)
			}
		}
	}
	return b, nil
}

// syncActive reloads the active snapshot when CURRENT points elsewhere.
func (s *SQLiteStore) syncActive() error {
	id, err := s.readCurrent()
	if err != nil {
		return err
	}
	if id == "" || id == s.SnapshotID() {
		return nil
	}
	snap, err := s.loadSnapshot(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.active = snap
	s.mu.Unlock()
	return nil
}

func (s *SQLiteStore) snapshotPath(id string) string {
	return filepath.Join(s.dir, snapshotDir, id+snapshotExt)
}

func (s *SQLiteStore) readCurrent() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, currentFile))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read index pointer: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// writeCurrent atomically replaces the CURRENT pointer.
func (s *SQLiteStore) writeCurrent(id string) error {
	tmp := filepath.Join(s.dir, currentFile+".tmp")
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("write index pointer: %w", err)
	}
	if _, err := f.WriteString(id + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("write index pointer: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync index pointer: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close index pointer: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, currentFile)); err != nil {
		return fmt.Errorf("publish index pointer: %w", err)
	}
	return syncDir(s.dir)
}

func (s *SQLiteStore) loadSnapshot(id string) (*snapshot, error) {
	path := s.snapshotPath(id)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open snapshot %s: %w", id, err)
	}

	db, err := openSnapshotDB(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	ctx := context.Background()
	model, dimension, err := readMeta(ctx, db)
	if err != nil {
		return nil, err
	}
	if dimension != s.dimension {
		return nil, fmt.Errorf("%w: snapshot %s has dimension %d, expected %d", ErrIncompatibleIndex, id, dimension, s.dimension)
	}
	if s.model != "" && model != s.model {
		return nil, fmt.Errorf("%w: snapshot %s was built with %q, configured %q", ErrIncompatibleIndex, id, model, s.model)
	}

	rows, err := db.QueryContext(ctx, `SELECT chunk_id, chunk_index, char_offset, text, source_file,
        start_time, end_time, embedding FROM chunks ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query snapshot %s: %w", id, err)
	}
	defer rows.Close()

	var records []rag.ChunkRecord
	for rows.Next() {
		var r rag.ChunkRecord
		var blob []byte
		if err := rows.Scan(&r.ID, &r.Index, &r.Offset, &r.Text, &r.SourceFile, &r.StartTime, &r.EndTime, &blob); err != nil {
			return nil, fmt.Errorf("scan snapshot %s: %w", id, err)
		}
		r.Embedding, err = decodeVector(blob, dimension)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s chunk %s: %w", id, r.ID, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", id, err)
	}

	return &snapshot{id: id, records: records}, nil
}

// sqliteBuilder writes one snapshot file.
type sqliteBuilder struct {
	store   *SQLiteStore
	id      string
	path    string
	db      *sql.DB
	records []rag.ChunkRecord
	done    bool
}

// Insert writes records to the staged snapshot in a single transaction.
func (b *sqliteBuilder) Insert(ctx context.Context, records []rag.ChunkRecord) error {
	if b.done {
		return ErrBuilderClosed
	}
	for _, r := range records {
		if len(r.Embedding) != b.store.dimension {
			return fmt.Errorf("%w: chunk %s has %d, expected %d", rag.ErrInvalidDimension, r.ID, len(r.Embedding), b.store.dimension)
		}
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks (
            chunk_id, chunk_index, char_offset, text, source_file, start_time, end_time, embedding
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.ID, r.Index, r.Offset, r.Text, r.SourceFile,
			r.StartTime, r.EndTime, encodeVector(r.Embedding)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert chunk %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}

	b.records = append(b.records, records...)
	return nil
}

// Commit makes the staged snapshot durable, points CURRENT at it, swaps it in
// for readers and removes superseded snapshots. Once CURRENT is written the
// build is published; a failed cleanup is only logged.
func (b *sqliteBuilder) Commit(ctx context.Context) error {
	if b.done {
		return ErrBuilderClosed
	}
	b.done = true
	defer b.store.releaseBuild()

	if err := b.db.Close(); err != nil {
		_ = os.Remove(b.path)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := syncFile(b.path); err != nil {
		_ = os.Remove(b.path)
		return err
	}
	if err := b.store.writeCurrent(b.id); err != nil {
		_ = os.Remove(b.path)
		return err
	}

	b.store.mu.Lock()
	b.store.active = &snapshot{id: b.id, records: b.records}
	b.store.mu.Unlock()

	if err := b.store.removeSnapshotsExcept(b.id); err != nil {
		b.store.logger.Warn("failed to remove superseded snapshots", "snapshot", b.id, "error", err)
	}
	return nil
}

// Abort discards the staged snapshot.
func (b *sqliteBuilder) Abort() error {
	if b.done {
		return nil
	}
	b.done = true
	defer b.store.releaseBuild()
	return b.discard()
}

func (b *sqliteBuilder) discard() error {
	closeErr := b.db.Close()
	if err := os.Remove(b.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove staged snapshot: %w", err)
	}
	return closeErr
}

func (s *SQLiteStore) removeSnapshotsExcept(id string) error {
	entries, err := os.ReadDir(filepath.Join(s.dir, snapshotDir))
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}
	keep := id + snapshotExt
	for _, e := range entries {
		// keep also covers the snapshot's -journal sidecar
		if e.IsDir() || strings.HasPrefix(e.Name(), keep) {
			continue
		}
		if err := removeFile(filepath.Join(s.dir, snapshotDir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove snapshot %s: %w", e.Name(), err)
		}
	}
	return nil
}

func openSnapshotDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=DELETE",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	return db, nil
}

func initSnapshotSchema(ctx context.Context, db *sql.DB, model string, dimension int) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
            key TEXT PRIMARY KEY,
            value TEXT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS chunks (
            seq INTEGER PRIMARY KEY AUTOINCREMENT,
            chunk_id TEXT NOT NULL,
            chunk_index INTEGER NOT NULL,
            char_offset INTEGER NOT NULL,
            text TEXT NOT NULL,
            source_file TEXT NOT NULL,
            start_time REAL NOT NULL,
            end_time REAL NOT NULL,
            embedding BLOB NOT NULL
        )`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create snapshot schema: %w", err)
		}
	}

	meta := map[string]string{
		metaModel:     model,
		metaDimension: strconv.Itoa(dimension),
	}
	for k, v := range meta {
		if _, err := db.ExecContext(ctx, `INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("write snapshot meta: %w", err)
		}
	}
	return nil
}

func readMeta(ctx context.Context, db *sql.DB) (string, int, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return "", 0, fmt.Errorf("%w: read meta: %v", ErrIncompatibleIndex, err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return "", 0, fmt.Errorf("scan meta: %w", err)
		}
		meta[k] = v
	}
	if err := rows.Err(); err != nil {
		return "", 0, fmt.Errorf("read meta: %w", err)
	}

	dimension, err := strconv.Atoi(meta[metaDimension])
	if err != nil {
		return "", 0, fmt.Errorf("%w: invalid dimension %q", ErrIncompatibleIndex, meta[metaDimension])
	}
	return meta[metaModel], dimension, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte, dimension int) ([]float32, error) {
	if len(buf) != 4*dimension {
		return nil, fmt.Errorf("%w: embedding blob has %d bytes, expected %d", ErrIncompatibleIndex, len(buf), 4*dimension)
	}
	v := make([]float32, dimension)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v, nil
}

func syncFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open snapshot for sync: %w", err)
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync snapshot: %w", err)
	}
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open index directory: %w", err)
	}
	defer d.Close()
	// some filesystems reject fsync on directories
	_ = d.Sync()
	return nil
}
