package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/projectrag-mcp/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrCorruptIndex is returned when a persisted index cannot be read back
	// for the current embedding dimension. Callers rebuild instead of failing.
	ErrCorruptIndex = errors.New("corrupt index")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

var _ Storage = (*SQLiteStorage)(nil)

// openDatabase opens a SQLite database. Snapshots are written once and then
// moved, so they use a rollback journal instead of WAL side files.
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=DELETE"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// NewSQLiteStorage opens dbPath and brings its schema up to date
func NewSQLiteStorage(ctx context.Context, dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// OpenSQLiteStorage opens an existing snapshot without modifying it. The
// schema must be one this build can read.
func OpenSQLiteStorage(ctx context.Context, dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := checkReadable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// SchemaVersion returns the newest applied migration
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (string, error) {
	v, err := currentVersion(ctx, s.db)
	if err != nil {
		return "", err
	}
	return v.Original(), nil
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) WriteMeta(ctx context.Context, meta *Meta) error {
	return writeMeta(ctx, t.tx, meta)
}

func (t *sqliteTx) InsertRecords(ctx context.Context, records []Record) error {
	return insertRecords(ctx, t.tx, records)
}

// Meta operations

func (s *SQLiteStorage) WriteMeta(ctx context.Context, meta *Meta) error {
	return writeMeta(ctx, s.db, meta)
}

func writeMeta(ctx context.Context, q querier, meta *Meta) error {
	query := `
		INSERT INTO index_meta (id, project_id, dimension, provider, model, fingerprint, chunk_count, created_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model,
			fingerprint = excluded.fingerprint,
			chunk_count = excluded.chunk_count,
			created_at = excluded.created_at
	`
	createdAt := meta.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := q.ExecContext(ctx, query,
		meta.ProjectID, meta.Dimension, meta.Provider, meta.Model,
		meta.Fingerprint, meta.ChunkCount, createdAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to write index meta: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ReadMeta(ctx context.Context) (*Meta, error) {
	query := `
		SELECT project_id, dimension, provider, model, fingerprint, chunk_count, created_at
		FROM index_meta WHERE id = 1
	`
	var meta Meta
	var createdAt string
	err := s.db.QueryRowContext(ctx, query).Scan(
		&meta.ProjectID, &meta.Dimension, &meta.Provider, &meta.Model,
		&meta.Fingerprint, &meta.ChunkCount, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index meta: %w", err)
	}

	meta.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	return &meta, nil
}

// Record operations

func (s *SQLiteStorage) InsertRecords(ctx context.Context, records []Record) error {
	return insertRecords(ctx, s.db, records)
}

func insertRecords(ctx context.Context, q querier, records []Record) error {
	query := `
		INSERT INTO chunks (seq, text, content_hash, source, chunk_type, metadata, vector)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for _, r := range records {
		metadata, err := json.Marshal(r.Chunk.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for chunk %d: %w", r.Seq, err)
		}
		_, err = q.ExecContext(ctx, query,
			r.Seq, r.Chunk.Text, r.Chunk.ContentHash(), r.Chunk.Metadata.Source,
			string(r.Chunk.Metadata.Type), string(metadata), serializeVector(r.Vector))
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", r.Seq, err)
		}
	}
	return nil
}

// ListRecords returns every record in insertion order. A vector whose length
// is not dimension is reported as ErrCorruptIndex.
func (s *SQLiteStorage) ListRecords(ctx context.Context, dimension int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT seq, text, metadata, vector FROM chunks ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var r Record
		var metadata string
		var blob []byte
		if err := rows.Scan(&r.Seq, &r.Chunk.Text, &metadata, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		if len(blob) != dimension*4 {
			return nil, fmt.Errorf("%w: chunk %d has %d vector bytes, want %d", ErrCorruptIndex, r.Seq, len(blob), dimension*4)
		}
		if err := json.Unmarshal([]byte(metadata), &r.Chunk.Metadata); err != nil {
			return nil, fmt.Errorf("%w: chunk %d metadata: %v", ErrCorruptIndex, r.Seq, err)
		}
		r.Vector = deserializeVector(blob)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *SQLiteStorage) CountRecords(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// chunkTypes returns the stored chunk types and their counts.
func (s *SQLiteStorage) chunkTypes(ctx context.Context) (map[types.ChunkType]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chunk_type, COUNT(*) FROM chunks GROUP BY chunk_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunk types: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[types.ChunkType]int)
	for rows.Next() {
		var typ sql.NullString
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		counts[types.ChunkType(typ.String)] = n
	}
	return counts, rows.Err()
}
