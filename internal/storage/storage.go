package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"time"

	"github.com/dshills/projectrag-mcp/pkg/types"
)

// IndexFileName is the snapshot file inside a project directory.
const IndexFileName = "index.db"

// Storage defines the operations on one project's persisted index
type Storage interface {
	// Meta operations
	WriteMeta(ctx context.Context, meta *Meta) error
	ReadMeta(ctx context.Context) (*Meta, error)

	// Record operations
	InsertRecords(ctx context.Context, records []Record) error
	ListRecords(ctx context.Context, dimension int) ([]Record, error)
	CountRecords(ctx context.Context) (int, error)

	// Database operations
	SchemaVersion(ctx context.Context) (string, error)
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx is a transaction scoped to one snapshot write
type Tx interface {
	Commit() error
	Rollback() error
	WriteMeta(ctx context.Context, meta *Meta) error
	InsertRecords(ctx context.Context, records []Record) error
}

// Meta describes how a snapshot was built. Dimension is checked on load so a
// change of embedding model is detected instead of producing bad scores.
type Meta struct {
	ProjectID   string
	Dimension   int
	Provider    string
	Model       string
	Fingerprint string
	ChunkCount  int
	CreatedAt   time.Time
}

// Record is one stored chunk with its embedding. Seq preserves insertion
// order, which breaks score ties at query time.
type Record struct {
	Seq    int
	Chunk  types.Chunk
	Vector []float32
}

// Snapshot is the full persisted form of a project index
type Snapshot struct {
	Meta    Meta
	Records []Record
}

var unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// ProjectDir maps a project id to its directory under root. Ids that are not
// already safe path segments get a hash suffix so distinct ids never collide.
func ProjectDir(root, projectID string) string {
	safe := unsafePathChars.ReplaceAllString(projectID, "_")
	if safe != projectID || safe == "" || safe == "." || safe == ".." {
		sum := sha256.Sum256([]byte(projectID))
		safe = safe + "-" + hex.EncodeToString(sum[:4])
	}
	return filepath.Join(root, safe)
}
