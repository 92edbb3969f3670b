package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/dshills/projectrag-mcp/pkg/types"
)

// SnapshotPath returns the snapshot file for a project directory
func SnapshotPath(dir string) string {
	return filepath.Join(dir, IndexFileName)
}

// WriteSnapshot persists snap into dir. The database is written to a
// uniquely named temporary file and renamed over the previous snapshot, so a
// failed write never damages an existing valid one.
func WriteSnapshot(ctx context.Context, dir string, snap *Snapshot) (err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create index dir: %w", err)
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", IndexFileName, uuid.NewString()))
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
			_ = os.Remove(tmp + "-journal")
		}
	}()

	store, err := NewSQLiteStorage(ctx, tmp)
	if err != nil {
		return err
	}

	if err := writeSnapshotTx(ctx, store, snap); err != nil {
		_ = store.Close()
		return err
	}
	if err := store.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}

	if err := os.Rename(tmp, SnapshotPath(dir)); err != nil {
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}
	return nil
}

func writeSnapshotTx(ctx context.Context, store Storage, snap *Snapshot) error {
	tx, err := store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	meta := snap.Meta
	meta.ChunkCount = len(snap.Records)
	if err := tx.WriteMeta(ctx, &meta); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.InsertRecords(ctx, snap.Records); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot loads the snapshot in dir. It returns an error wrapping
// fs.ErrNotExist when there is none, and one wrapping ErrCorruptIndex when
// the file cannot be decoded or was built with a dimension other than
// dimension.
func ReadSnapshot(ctx context.Context, dir string, dimension int) (*Snapshot, error) {
	path := SnapshotPath(dir)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}

	store, err := OpenSQLiteStorage(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptIndex, path, err)
	}
	defer func() { _ = store.Close() }()

	meta, err := store.ReadMeta(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptIndex, path, err)
	}
	if meta.Dimension != dimension {
		return nil, fmt.Errorf("%w: %s: stored dimension %d, embedder dimension %d", ErrCorruptIndex, path, meta.Dimension, dimension)
	}

	records, err := store.ListRecords(ctx, dimension)
	if err != nil {
		if errors.Is(err, ErrCorruptIndex) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptIndex, path, err)
	}
	if len(records) != meta.ChunkCount {
		return nil, fmt.Errorf("%w: %s: %d chunks stored, meta says %d", ErrCorruptIndex, path, len(records), meta.ChunkCount)
	}

	return &Snapshot{Meta: *meta, Records: records}, nil
}

// RemoveSnapshot deletes the snapshot in dir. A missing snapshot is not an error.
func RemoveSnapshot(dir string) error {
	err := os.Remove(SnapshotPath(dir))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove snapshot: %w", err)
	}
	return nil
}

// SnapshotInfo summarizes a persisted snapshot without loading its vectors
type SnapshotInfo struct {
	Path          string
	SchemaVersion string
	BuildMode     string
	Meta          Meta
	Records       int // rows in the chunks table, normally Meta.ChunkCount
	ChunkTypes    map[types.ChunkType]int
	SizeBytes     int64
}

// InspectSnapshot reports what is stored in dir.
func InspectSnapshot(ctx context.Context, dir string) (*SnapshotInfo, error) {
	path := SnapshotPath(dir)
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}

	store, err := OpenSQLiteStorage(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptIndex, path, err)
	}
	defer func() { _ = store.Close() }()

	version, err := store.SchemaVersion(ctx)
	if err != nil {
		return nil, err
	}
	meta, err := store.ReadMeta(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptIndex, path, err)
	}
	records, err := store.CountRecords(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := store.chunkTypes(ctx)
	if err != nil {
		return nil, err
	}

	return &SnapshotInfo{
		Path:          path,
		SchemaVersion: version,
		BuildMode:     BuildMode,
		Meta:          *meta,
		Records:       records,
		ChunkTypes:    counts,
		SizeBytes:     st.Size(),
	}, nil
}
