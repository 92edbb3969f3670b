// Package storage persists project vector indexes as SQLite snapshots.
//
// Each project gets its own directory (see ProjectDir) holding a single
// index.db file. A snapshot is self-describing: it records the embedding
// dimension, provider and model it was built with and the fingerprint of the
// project data it came from.
//
// # Database Schema
//
// Tables:
//   - schema_version: applied migrations (semantic versions)
//   - index_meta: one row with dimension, provider, model, fingerprint, project id
//   - chunks: chunk text, JSON metadata and the vector as little-endian float32s
//
// # Basic Usage
//
//	dir := storage.ProjectDir(root, projectID)
//	if err := storage.WriteSnapshot(ctx, dir, snap); err != nil {
//	    return err
//	}
//
//	snap, err := storage.ReadSnapshot(ctx, dir, emb.Dimension())
//	switch {
//	case errors.Is(err, fs.ErrNotExist):
//	    // never persisted
//	case errors.Is(err, storage.ErrCorruptIndex):
//	    // unreadable or built by another model; rebuild
//	}
//
// # Atomicity
//
// WriteSnapshot builds the database in a temporary file next to the target
// and renames it into place, so readers see either the old or the new
// snapshot and a failed write leaves the old one intact.
//
// # Build Modes
//
// The default build uses modernc.org/sqlite (pure Go). Building with
// -tags sqlite_vec links github.com/mattn/go-sqlite3 instead; BuildMode
// reports which one is active.
package storage
