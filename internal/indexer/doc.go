// Package indexer keeps one searchable index per project and decides when an
// index can be reused, loaded from disk, or has to be rebuilt.
//
// # Reuse
//
// Every build is tagged with a fingerprint: sha256 over the canonical project
// data, the chunker options and the embedding model identity. GetOrBuild
// returns
//
//   - OutcomeReused when the resident index has the same fingerprint,
//   - OutcomeLoaded when a persisted snapshot has it,
//   - OutcomeRebuilt otherwise, or when ForceRebuild is set.
//
// A snapshot that cannot be read is treated like a missing one and replaced.
//
// # Concurrency
//
// Calls for the same project id are serialized by a per-project lock, so
// concurrent initialization performs a single build. Different projects build
// in parallel. Entries are immutable; readers use them without locking.
//
//	cache, _ := indexer.New(emb, indexer.Config{Root: dir})
//	entry, outcome, err := cache.GetOrBuild(ctx, "proj-1", data, indexer.BuildOptions{})
//
// Failing to persist a fresh index is logged and the in-memory index is still
// returned.
package indexer
