// Package chunker decomposes a project specification record into text chunks
// for embedding and retrieval.
//
// # Chunking Strategy
//
// Similarity search over per-item chunks alone answers "list all modules"
// questions badly: top-k favors detail chunks and the model never sees the
// full set. Every enumerable collection therefore gets both a dense roster
// chunk with explicit totals and one detail chunk per item.
//
// Chunks are emitted in a fixed order:
//
//  1. Module roster, story roster, feature roster
//  2. One detail chunk per module, with its stories and their features
//  3. Project overview
//  4. Global business rules
//  5. Tech stack
//  6. UI/UX guidelines
//
// # Basic Usage
//
//	c := chunker.New(chunker.Options{Granularity: chunker.GranularityStandard})
//	chunks, err := c.Build(data)
//	if errors.Is(err, chunker.ErrEmptyCorpus) {
//	    // nothing to index
//	}
//
// The chunker performs no I/O and never fails on missing fields; absent
// values render as "N/A" or a similar placeholder.
package chunker
