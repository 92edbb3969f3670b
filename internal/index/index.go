// Package index holds a project's chunks and their embeddings in memory and
// answers nearest-neighbor queries by exhaustive dot product.
//
// An Index is immutable once built or loaded, so any number of goroutines may
// query it concurrently without locking.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dshills/projectrag-mcp/internal/embedder"
	"github.com/dshills/projectrag-mcp/internal/storage"
	"github.com/dshills/projectrag-mcp/pkg/types"
)

// ErrNoChunks is returned when building an index from nothing.
var ErrNoChunks = errors.New("no chunks to index")

// BuildOptions tune embedding during Build.
type BuildOptions struct {
	BatchSize   int
	Concurrency int
}

// Index is an immutable set of (vector, chunk) entries in insertion order.
type Index struct {
	dimension int
	provider  string
	model     string
	createdAt time.Time
	vectors   [][]float32
	chunks    []types.Chunk
}

// Result is one query hit.
type Result struct {
	Chunk types.Chunk
	Score float32
	Seq   int
}

// Build embeds every chunk and returns an index over them. Chunk order is preserved.
func Build(ctx context.Context, emb embedder.Embedder, chunks []types.Chunk, opts BuildOptions) (*Index, error) {
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		if err := chunks[i].Validate(); err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		texts[i] = chunks[i].Text
	}

	vectors, err := embedder.EmbedTexts(ctx, emb, texts, opts.BatchSize, opts.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	owned := make([]types.Chunk, len(chunks))
	copy(owned, chunks)

	return &Index{
		dimension: emb.Dimension(),
		provider:  emb.Provider(),
		model:     emb.Model(),
		createdAt: time.Now(),
		vectors:   vectors,
		chunks:    owned,
	}, nil
}

// Query returns the min(k, Len()) entries most similar to vec, best first.
// Equal scores keep insertion order. k <= 0 returns nothing.
func (ix *Index) Query(vec []float32, k int) ([]Result, error) {
	if len(vec) != ix.dimension {
		return nil, fmt.Errorf("%w: query has %d, index has %d", embedder.ErrDimensionChanged, len(vec), ix.dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	results := make([]Result, len(ix.vectors))
	for i, v := range ix.vectors {
		results[i] = Result{Chunk: ix.chunks[i], Score: dot(vec, v), Seq: i}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// Len returns the number of entries
func (ix *Index) Len() int {
	return len(ix.chunks)
}

// Dimension returns the vector length
func (ix *Index) Dimension() int {
	return ix.dimension
}

// CreatedAt returns when the index was built
func (ix *Index) CreatedAt() time.Time {
	return ix.createdAt
}

// Chunks returns a copy of the indexed chunks in insertion order
func (ix *Index) Chunks() []types.Chunk {
	out := make([]types.Chunk, len(ix.chunks))
	copy(out, ix.chunks)
	return out
}

// Persist writes the index to dir, tagged with the project id and the
// fingerprint of the data it was built from.
func (ix *Index) Persist(ctx context.Context, dir, projectID, fingerprint string) error {
	records := make([]storage.Record, len(ix.chunks))
	for i := range ix.chunks {
		records[i] = storage.Record{Seq: i, Chunk: ix.chunks[i], Vector: ix.vectors[i]}
	}

	snap := &storage.Snapshot{
		Meta: storage.Meta{
			ProjectID:   projectID,
			Dimension:   ix.dimension,
			Provider:    ix.provider,
			Model:       ix.model,
			Fingerprint: fingerprint,
			CreatedAt:   ix.createdAt,
		},
		Records: records,
	}
	return storage.WriteSnapshot(ctx, dir, snap)
}

// Load reads a persisted index for an embedder of the given dimension. It
// also returns the stored fingerprint so callers can check staleness.
// Errors wrap storage.ErrCorruptIndex or fs.ErrNotExist.
func Load(ctx context.Context, dir string, dimension int) (*Index, string, error) {
	snap, err := storage.ReadSnapshot(ctx, dir, dimension)
	if err != nil {
		return nil, "", err
	}
	if len(snap.Records) == 0 {
		return nil, "", fmt.Errorf("%w: snapshot has no chunks", storage.ErrCorruptIndex)
	}

	ix := &Index{
		dimension: snap.Meta.Dimension,
		provider:  snap.Meta.Provider,
		model:     snap.Meta.Model,
		createdAt: snap.Meta.CreatedAt,
		vectors:   make([][]float32, len(snap.Records)),
		chunks:    make([]types.Chunk, len(snap.Records)),
	}
	for i, r := range snap.Records {
		ix.vectors[i] = r.Vector
		ix.chunks[i] = r.Chunk
	}
	return ix, snap.Meta.Fingerprint, nil
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
