package searcher

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/projectrag-mcp/internal/embedder"
	"github.com/dshills/projectrag-mcp/internal/index"
	"github.com/dshills/projectrag-mcp/pkg/types"
)

type countingEmbedder struct {
	*embedder.LocalProvider
	calls atomic.Int32
}

func (c *countingEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	c.calls.Add(1)
	return c.LocalProvider.GenerateEmbedding(ctx, req)
}

func setup(t *testing.T) (*countingEmbedder, *index.Index) {
	t.Helper()
	emb := &countingEmbedder{LocalProvider: embedder.NewLocalProvider(128, nil)}
	chunks := []types.Chunk{
		{Text: "ALL MODULES IN THIS PROJECT: Auth, Billing. Total number of modules: 2", Metadata: types.ChunkMetadata{Source: "Module List Overview", Type: types.ChunkModuleList}},
		{Text: "Module: Auth\nlogin sessions passwords", Metadata: types.ChunkMetadata{Source: "Module Detail", Type: types.ChunkModuleDetail}},
		{Text: "Module: Billing\ninvoices payments refunds", Metadata: types.ChunkMetadata{Source: "Module Detail", Type: types.ChunkModuleDetail}},
		{Text: "Technology Stack:\nbackend: Go", Metadata: types.ChunkMetadata{Source: "Tech Stack", Type: types.ChunkTechnology}},
	}
	ix, err := index.Build(context.Background(), emb.LocalProvider, chunks, index.BuildOptions{})
	require.NoError(t, err)
	return emb, ix
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	emb, ix := setup(t)
	s := NewSearcher(emb)

	t.Run("ranks best first", func(t *testing.T) {
		resp, err := s.Search(ctx, ix, SearchRequest{Query: "billing invoices refunds", Limit: 2})
		require.NoError(t, err)
		require.Len(t, resp.Results, 2)
		assert.Equal(t, 1, resp.Results[0].Rank)
		assert.Equal(t, 2, resp.Results[1].Rank)
		assert.Contains(t, resp.Results[0].Chunk.Text, "Billing")
		for _, r := range resp.Results {
			assert.NoError(t, r.Validate())
		}
	})

	t.Run("default limit", func(t *testing.T) {
		resp, err := s.Search(ctx, ix, SearchRequest{Query: "modules"})
		require.NoError(t, err)
		assert.Len(t, resp.Results, DefaultLimit)
	})

	t.Run("limit above size returns all", func(t *testing.T) {
		resp, err := s.Search(ctx, ix, SearchRequest{Query: "modules", Limit: 40})
		require.NoError(t, err)
		assert.Len(t, resp.Results, 4)
	})

	t.Run("type filter", func(t *testing.T) {
		resp, err := s.Search(ctx, ix, SearchRequest{Query: "billing", Limit: 5, Types: []types.ChunkType{types.ChunkModuleList}})
		require.NoError(t, err)
		require.Len(t, resp.Results, 1)
		assert.Equal(t, types.ChunkModuleList, resp.Results[0].Chunk.Metadata.Type)
		assert.Equal(t, 1, resp.Results[0].Rank)
	})

	t.Run("min score", func(t *testing.T) {
		resp, err := s.Search(ctx, ix, SearchRequest{Query: "billing invoices", Limit: 5, MinScore: 0.3})
		require.NoError(t, err)
		for _, r := range resp.Results {
			assert.GreaterOrEqual(t, r.Score, float32(0.3))
		}
	})

	t.Run("validation", func(t *testing.T) {
		_, err := s.Search(ctx, ix, SearchRequest{Query: "   "})
		assert.ErrorIs(t, err, ErrEmptyQuery)

		_, err = s.Search(ctx, nil, SearchRequest{Query: "x"})
		assert.ErrorIs(t, err, ErrNoIndex)
	})
}

func TestSearch_Cache(t *testing.T) {
	ctx := context.Background()
	emb, ix := setup(t)
	s := NewSearcher(emb)

	req := SearchRequest{Query: "auth login", Limit: 2, UseCache: true, CacheKey: "fp-1"}
	first, err := s.Search(ctx, ix, req)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := s.Search(ctx, ix, req)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, int32(1), emb.calls.Load())

	t.Run("new generation misses", func(t *testing.T) {
		req := req
		req.CacheKey = "fp-2"
		resp, err := s.Search(ctx, ix, req)
		require.NoError(t, err)
		assert.False(t, resp.CacheHit)
	})

	t.Run("expired entries miss", func(t *testing.T) {
		req := SearchRequest{Query: "tech stack", UseCache: true, CacheKey: "fp-1", CacheTTL: time.Nanosecond}
		_, err := s.Search(ctx, ix, req)
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
		resp, err := s.Search(ctx, ix, req)
		require.NoError(t, err)
		assert.False(t, resp.CacheHit)
	})

	t.Run("clear", func(t *testing.T) {
		s.ClearCache()
		resp, err := s.Search(ctx, ix, req)
		require.NoError(t, err)
		assert.False(t, resp.CacheHit)
	})
}
