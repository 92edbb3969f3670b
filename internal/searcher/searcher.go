package searcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/projectrag-mcp/internal/embedder"
	"github.com/dshills/projectrag-mcp/internal/index"
	"github.com/dshills/projectrag-mcp/pkg/types"
)

const (
	// DefaultLimit is the top-k used when a request does not set one
	DefaultLimit = 3
	// MaxLimit bounds top-k
	MaxLimit = 50

	defaultCacheTTL  = 5 * time.Minute
	defaultCacheSize = 1000
)

var (
	ErrEmptyQuery = errors.New("query cannot be empty")
	ErrNoIndex    = errors.New("no index to search")
)

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query    string
	Limit    int
	MinScore float32           // drop hits scoring below this
	Types    []types.ChunkType // restrict to these chunk types when set
	UseCache bool
	CacheKey string // identifies the index generation, e.g. its data fingerprint
	CacheTTL time.Duration
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results      []types.SearchResult
	TotalResults int
	Duration     time.Duration
	CacheHit     bool
}

// cacheEntry represents a cached search response with expiration time
type cacheEntry struct {
	response  *SearchResponse
	expiresAt time.Time
}

// Searcher embeds questions and queries project indexes
type Searcher struct {
	embedder embedder.Embedder
	cache    *lru.Cache[[32]byte, *cacheEntry]
	cacheMu  sync.Mutex
}

// NewSearcher creates a new Searcher instance
func NewSearcher(emb embedder.Embedder) *Searcher {
	cache, err := lru.New[[32]byte, *cacheEntry](defaultCacheSize)
	if err != nil {
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	return &Searcher{
		embedder: emb,
		cache:    cache,
	}
}

// Search returns the chunks of ix most similar to req.Query
func (s *Searcher) Search(ctx context.Context, ix *index.Index, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if ix == nil {
		return nil, ErrNoIndex
	}
	if err := s.validateRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	var key [32]byte
	if req.UseCache {
		key = cacheKey(req)
		if cached := s.checkCache(key); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(startTime)
			return cached, nil
		}
	}

	embedding, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: req.Query})
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	// Filtering happens after ranking, so over-fetch when filters are set.
	fetch := req.Limit
	if len(req.Types) > 0 || req.MinScore > 0 {
		fetch = ix.Len()
	}
	hits, err := ix.Query(embedding.Vector, fetch)
	if err != nil {
		return nil, err
	}

	results := make([]types.SearchResult, 0, req.Limit)
	for _, h := range hits {
		if len(results) == req.Limit {
			break
		}
		if (req.MinScore > 0 && h.Score < req.MinScore) || !typeAllowed(h.Chunk.Metadata.Type, req.Types) {
			continue
		}
		results = append(results, types.SearchResult{
			Rank:  len(results) + 1,
			Score: h.Score,
			Chunk: h.Chunk,
		})
	}

	response := &SearchResponse{
		Results:      results,
		TotalResults: len(results),
		Duration:     time.Since(startTime),
	}

	if req.UseCache && len(results) > 0 {
		s.storeInCache(key, req, response)
	}

	return response, nil
}

// ClearCache drops all cached responses
func (s *Searcher) ClearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cache.Purge()
}

func (s *Searcher) validateRequest(req *SearchRequest) error {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return ErrEmptyQuery
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}
	if req.CacheTTL <= 0 {
		req.CacheTTL = defaultCacheTTL
	}
	return nil
}

func typeAllowed(t types.ChunkType, allowed []types.ChunkType) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == t {
			return true
		}
	}
	return false
}

func cacheKey(req SearchRequest) [32]byte {
	typeNames := make([]string, len(req.Types))
	for i, t := range req.Types {
		typeNames[i] = string(t)
	}
	return sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s\x00%d\x00%g\x00%s",
		req.CacheKey, req.Query, req.Limit, req.MinScore, strings.Join(typeNames, ","))))
}

func (s *Searcher) checkCache(key [32]byte) *SearchResponse {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	entry, ok := s.cache.Get(key)
	if !ok {
		return nil
	}
	if time.Now().After(entry.expiresAt) {
		s.cache.Remove(key)
		return nil
	}

	copied := *entry.response
	copied.Results = append([]types.SearchResult(nil), entry.response.Results...)
	return &copied
}

func (s *Searcher) storeInCache(key [32]byte, req SearchRequest, response *SearchResponse) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	stored := *response
	stored.Results = append([]types.SearchResult(nil), response.Results...)
	s.cache.Add(key, &cacheEntry{response: &stored, expiresAt: time.Now().Add(req.CacheTTL)})
}
