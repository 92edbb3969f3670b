// Package rag is the entry point for callers: it initializes project indexes
// and answers questions about them.
package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/projectrag-mcp/internal/answerer"
	"github.com/dshills/projectrag-mcp/internal/embedder"
	"github.com/dshills/projectrag-mcp/internal/indexer"
	"github.com/dshills/projectrag-mcp/internal/logger"
	"github.com/dshills/projectrag-mcp/internal/searcher"
	"github.com/dshills/projectrag-mcp/internal/storage"
	"github.com/dshills/projectrag-mcp/pkg/types"
)

// ErrNotInitialized is returned by Query for a project with no resident index.
var ErrNotInitialized = errors.New("project not initialized")

// Stage names the pipeline step an Error came from.
type Stage string

const (
	StageChunk Stage = "chunk"
	StageEmbed Stage = "embed"
	StageIndex Stage = "index"
	StageQuery Stage = "query"
	StageModel Stage = "model"
)

// Error is the error type returned by Service.
type Error struct {
	ProjectID string
	Stage     Stage
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("project %s: %s: %v", e.ProjectID, e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Config holds facade defaults.
type Config struct {
	TopK int
	// ForceRebuild makes every Initialize rebuild.
	ForceRebuild bool
}

// QueryOptions narrow the context a query retrieves. TopK <= 0 uses the
// configured default.
type QueryOptions struct {
	TopK     int
	MinScore float32
	Types    []types.ChunkType
}

// Service ties the index cache to the answerer.
type Service struct {
	cache    *indexer.Cache
	answerer *answerer.Answerer
	emb      embedder.Embedder
	cfg      Config
}

// InitResult describes a finished Initialize.
type InitResult struct {
	ProjectID   string
	Outcome     indexer.Outcome
	Chunks      int
	Fingerprint string
	Persisted   bool
	Duration    time.Duration
}

// Status describes what is known about a project.
type Status struct {
	ProjectID   string
	Resident    bool
	Building    bool
	Chunks      int
	Fingerprint string
	Persisted   bool
	ReadyAt     time.Time
	// Snapshot is nil when nothing is persisted.
	Snapshot *storage.SnapshotInfo
}

// New creates a Service. emb is closed by Close and may be nil.
func New(cache *indexer.Cache, ans *answerer.Answerer, emb embedder.Embedder, cfg Config) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = searcher.DefaultLimit
	}
	return &Service{cache: cache, answerer: ans, emb: emb, cfg: cfg}
}

// Initialize makes the index for projectID reflect data, reusing or loading
// an existing one when the data is unchanged.
func (s *Service) Initialize(ctx context.Context, projectID string, data *types.ProjectData) (*InitResult, error) {
	return s.initialize(ctx, projectID, data, s.cfg.ForceRebuild)
}

// Rebuild is Initialize that always re-embeds.
func (s *Service) Rebuild(ctx context.Context, projectID string, data *types.ProjectData) (*InitResult, error) {
	return s.initialize(ctx, projectID, data, true)
}

// InitializeJSON decodes raw project JSON and initializes it.
func (s *Service) InitializeJSON(ctx context.Context, projectID string, raw []byte, force bool) (*InitResult, error) {
	data, err := types.DecodeProjectData(raw)
	if err != nil {
		return nil, &Error{ProjectID: projectID, Stage: StageChunk, Err: err}
	}
	return s.initialize(ctx, projectID, data, force || s.cfg.ForceRebuild)
}

func (s *Service) initialize(ctx context.Context, projectID string, data *types.ProjectData, force bool) (*InitResult, error) {
	start := time.Now()
	logger.Debug("initializing project %s (force=%t)", projectID, force)

	entry, outcome, err := s.cache.GetOrBuild(ctx, projectID, data, indexer.BuildOptions{ForceRebuild: force})
	if err != nil {
		return nil, &Error{ProjectID: projectID, Stage: initStage(err), Err: err}
	}

	res := &InitResult{
		ProjectID:   projectID,
		Outcome:     outcome,
		Chunks:      entry.Index.Len(),
		Fingerprint: entry.Fingerprint,
		Persisted:   entry.Persisted,
		Duration:    time.Since(start),
	}
	logger.Info("project %s ready: %s, %d chunks in %v", projectID, outcome, res.Chunks, res.Duration.Round(time.Millisecond))
	return res, nil
}

func initStage(err error) Stage {
	switch {
	case errors.Is(err, indexer.ErrChunkFailed), errors.Is(err, indexer.ErrEmptyProjectID):
		return StageChunk
	case errors.Is(err, indexer.ErrEmbedFailed):
		return StageEmbed
	default:
		return StageIndex
	}
}

// Query answers question using the configured top-k.
func (s *Service) Query(ctx context.Context, projectID, question string) (string, error) {
	ans, err := s.QueryDetailed(ctx, projectID, question, 0)
	if err != nil {
		return "", err
	}
	return ans.Text, nil
}

// QueryDetailed answers question with k chunks (k <= 0 uses the default) and
// returns the sources alongside the answer.
func (s *Service) QueryDetailed(ctx context.Context, projectID, question string, k int) (*answerer.Answer, error) {
	return s.QueryWith(ctx, projectID, question, QueryOptions{TopK: k})
}

// QueryWith is QueryDetailed with score and chunk type filters.
func (s *Service) QueryWith(ctx context.Context, projectID, question string, opts QueryOptions) (*answerer.Answer, error) {
	entry, ok := s.cache.Get(projectID)
	if !ok {
		return nil, &Error{ProjectID: projectID, Stage: StageQuery, Err: ErrNotInitialized}
	}
	k := opts.TopK
	if k <= 0 {
		k = s.cfg.TopK
	}

	ans, err := s.answerer.AskWith(ctx, entry, answerer.Query{
		Question: question,
		K:        k,
		MinScore: opts.MinScore,
		Types:    opts.Types,
	})
	if err != nil {
		return nil, &Error{ProjectID: projectID, Stage: queryStage(err), Err: err}
	}
	return ans, nil
}

func queryStage(err error) Stage {
	switch {
	case errors.Is(err, answerer.ErrModelUnavailable):
		return StageModel
	case errors.Is(err, embedder.ErrProviderFailed), errors.Is(err, embedder.ErrEmbeddingUnavailable):
		return StageEmbed
	default:
		return StageQuery
	}
}

// Status reports the resident and persisted state of projectID.
func (s *Service) Status(ctx context.Context, projectID string) *Status {
	st := &Status{
		ProjectID: projectID,
		Building:  s.cache.Building(projectID),
	}
	if e, ok := s.cache.Get(projectID); ok {
		st.Resident = true
		st.Chunks = e.Index.Len()
		st.Fingerprint = e.Fingerprint
		st.Persisted = e.Persisted
		st.ReadyAt = e.ReadyAt
	}
	if info, err := s.cache.PersistedInfo(ctx, projectID); err == nil {
		st.Snapshot = info
	}
	return st
}

// Invalidate forgets projectID, optionally deleting its snapshot.
func (s *Service) Invalidate(ctx context.Context, projectID string, removePersisted bool) error {
	if err := s.cache.Invalidate(ctx, projectID, removePersisted); err != nil {
		return &Error{ProjectID: projectID, Stage: StageIndex, Err: err}
	}
	s.answerer.ClearCache()
	return nil
}

// Projects lists resident project ids.
func (s *Service) Projects() []string {
	return s.cache.Resident()
}

// Stats exposes the cache counters.
func (s *Service) Stats() indexer.Statistics {
	return s.cache.Stats()
}

// Close releases the embedder.
func (s *Service) Close() error {
	if s.emb == nil {
		return nil
	}
	return s.emb.Close()
}
