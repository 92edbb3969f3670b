package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/projectrag-mcp/internal/chunker"
	"github.com/dshills/projectrag-mcp/internal/embedder"
	"github.com/dshills/projectrag-mcp/internal/index"
	"github.com/dshills/projectrag-mcp/internal/logger"
	"github.com/dshills/projectrag-mcp/internal/storage"
	"github.com/dshills/projectrag-mcp/pkg/types"
)

// unboundedResident sizes the resident LRU when no limit is configured.
const unboundedResident = 1 << 20

var (
	ErrEmptyProjectID = errors.New("project id cannot be empty")
	// ErrChunkFailed marks failures turning project data into chunks.
	ErrChunkFailed = errors.New("chunking failed")
	// ErrEmbedFailed marks failures embedding chunks into an index.
	ErrEmbedFailed = errors.New("embedding failed")
)

// Outcome says how GetOrBuild produced its entry.
type Outcome int

const (
	// OutcomeReused means the resident index already matched the data.
	OutcomeReused Outcome = iota
	// OutcomeLoaded means a persisted index matched and was loaded.
	OutcomeLoaded
	// OutcomeRebuilt means chunks were embedded from scratch.
	OutcomeRebuilt
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReused:
		return "reused"
	case OutcomeLoaded:
		return "loaded"
	case OutcomeRebuilt:
		return "rebuilt"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Entry is one resident project index. Entries are never mutated; a rebuild
// replaces the whole entry.
type Entry struct {
	ProjectID   string
	Fingerprint string
	Index       *index.Index
	// Dir is the persistence directory, empty when persistence is off.
	Dir       string
	Persisted bool
	ReadyAt   time.Time
}

// Config contains configuration for the cache
type Config struct {
	// Root is the directory holding one subdirectory per project. Empty
	// disables persistence.
	Root        string
	Chunker     chunker.Options
	Build       index.BuildOptions
	MaxResident int // 0 = unbounded
}

// BuildOptions are per-call options for GetOrBuild
type BuildOptions struct {
	ForceRebuild bool
}

// Statistics counts cache activity since creation
type Statistics struct {
	Reused          int64
	Loaded          int64
	Rebuilt         int64
	PersistFailures int64
	Evicted         int64
	Resident        int
}

// Cache owns the project id -> index mapping. It builds each project at most
// once per distinct data fingerprint and serializes work per project id.
type Cache struct {
	emb      embedder.Embedder
	chunker  *chunker.Chunker
	root     string
	build    index.BuildOptions
	locks    *keyedLocks
	resident *lru.Cache[string, *Entry]

	reused, loaded, rebuilt, persistFailures, evicted atomic.Int64
}

// New creates a cache that embeds with emb.
func New(emb embedder.Embedder, cfg Config) (*Cache, error) {
	size := cfg.MaxResident
	if size <= 0 {
		size = unboundedResident
	}

	c := &Cache{
		emb:     emb,
		chunker: chunker.New(cfg.Chunker),
		root:    cfg.Root,
		build:   cfg.Build,
		locks:   newKeyedLocks(),
	}

	resident, err := lru.NewWithEvict[string, *Entry](size, func(projectID string, _ *Entry) {
		c.evicted.Add(1)
		logger.Debug("evicted project %s from memory", projectID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resident cache: %w", err)
	}
	c.resident = resident
	return c, nil
}

// Chunker returns the chunker used for builds
func (c *Cache) Chunker() *chunker.Chunker {
	return c.chunker
}

// Fingerprint identifies the index that data would produce: the canonical
// data, the chunker options and the embedding model.
func (c *Cache) Fingerprint(data *types.ProjectData) (string, error) {
	canonical, err := data.Canonical()
	if err != nil {
		return "", fmt.Errorf("failed to encode project data: %w", err)
	}
	opts := c.chunker.Options()

	h := sha256.New()
	h.Write(canonical)
	fmt.Fprintf(h, "\x00granularity=%s\x00skip_rosters=%t\x00embedder=%s/%s/%d",
		opts.Granularity, opts.SkipRosters, c.emb.Provider(), c.emb.Model(), c.emb.Dimension())
	return hex.EncodeToString(h.Sum(nil)), nil
}

// GetOrBuild returns an index for projectID that reflects data. Calls for the
// same project are serialized; at most one build runs per project at a time.
func (c *Cache) GetOrBuild(ctx context.Context, projectID string, data *types.ProjectData, opts BuildOptions) (*Entry, Outcome, error) {
	if projectID == "" {
		return nil, 0, ErrEmptyProjectID
	}
	if data == nil {
		return nil, 0, fmt.Errorf("%w: %w: no project data", ErrChunkFailed, types.ErrInvalidProject)
	}

	fingerprint, err := c.Fingerprint(data)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrChunkFailed, err)
	}

	release, err := c.locks.acquire(ctx, projectID)
	if err != nil {
		return nil, 0, err
	}
	defer release()

	if !opts.ForceRebuild {
		if e, ok := c.resident.Get(projectID); ok && e.Fingerprint == fingerprint {
			c.reused.Add(1)
			logger.Debug("project %s: reusing resident index (%d chunks)", projectID, e.Index.Len())
			return e, OutcomeReused, nil
		}
		if e := c.load(ctx, projectID, fingerprint); e != nil {
			c.resident.Add(projectID, e)
			c.loaded.Add(1)
			return e, OutcomeLoaded, nil
		}
	}

	e, err := c.rebuild(ctx, projectID, data, fingerprint)
	if err != nil {
		return nil, 0, err
	}
	c.resident.Add(projectID, e)
	c.rebuilt.Add(1)
	return e, OutcomeRebuilt, nil
}

// load returns the persisted index for projectID if it exists, is readable
// and was built from the same fingerprint. Anything else means rebuild.
func (c *Cache) load(ctx context.Context, projectID, fingerprint string) *Entry {
	if c.root == "" {
		return nil
	}
	dir := storage.ProjectDir(c.root, projectID)

	ix, stored, err := index.Load(ctx, dir, c.emb.Dimension())
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Debug("project %s: no persisted index", projectID)
		return nil
	case err != nil:
		logger.Warn("project %s: persisted index unusable, rebuilding: %v", projectID, err)
		return nil
	case stored != fingerprint:
		logger.Debug("project %s: persisted index is stale, rebuilding", projectID)
		return nil
	}

	logger.Debug("project %s: loaded persisted index (%d chunks)", projectID, ix.Len())
	return &Entry{
		ProjectID:   projectID,
		Fingerprint: fingerprint,
		Index:       ix,
		Dir:         dir,
		Persisted:   true,
		ReadyAt:     time.Now(),
	}
}

func (c *Cache) rebuild(ctx context.Context, projectID string, data *types.ProjectData, fingerprint string) (*Entry, error) {
	chunks, err := c.chunker.Build(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrChunkFailed, err)
	}
	logger.Debug("project %s: built %d chunks", projectID, len(chunks))

	ix, err := index.Build(ctx, c.emb, chunks, c.build)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedFailed, err)
	}

	e := &Entry{
		ProjectID:   projectID,
		Fingerprint: fingerprint,
		Index:       ix,
		ReadyAt:     time.Now(),
	}

	if c.root != "" {
		e.Dir = storage.ProjectDir(c.root, projectID)
		if err := ix.Persist(ctx, e.Dir, projectID, fingerprint); err != nil {
			c.persistFailures.Add(1)
			logger.Warn("project %s: failed to persist index, keeping it in memory only: %v", projectID, err)
		} else {
			e.Persisted = true
		}
	}
	return e, nil
}

// Get returns the resident entry for projectID without building anything.
func (c *Cache) Get(projectID string) (*Entry, bool) {
	return c.resident.Get(projectID)
}

// Building reports whether a build or invalidation for projectID is running.
func (c *Cache) Building(projectID string) bool {
	return c.locks.busy(projectID)
}

// Invalidate drops the resident entry for projectID and, when removePersisted
// is set, its snapshot on disk.
func (c *Cache) Invalidate(ctx context.Context, projectID string, removePersisted bool) error {
	release, err := c.locks.acquire(ctx, projectID)
	if err != nil {
		return err
	}
	defer release()

	c.resident.Remove(projectID)
	if removePersisted && c.root != "" {
		return storage.RemoveSnapshot(storage.ProjectDir(c.root, projectID))
	}
	return nil
}

// Resident lists resident project ids, least recently used first.
func (c *Cache) Resident() []string {
	return c.resident.Keys()
}

// PersistedInfo describes the snapshot for projectID, if persistence is on
// and one exists.
func (c *Cache) PersistedInfo(ctx context.Context, projectID string) (*storage.SnapshotInfo, error) {
	if c.root == "" {
		return nil, fs.ErrNotExist
	}
	return storage.InspectSnapshot(ctx, storage.ProjectDir(c.root, projectID))
}

// Stats returns activity counters
func (c *Cache) Stats() Statistics {
	return Statistics{
		Reused:          c.reused.Load(),
		Loaded:          c.loaded.Load(),
		Rebuilt:         c.rebuilt.Load(),
		PersistFailures: c.persistFailures.Load(),
		Evicted:         c.evicted.Load(),
		Resident:        c.resident.Len(),
	}
}
