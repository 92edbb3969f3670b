package embedder

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Config holds embedder configuration
type Config struct {
	Provider  string // openai, jina or local; empty means detect
	Model     string
	BaseURL   string
	APIKey    string
	Dimension int // 0 means look up or detect
	CacheSize int
	Timeout   time.Duration
	// RateLimit caps remote API calls per second; 0 is unlimited.
	RateLimit float64
}

// New constructs the embedder described by cfg. A remote provider with an
// unknown model dimension learns it from one request. Every failure wraps
// ErrEmbeddingUnavailable.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize >= 0 {
		cache = NewCache(cfg.CacheSize)
	}

	provider := DetectProvider(cfg)
	switch provider {
	case ProviderLocal:
		return NewLocalProvider(cfg.Dimension, cache), nil
	case ProviderOpenAI, ProviderJina:
		return newRemote(ctx, provider, cfg, cache)
	default:
		return nil, fmt.Errorf("%w: %w: %s", ErrEmbeddingUnavailable, ErrUnsupportedModel, cfg.Provider)
	}
}

func newRemote(ctx context.Context, provider string, cfg Config, cache *Cache) (Embedder, error) {
	baseURL, model := cfg.BaseURL, cfg.Model
	if provider == ProviderJina {
		if baseURL == "" {
			baseURL = DefaultJinaBaseURL
		}
		if model == "" {
			model = DefaultJinaModel
		}
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: jina requires an API key", ErrEmbeddingUnavailable)
		}
	} else {
		if baseURL == "" {
			baseURL = DefaultOpenAIBaseURL
		}
		if model == "" {
			model = DefaultOpenAIModel
		}
	}

	dim := cfg.Dimension
	if dim == 0 {
		dim = KnownDimension(model)
	}

	p := NewHTTPProvider(provider, baseURL, cfg.APIKey, model, dim, cfg.Timeout, cache)
	p.SetRateLimit(cfg.RateLimit)
	if dim == 0 {
		if err := p.DetectDimension(ctx); err != nil {
			return nil, fmt.Errorf("%w: %s/%s: %w", ErrEmbeddingUnavailable, provider, model, err)
		}
	}
	return p, nil
}

// DetectProvider returns the provider New would use for cfg. An explicit
// provider wins; otherwise a base URL or API key selects openai and anything
// else falls back to the offline local provider. Key-based selection from the
// environment happens in internal/config.
func DetectProvider(cfg Config) string {
	if cfg.Provider != "" {
		return strings.ToLower(cfg.Provider)
	}
	if cfg.BaseURL != "" || cfg.APIKey != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}
