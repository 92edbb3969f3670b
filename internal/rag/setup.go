package rag

import (
	"context"
	"fmt"

	"github.com/dshills/projectrag-mcp/internal/answerer"
	"github.com/dshills/projectrag-mcp/internal/config"
	"github.com/dshills/projectrag-mcp/internal/embedder"
	"github.com/dshills/projectrag-mcp/internal/indexer"
	"github.com/dshills/projectrag-mcp/internal/llm"
	"github.com/dshills/projectrag-mcp/internal/logger"
	"github.com/dshills/projectrag-mcp/internal/searcher"
)

// SetupOptions adjust Open for callers that do not need every component.
type SetupOptions struct {
	// Ephemeral keeps indexes in memory only.
	Ephemeral bool
	// Model replaces the configured chat client.
	Model llm.Generator
}

// Open wires a Service from cfg: embedder, index cache, searcher, chat
// client and answerer.
func Open(ctx context.Context, cfg *config.Config, opts SetupOptions) (*Service, error) {
	logger.SetVerbose(cfg.Debug)

	emb, err := embedder.New(ctx, cfg.EmbedderConfig())
	if err != nil {
		return nil, &Error{Stage: StageEmbed, Err: err}
	}
	logger.Debug("embedder %s/%s, dimension %d", emb.Provider(), emb.Model(), emb.Dimension())

	icfg, err := cfg.IndexerConfig(!opts.Ephemeral)
	if err != nil {
		_ = emb.Close()
		return nil, err
	}
	cache, err := indexer.New(emb, icfg)
	if err != nil {
		_ = emb.Close()
		return nil, err
	}

	model := opts.Model
	if model == nil {
		lc := cfg.LLMClientConfig()
		if lc.APIKey == "" && lc.BaseURL == llm.DefaultBaseURL {
			logger.Warn("no %s set; questions will fail until one is configured", config.EnvOpenRouterAPIKey)
		}
		model = llm.New(lc)
	}

	var aopts []answerer.Option
	if cfg.PromptFile != "" {
		p, err := answerer.LoadPreamble(cfg.PromptFile)
		if err != nil {
			_ = emb.Close()
			return nil, fmt.Errorf("prompt file: %w", err)
		}
		aopts = append(aopts, answerer.WithPreamble(p))
	}

	ans := answerer.New(searcher.NewSearcher(emb), model, aopts...)
	return New(cache, ans, emb, Config{TopK: cfg.TopK, ForceRebuild: cfg.Index.ForceRebuild}), nil
}
