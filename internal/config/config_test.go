package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/projectrag-mcp/internal/chunker"
	"github.com/dshills/projectrag-mcp/internal/embedder"
	"github.com/dshills/projectrag-mcp/internal/llm"
)

// isolate clears every variable Load reads and points file lookups at an
// empty temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	for _, k := range []string{
		EnvEmbeddingProvider, EnvEmbeddingModel, EnvEmbeddingBaseURL, EnvEmbeddingAPIKey, EnvEmbeddingRate,
		EnvOpenAIAPIKey, EnvJinaAPIKey, EnvLLMModel, EnvLLMBaseURL, EnvLLMAPIKey,
		EnvOpenRouterAPIKey, EnvLLMTimeout, EnvTopK, EnvForceRebuild, EnvDebug,
		EnvIndexDir, EnvGranularity, EnvPromptFile, EnvMaxResident, EnvConfigFile,
	} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	return dir
}

func load(t *testing.T, dir string) *Config {
	t.Helper()
	cfg, err := Load(Options{EnvFile: filepath.Join(dir, ".env")})
	require.NoError(t, err)
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	dir := isolate(t)
	cfg := load(t, dir)

	assert.Equal(t, 3, cfg.TopK)
	assert.Equal(t, llm.DefaultModel, cfg.LLM.Model)
	assert.Equal(t, llm.DefaultBaseURL, cfg.LLM.BaseURL)
	assert.False(t, cfg.Debug)
	assert.False(t, cfg.Index.ForceRebuild)

	indexDir, err := cfg.IndexDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".projectrag", "indices"), indexDir)

	opts, err := cfg.ChunkerOptions()
	require.NoError(t, err)
	assert.Equal(t, chunker.GranularityStandard, opts.Granularity)
	assert.Equal(t, "", cfg.EmbedderConfig().Provider, "provider is auto-detected")
}

func TestLoad_Env(t *testing.T) {
	dir := isolate(t)
	t.Setenv(EnvTopK, "5")
	t.Setenv(EnvDebug, "true")
	t.Setenv(EnvForceRebuild, "1")
	t.Setenv(EnvOpenRouterAPIKey, "or-key")
	t.Setenv(EnvLLMTimeout, "45s")
	t.Setenv(EnvGranularity, "detailed")
	t.Setenv(EnvMaxResident, "10")
	t.Setenv(EnvIndexDir, "/var/lib/rag")
	t.Setenv(EnvEmbeddingProvider, "JINA")
	t.Setenv(EnvJinaAPIKey, "jina-key")
	t.Setenv(EnvEmbeddingRate, "2.5")

	cfg := load(t, dir)
	assert.Equal(t, 5, cfg.TopK)
	assert.True(t, cfg.Debug)
	assert.True(t, cfg.Index.ForceRebuild)
	assert.Equal(t, 10, cfg.Index.MaxResident)

	lc := cfg.LLMClientConfig()
	assert.Equal(t, "or-key", lc.APIKey)
	assert.Equal(t, 45*time.Second, lc.Timeout)

	ec := cfg.EmbedderConfig()
	assert.Equal(t, "jina", ec.Provider)
	assert.Equal(t, "jina-key", ec.APIKey)
	assert.InDelta(t, 2.5, ec.RateLimit, 1e-9)

	ic, err := cfg.IndexerConfig(true)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/rag", ic.Root)
	assert.Equal(t, chunker.GranularityDetailed, ic.Chunker.Granularity)
	assert.Equal(t, 10, ic.MaxResident)

	ic, err = cfg.IndexerConfig(false)
	require.NoError(t, err)
	assert.Empty(t, ic.Root)
}

func TestLoad_APIKeyPrecedence(t *testing.T) {
	dir := isolate(t)
	t.Setenv(EnvOpenRouterAPIKey, "or-key")
	t.Setenv(EnvLLMAPIKey, "explicit")
	t.Setenv(EnvOpenAIAPIKey, "openai-key")
	t.Setenv(EnvEmbeddingAPIKey, "embedding-key")

	cfg := load(t, dir)
	assert.Equal(t, "explicit", cfg.LLM.APIKey)
	assert.Equal(t, "embedding-key", cfg.Embedding.APIKey)
}

func TestLoad_EmbeddingProviderFromKeys(t *testing.T) {
	t.Run("openai key", func(t *testing.T) {
		dir := isolate(t)
		t.Setenv(EnvOpenAIAPIKey, "openai-key")

		ec := load(t, dir).EmbedderConfig()
		assert.Equal(t, embedder.ProviderOpenAI, embedder.DetectProvider(ec))
		assert.Equal(t, "openai-key", ec.APIKey)
	})

	t.Run("jina key alone", func(t *testing.T) {
		dir := isolate(t)
		t.Setenv(EnvJinaAPIKey, "jina-key")

		ec := load(t, dir).EmbedderConfig()
		assert.Equal(t, embedder.ProviderJina, embedder.DetectProvider(ec))
		assert.Equal(t, "jina-key", ec.APIKey)
	})

	t.Run("jina key wins over openai key", func(t *testing.T) {
		dir := isolate(t)
		t.Setenv(EnvOpenAIAPIKey, "openai-key")
		t.Setenv(EnvJinaAPIKey, "jina-key")

		ec := load(t, dir).EmbedderConfig()
		assert.Equal(t, embedder.ProviderJina, ec.Provider)
		assert.Equal(t, "jina-key", ec.APIKey)
	})

	t.Run("explicit provider keeps openai", func(t *testing.T) {
		dir := isolate(t)
		t.Setenv(EnvEmbeddingProvider, "openai")
		t.Setenv(EnvOpenAIAPIKey, "openai-key")
		t.Setenv(EnvJinaAPIKey, "jina-key")

		ec := load(t, dir).EmbedderConfig()
		assert.Equal(t, embedder.ProviderOpenAI, ec.Provider)
		assert.Equal(t, "openai-key", ec.APIKey)
	})
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "rag.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
top_k: 7
llm:
  model: openai/gpt-4o-mini
embedding:
  provider: local
  dimension: 256
index:
  skip_rosters: true
`), 0o644))
	t.Setenv(EnvTopK, "4")

	cfg, err := Load(Options{ConfigFile: path, EnvFile: filepath.Join(dir, ".env")})
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.TopK, "env wins over file")
	assert.Equal(t, "openai/gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 256, cfg.EmbedderConfig().Dimension)
	assert.Equal(t, llm.DefaultBaseURL, cfg.LLM.BaseURL, "unset file keys keep defaults")

	opts, err := cfg.ChunkerOptions()
	require.NoError(t, err)
	assert.True(t, opts.SkipRosters)

	t.Run("explicit missing file", func(t *testing.T) {
		_, err := Load(Options{ConfigFile: filepath.Join(dir, "nope.yaml"), EnvFile: filepath.Join(dir, ".env")})
		assert.Error(t, err)
	})

	t.Run("default location is optional", func(t *testing.T) {
		_ = load(t, dir)
	})

	t.Run("default location is read", func(t *testing.T) {
		p := filepath.Join(dir, ".config", "projectrag", "config.yaml")
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("llm:\n  model: m/x\n"), 0o644))
		assert.Equal(t, "m/x", load(t, dir).LLM.Model)
	})
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("RAG_TOP_K=6\nRAG_LLM_MODEL=from/dotenv\n"), 0o644))
	// isolate registered a restore for RAG_TOP_K, so unsetting it is safe.
	require.NoError(t, os.Unsetenv(EnvTopK))
	// godotenv never overrides variables that are already set.
	t.Setenv(EnvLLMModel, "from/env")

	cfg := load(t, dir)
	assert.Equal(t, 6, cfg.TopK)
	assert.Equal(t, "from/env", cfg.LLM.Model)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"top k not a number", EnvTopK, "three"},
		{"top k out of range", EnvTopK, "0"},
		{"bad bool", EnvDebug, "maybe"},
		{"bad timeout", EnvLLMTimeout, "soon"},
		{"bad granularity", EnvGranularity, "huge"},
		{"negative resident", EnvMaxResident, "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load(Options{EnvFile: filepath.Join(dir, ".env")})
			assert.Error(t, err)
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.LLM.APIKey = "sk-or-v1-abcdefghijkl"
	cfg.Embedding.APIKey = "short"

	r := cfg.Redacted()
	assert.Equal(t, "sk-o****ijkl", r.LLM.APIKey)
	assert.Equal(t, "****", r.Embedding.APIKey)
	assert.Equal(t, "sk-or-v1-abcdefghijkl", cfg.LLM.APIKey, "original untouched")

	out, err := r.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(out), "top_k: 3")
	assert.NotContains(t, string(out), "abcdefgh")
}
