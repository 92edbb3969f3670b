// Package config assembles runtime settings from defaults, an optional YAML
// file, an optional .env file and the environment, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dshills/projectrag-mcp/internal/chunker"
	"github.com/dshills/projectrag-mcp/internal/embedder"
	"github.com/dshills/projectrag-mcp/internal/index"
	"github.com/dshills/projectrag-mcp/internal/indexer"
	"github.com/dshills/projectrag-mcp/internal/llm"
	"github.com/dshills/projectrag-mcp/internal/searcher"
)

// Environment variables
const (
	EnvEmbeddingProvider = "RAG_EMBEDDING_PROVIDER"
	EnvEmbeddingModel    = "RAG_EMBEDDING_MODEL"
	EnvEmbeddingBaseURL  = "RAG_EMBEDDING_BASE_URL"
	EnvEmbeddingAPIKey   = "RAG_EMBEDDING_API_KEY"
	EnvEmbeddingRate     = "RAG_EMBEDDING_RATE_LIMIT"
	EnvOpenAIAPIKey      = "OPENAI_API_KEY"
	EnvJinaAPIKey        = "JINA_API_KEY"
	EnvLLMModel          = "RAG_LLM_MODEL"
	EnvLLMBaseURL        = "RAG_LLM_BASE_URL"
	EnvLLMAPIKey         = "RAG_LLM_API_KEY"
	EnvOpenRouterAPIKey  = "OPENROUTER_API_KEY"
	EnvLLMTimeout        = "RAG_LLM_TIMEOUT"
	EnvTopK              = "RAG_TOP_K"
	EnvForceRebuild      = "RAG_FORCE_REBUILD"
	EnvDebug             = "RAG_DEBUG"
	EnvIndexDir          = "RAG_INDEX_DIR"
	EnvGranularity       = "RAG_CHUNK_GRANULARITY"
	EnvPromptFile        = "RAG_PROMPT_FILE"
	EnvMaxResident       = "RAG_MAX_RESIDENT_PROJECTS"
	EnvConfigFile        = "RAG_CONFIG"
)

const (
	// DefaultIndexDir is expanded against the home directory.
	DefaultIndexDir = "~/.projectrag/indices"
	DefaultTopK     = searcher.DefaultLimit
)

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"api_key"`
	Dimension   int    `yaml:"dimension"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	CacheSize   int    `yaml:"cache_size"`
	BatchSize   int    `yaml:"batch_size"`
	Concurrency int    `yaml:"concurrency"`

	// RateLimit caps embedding requests per second; 0 is unlimited.
	RateLimit float64 `yaml:"rate_limit"`
}

// LLMConfig configures the chat model.
type LLMConfig struct {
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// IndexConfig configures chunking and index lifetime.
type IndexConfig struct {
	Dir          string `yaml:"dir"`
	Granularity  string `yaml:"granularity"`
	SkipRosters  bool   `yaml:"skip_rosters"`
	ForceRebuild bool   `yaml:"force_rebuild"`
	MaxResident  int    `yaml:"max_resident"`
}

// Config is the root configuration.
type Config struct {
	Embedding  EmbeddingConfig `yaml:"embedding"`
	LLM        LLMConfig       `yaml:"llm"`
	Index      IndexConfig     `yaml:"index"`
	TopK       int             `yaml:"top_k"`
	PromptFile string          `yaml:"prompt_file"`
	Debug      bool            `yaml:"debug"`
}

// Options says where Load looks for files. Empty fields use defaults.
type Options struct {
	// ConfigFile is a YAML file; a missing file is an error only when set
	// explicitly.
	ConfigFile string
	// EnvFile is a dotenv file; missing is never an error.
	EnvFile string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			CacheSize:   embedder.DefaultCacheSize,
			BatchSize:   embedder.DefaultBatchSize,
			Concurrency: embedder.DefaultConcurrency,
		},
		LLM: LLMConfig{
			Model:       llm.DefaultModel,
			BaseURL:     llm.DefaultBaseURL,
			TimeoutSecs: int(llm.DefaultTimeout / time.Second),
		},
		Index: IndexConfig{
			Dir:         DefaultIndexDir,
			Granularity: string(chunker.GranularityStandard),
		},
		TopK: DefaultTopK,
	}
}

// Load builds the effective configuration.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg := Default()

	path, explicit := opts.ConfigFile, opts.ConfigFile != ""
	if !explicit {
		if v := os.Getenv(EnvConfigFile); v != "" {
			path, explicit = v, true
		} else {
			path = defaultConfigPath()
		}
	}
	if path != "" {
		if err := cfg.loadFile(path, explicit); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "projectrag", "config.yaml")
}

func (c *Config) loadFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Embedding.Provider, EnvEmbeddingProvider)
	setString(&c.Embedding.Model, EnvEmbeddingModel)
	setString(&c.Embedding.BaseURL, EnvEmbeddingBaseURL)
	setString(&c.Embedding.APIKey, EnvEmbeddingAPIKey)
	if c.Embedding.APIKey == "" {
		// A lone JINA_API_KEY selects jina ahead of OPENAI_API_KEY.
		if c.Embedding.Provider == "" && c.Embedding.BaseURL == "" {
			if _, ok := lookup(EnvJinaAPIKey); ok {
				c.Embedding.Provider = embedder.ProviderJina
			}
		}
		key := EnvOpenAIAPIKey
		if strings.EqualFold(c.Embedding.Provider, embedder.ProviderJina) {
			key = EnvJinaAPIKey
		}
		setString(&c.Embedding.APIKey, key)
	}

	setString(&c.LLM.Model, EnvLLMModel)
	setString(&c.LLM.BaseURL, EnvLLMBaseURL)
	setString(&c.LLM.APIKey, EnvOpenRouterAPIKey)
	setString(&c.LLM.APIKey, EnvLLMAPIKey)

	setString(&c.Index.Dir, EnvIndexDir)
	setString(&c.Index.Granularity, EnvGranularity)
	setString(&c.PromptFile, EnvPromptFile)

	if v, ok := lookup(EnvEmbeddingRate); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvEmbeddingRate, err)
		}
		c.Embedding.RateLimit = f
	}

	if v, ok := lookup(EnvLLMTimeout); ok {
		d, err := parseTimeout(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLLMTimeout, err)
		}
		c.LLM.TimeoutSecs = int(d / time.Second)
	}

	for _, f := range []struct {
		env string
		dst *int
	}{
		{EnvTopK, &c.TopK},
		{EnvMaxResident, &c.Index.MaxResident},
	} {
		if v, ok := lookup(f.env); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", f.env, err)
			}
			*f.dst = n
		}
	}

	for _, f := range []struct {
		env string
		dst *bool
	}{
		{EnvForceRebuild, &c.Index.ForceRebuild},
		{EnvDebug, &c.Debug},
	} {
		if v, ok := lookup(f.env); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", f.env, err)
			}
			*f.dst = b
		}
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

// parseTimeout accepts a Go duration ("90s") or a number of seconds.
func parseTimeout(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.TopK < 1 || c.TopK > searcher.MaxLimit {
		return fmt.Errorf("top_k must be between 1 and %d, got %d", searcher.MaxLimit, c.TopK)
	}
	if c.Index.MaxResident < 0 {
		return fmt.Errorf("max_resident cannot be negative")
	}
	if c.Embedding.RateLimit < 0 {
		return fmt.Errorf("rate_limit cannot be negative")
	}
	if c.LLM.TimeoutSecs < 0 || c.Embedding.TimeoutSecs < 0 {
		return fmt.Errorf("timeouts cannot be negative")
	}
	if _, err := chunker.ParseGranularity(c.Index.Granularity); err != nil {
		return err
	}
	return nil
}

// IndexDir returns Index.Dir with a leading ~ expanded.
func (c *Config) IndexDir() (string, error) {
	dir := c.Index.Dir
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
	}
	return dir, nil
}

// EmbedderConfig maps settings to the embedder factory.
func (c *Config) EmbedderConfig() embedder.Config {
	return embedder.Config{
		Provider:  strings.ToLower(c.Embedding.Provider),
		Model:     c.Embedding.Model,
		BaseURL:   c.Embedding.BaseURL,
		APIKey:    c.Embedding.APIKey,
		Dimension: c.Embedding.Dimension,
		CacheSize: c.Embedding.CacheSize,
		Timeout:   time.Duration(c.Embedding.TimeoutSecs) * time.Second,
		RateLimit: c.Embedding.RateLimit,
	}
}

// LLMClientConfig maps settings to the chat client.
func (c *Config) LLMClientConfig() llm.Config {
	return llm.Config{
		APIKey:  c.LLM.APIKey,
		BaseURL: c.LLM.BaseURL,
		Model:   c.LLM.Model,
		Timeout: time.Duration(c.LLM.TimeoutSecs) * time.Second,
	}
}

// ChunkerOptions maps settings to the chunker.
func (c *Config) ChunkerOptions() (chunker.Options, error) {
	g, err := chunker.ParseGranularity(c.Index.Granularity)
	if err != nil {
		return chunker.Options{}, err
	}
	return chunker.Options{Granularity: g, SkipRosters: c.Index.SkipRosters}, nil
}

// IndexerConfig maps settings to the project index cache. persist=false
// keeps indexes in memory only.
func (c *Config) IndexerConfig(persist bool) (indexer.Config, error) {
	opts, err := c.ChunkerOptions()
	if err != nil {
		return indexer.Config{}, err
	}
	cfg := indexer.Config{
		Chunker: opts,
		Build: index.BuildOptions{
			BatchSize:   c.Embedding.BatchSize,
			Concurrency: c.Embedding.Concurrency,
		},
		MaxResident: c.Index.MaxResident,
	}
	if persist {
		dir, err := c.IndexDir()
		if err != nil {
			return indexer.Config{}, err
		}
		cfg.Root = dir
	}
	return cfg, nil
}

// Redacted returns a copy of c with API keys masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.Embedding.APIKey = mask(c.Embedding.APIKey)
	out.LLM.APIKey = mask(c.LLM.APIKey)
	return &out
}

// YAML renders c in config file form.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

func mask(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
