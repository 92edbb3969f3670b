// Package answerer answers questions about a project by retrieving the most
// relevant chunks and asking a chat model with them as context.
package answerer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dshills/projectrag-mcp/internal/indexer"
	"github.com/dshills/projectrag-mcp/internal/llm"
	"github.com/dshills/projectrag-mcp/internal/logger"
	"github.com/dshills/projectrag-mcp/internal/searcher"
	"github.com/dshills/projectrag-mcp/pkg/types"
)

// DefaultTemperature is the sampling temperature for answers.
const DefaultTemperature = 0.7

// ContextSeparator joins retrieved chunk texts inside the prompt.
const ContextSeparator = "\n\n---\n\n"

// DefaultPreamble instructs the model how to use roster and detail chunks.
const DefaultPreamble = `You are an expert project assistant for a software development team.
Answer the user's question based on the following project context.

IMPORTANT INSTRUCTIONS:
- If asked to list ALL modules or module names, look for the "MODULE LIST OVERVIEW" or "ALL MODULES IN THIS PROJECT" section
- When you see "Total Modules: X", ensure your answer includes exactly X modules
- For listing questions, use the dedicated list chunks that contain complete lists
- If asked for details about a specific module, use the individual module chunks
- Always provide the COMPLETE list when asked for "all" items
- If the context contains a "Quick List of Module Names" section, use it for module name questions
- Distinguish between "Global Business Rules" (project-level) and feature-specific business rules
- When discussing business rules, mention which modules they apply to if specified`

var (
	// ErrModelUnavailable is returned when the chat model fails. No fallback
	// answer is produced.
	ErrModelUnavailable = errors.New("language model unavailable")
	ErrRetrievalFailed  = errors.New("retrieval failed")
	ErrNoEntry          = errors.New("no project index")
)

// Answer is a model reply with the chunks it was given.
type Answer struct {
	Text    string
	Sources []types.SearchResult
	Prompt  string
}

// Query selects the context AskWith retrieves. Zero MinScore and empty
// Types disable those filters.
type Query struct {
	Question string
	K        int
	MinScore float32
	Types    []types.ChunkType
}

// Option configures an Answerer
type Option func(*Answerer)

// WithPreamble replaces the instruction text placed before the context.
func WithPreamble(p string) Option {
	return func(a *Answerer) {
		if strings.TrimSpace(p) != "" {
			a.preamble = strings.TrimRight(p, "\n")
		}
	}
}

// WithTemperature overrides DefaultTemperature.
func WithTemperature(t float64) Option {
	return func(a *Answerer) { a.temperature = t }
}

// Answerer combines retrieval and generation.
type Answerer struct {
	searcher    *searcher.Searcher
	model       llm.Generator
	preamble    string
	temperature float64
}

// New creates an Answerer
func New(s *searcher.Searcher, model llm.Generator, opts ...Option) *Answerer {
	a := &Answerer{
		searcher:    s,
		model:       model,
		preamble:    DefaultPreamble,
		temperature: DefaultTemperature,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// LoadPreamble reads a preamble override from path.
func LoadPreamble(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt file: %w", err)
	}
	p := strings.TrimSpace(string(b))
	if p == "" {
		return "", fmt.Errorf("prompt file %s is empty", path)
	}
	return p, nil
}

// BuildPrompt renders the full model input.
func BuildPrompt(preamble string, contexts []string, question string) string {
	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString("\n\n<context>\n")
	b.WriteString(strings.Join(contexts, ContextSeparator))
	b.WriteString("\n</context>\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")
	return b.String()
}

// Ask answers question from the top-k chunks of entry.
func (a *Answerer) Ask(ctx context.Context, entry *indexer.Entry, question string, k int) (string, error) {
	ans, err := a.AskDetailed(ctx, entry, question, k)
	if err != nil {
		return "", err
	}
	return ans.Text, nil
}

// AskDetailed is Ask that also returns the retrieved sources and the prompt.
func (a *Answerer) AskDetailed(ctx context.Context, entry *indexer.Entry, question string, k int) (*Answer, error) {
	return a.AskWith(ctx, entry, Query{Question: question, K: k})
}

// AskWith answers q.Question from the chunks of entry that pass q's filters.
func (a *Answerer) AskWith(ctx context.Context, entry *indexer.Entry, q Query) (*Answer, error) {
	if entry == nil || entry.Index == nil {
		return nil, ErrNoEntry
	}
	question := q.Question

	resp, err := a.searcher.Search(ctx, entry.Index, searcher.SearchRequest{
		Query:    question,
		Limit:    q.K,
		MinScore: q.MinScore,
		Types:    q.Types,
		UseCache: true,
		CacheKey: entry.Fingerprint,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrievalFailed, err)
	}

	traceRetrieval(question, resp.Results)

	contexts := make([]string, len(resp.Results))
	for i, r := range resp.Results {
		contexts[i] = r.Chunk.Text
	}
	prompt := BuildPrompt(a.preamble, contexts, strings.TrimSpace(question))

	if a.model == nil {
		return nil, fmt.Errorf("%w: no model configured", ErrModelUnavailable)
	}
	if logger.IsVerbose() {
		logger.Section("MODEL INPUT")
		logger.Debug("model %s, temperature %.1f, %d characters (~%d tokens)",
			a.model.ModelName(), a.temperature, len(prompt), len(prompt)/4)
		logger.Debug("%s", prompt)
	}

	out, err := a.model.Generate(ctx, prompt, llm.GenerateOptions{Temperature: a.temperature})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	text := strings.TrimSpace(out)

	if logger.IsVerbose() {
		logger.Section("ANSWER")
		logger.Debug("%s", text)
	}

	return &Answer{Text: text, Sources: resp.Results, Prompt: prompt}, nil
}

// ClearCache drops cached retrievals for every project.
func (a *Answerer) ClearCache() {
	a.searcher.ClearCache()
}

func traceRetrieval(question string, results []types.SearchResult) {
	if !logger.IsVerbose() {
		return
	}
	logger.Section("QUERY: " + question)
	logger.Debug("retrieved %d chunks", len(results))
	total := 0
	for _, r := range results {
		md := r.Chunk.Metadata
		logger.Debug("chunk %d: source=%q type=%s module=%q score=%.4f length=%d",
			r.Rank, md.Source, md.Type, md.ModuleName, r.Score, len(r.Chunk.Text))
		logger.Debug("%s", r.Chunk.Text)
		total += len(r.Chunk.Text)
	}
	logger.Debug("total characters %d (~%d tokens)", total, total/4)
}
