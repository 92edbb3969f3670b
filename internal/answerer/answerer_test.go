package answerer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/projectrag-mcp/internal/embedder"
	"github.com/dshills/projectrag-mcp/internal/indexer"
	"github.com/dshills/projectrag-mcp/internal/llm"
	"github.com/dshills/projectrag-mcp/internal/searcher"
	"github.com/dshills/projectrag-mcp/pkg/types"
)

type fakeModel struct {
	reply   string
	err     error
	prompts []string
	opts    []llm.GenerateOptions
}

func (f *fakeModel) Generate(_ context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.opts = append(f.opts, opts)
	return f.reply, f.err
}

func (f *fakeModel) ModelName() string { return "fake/model" }

const projectJSON = `{
	"modules": [
		{"id": 1, "module_name": "Auth", "description": "Sign in and sessions"},
		{"id": 2, "module_name": "Billing", "description": "Invoices and refunds"}
	],
	"business_rules": {"categories": [{"name": "Audit", "description": "Log every change"}]}
}`

func setup(t *testing.T) (*searcher.Searcher, *indexer.Entry) {
	t.Helper()
	emb := embedder.NewLocalProvider(128, nil)
	cache, err := indexer.New(emb, indexer.Config{})
	require.NoError(t, err)

	data, err := types.DecodeProjectData([]byte(projectJSON))
	require.NoError(t, err)
	entry, _, err := cache.GetOrBuild(context.Background(), "p1", data, indexer.BuildOptions{})
	require.NoError(t, err)

	return searcher.NewSearcher(emb), entry
}

func TestBuildPrompt(t *testing.T) {
	got := BuildPrompt("Be helpful.", []string{"chunk one", "chunk two"}, "What?")
	want := "Be helpful.\n\n<context>\nchunk one\n\n---\n\nchunk two\n</context>\n\nQuestion: What?\n\nAnswer:"
	assert.Equal(t, want, got)
}

func TestAsk(t *testing.T) {
	ctx := context.Background()
	s, entry := setup(t)
	model := &fakeModel{reply: "  There are 2 modules: Auth and Billing.\n\n"}
	a := New(s, model)

	ans, err := a.AskDetailed(ctx, entry, "  How many modules are there?  ", 10)
	require.NoError(t, err)

	assert.Equal(t, "There are 2 modules: Auth and Billing.", ans.Text)
	require.Len(t, model.prompts, 1)
	assert.InDelta(t, DefaultTemperature, model.opts[0].Temperature, 1e-9)

	// k above the index size hands the model every chunk.
	require.Len(t, ans.Sources, entry.Index.Len())
	texts := make([]string, len(ans.Sources))
	for i, src := range ans.Sources {
		texts[i] = src.Chunk.Text
	}
	assert.Equal(t, BuildPrompt(DefaultPreamble, texts, "How many modules are there?"), model.prompts[0])
	assert.Equal(t, ans.Prompt, model.prompts[0])
	assert.True(t, strings.HasPrefix(model.prompts[0], "You are an expert project assistant"))

	t.Run("top k", func(t *testing.T) {
		text, err := a.Ask(ctx, entry, "billing refunds", 1)
		require.NoError(t, err)
		assert.NotEmpty(t, text)
		last := model.prompts[len(model.prompts)-1]
		assert.NotContains(t, last, ContextSeparator)
	})
}

func TestAskWith_Filters(t *testing.T) {
	ctx := context.Background()
	s, entry := setup(t)
	model := &fakeModel{reply: "ok"}
	a := New(s, model)

	t.Run("chunk types", func(t *testing.T) {
		ans, err := a.AskWith(ctx, entry, Query{
			Question: "what rules apply?",
			K:        10,
			Types:    []types.ChunkType{types.ChunkGlobalRules},
		})
		require.NoError(t, err)
		require.Len(t, ans.Sources, 1)
		assert.Equal(t, types.ChunkGlobalRules, ans.Sources[0].Chunk.Metadata.Type)
		assert.Contains(t, ans.Prompt, "Audit")
	})

	t.Run("min score above every hit", func(t *testing.T) {
		ans, err := a.AskWith(ctx, entry, Query{Question: "modules?", K: 10, MinScore: 1.5})
		require.NoError(t, err)
		assert.Empty(t, ans.Sources)
		assert.NotContains(t, ans.Prompt, "Billing")
	})

	t.Run("unfiltered after clearing", func(t *testing.T) {
		a.ClearCache()
		ans, err := a.AskWith(ctx, entry, Query{Question: "modules?", K: 10})
		require.NoError(t, err)
		assert.Len(t, ans.Sources, entry.Index.Len())
	})
}

func TestAsk_Failures(t *testing.T) {
	ctx := context.Background()
	s, entry := setup(t)

	t.Run("model error", func(t *testing.T) {
		_, err := New(s, &fakeModel{err: errors.New("503 from upstream")}).Ask(ctx, entry, "modules?", 3)
		assert.ErrorIs(t, err, ErrModelUnavailable)
		assert.ErrorContains(t, err, "503 from upstream")
	})

	t.Run("no model", func(t *testing.T) {
		_, err := New(s, nil).Ask(ctx, entry, "modules?", 3)
		assert.ErrorIs(t, err, ErrModelUnavailable)
	})

	t.Run("empty question", func(t *testing.T) {
		model := &fakeModel{reply: "x"}
		_, err := New(s, model).Ask(ctx, entry, "   ", 3)
		assert.ErrorIs(t, err, ErrRetrievalFailed)
		assert.ErrorIs(t, err, searcher.ErrEmptyQuery)
		assert.Empty(t, model.prompts)
	})

	t.Run("no entry", func(t *testing.T) {
		_, err := New(s, &fakeModel{}).Ask(ctx, nil, "modules?", 3)
		assert.ErrorIs(t, err, ErrNoEntry)
	})
}

func TestPreambleOverride(t *testing.T) {
	ctx := context.Background()
	s, entry := setup(t)

	path := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("Answer in one word.\n"), 0o644))
	p, err := LoadPreamble(path)
	require.NoError(t, err)

	model := &fakeModel{reply: "Two"}
	_, err = New(s, model, WithPreamble(p), WithTemperature(0.2)).Ask(ctx, entry, "modules?", 2)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(model.prompts[0], "Answer in one word.\n\n<context>\n"))
	assert.InDelta(t, 0.2, model.opts[0].Temperature, 1e-9)

	t.Run("missing or empty file", func(t *testing.T) {
		_, err := LoadPreamble(filepath.Join(t.TempDir(), "nope.txt"))
		assert.Error(t, err)

		empty := filepath.Join(t.TempDir(), "empty.txt")
		require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o644))
		_, err = LoadPreamble(empty)
		assert.Error(t, err)
	})
}
