package embedder

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHash(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"empty string", "", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"simple text", "hello world", "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeHash(tt.text))
		})
	}
}

func TestCache(t *testing.T) {
	t.Run("get returns a copy", func(t *testing.T) {
		c := NewCache(10)
		c.Set("h", &Embedding{Vector: []float32{1, 0}, Hash: "h"})

		got, ok := c.Get("h")
		require.True(t, ok)
		got.Vector[0] = 42

		again, ok := c.Get("h")
		require.True(t, ok)
		assert.Equal(t, float32(1), again.Vector[0])
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		c := NewCache(2)
		c.Set("a", &Embedding{Vector: []float32{1}})
		c.Set("b", &Embedding{Vector: []float32{1}})
		c.Set("c", &Embedding{Vector: []float32{1}})

		assert.Equal(t, 2, c.Size())
		_, ok := c.Get("a")
		assert.False(t, ok)

		c.Clear()
		assert.Equal(t, 0, c.Size())
	})
}

func TestValidateBatchRequest(t *testing.T) {
	assert.ErrorIs(t, ValidateBatchRequest(BatchEmbeddingRequest{}), ErrInvalidInput)
	assert.ErrorIs(t, ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"a", ""}}), ErrInvalidInput)
	assert.ErrorIs(t, ValidateBatchRequest(BatchEmbeddingRequest{Texts: make([]string, MaxBatchSize+1)}), ErrBatchTooLarge)
	assert.NoError(t, ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"a"}}))
}

func TestLocalProvider(t *testing.T) {
	ctx := context.Background()
	p := NewLocalProvider(0, NewCache(10))

	t.Run("vectors are unit length", func(t *testing.T) {
		emb, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "Module: Billing\nDescription: invoices"})
		require.NoError(t, err)
		assert.Len(t, emb.Vector, LocalDimension)
		assert.InDelta(t, 1.0, norm(emb.Vector), 1e-5)
	})

	t.Run("deterministic", func(t *testing.T) {
		a, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "same text"})
		require.NoError(t, err)
		b, err := NewLocalProvider(0, nil).GenerateEmbedding(ctx, EmbeddingRequest{Text: "same text"})
		require.NoError(t, err)
		assert.Equal(t, a.Vector, b.Vector)
	})

	t.Run("shared vocabulary scores higher", func(t *testing.T) {
		q, _ := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "billing invoices payments"})
		near, _ := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "the billing module handles invoices"})
		far, _ := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "user login with password reset"})
		assert.Greater(t, dot(q.Vector, near.Vector), dot(q.Vector, far.Vector))
	})

	t.Run("punctuation only text is non-zero", func(t *testing.T) {
		emb, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "---"})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, norm(emb.Vector), 1e-5)
	})

	t.Run("empty text rejected", func(t *testing.T) {
		_, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: ""})
		assert.ErrorIs(t, err, ErrEmptyText)
	})
}

func TestEmbedTexts(t *testing.T) {
	ctx := context.Background()
	p := NewLocalProvider(16, nil)

	texts := make([]string, 250)
	for i := range texts {
		texts[i] = strings.Repeat("word ", i%7+1) + string(rune('a'+i%26))
	}

	vectors, err := EmbedTexts(ctx, p, texts, 40, 3)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))

	for i, text := range texts {
		emb, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: text})
		require.NoError(t, err)
		assert.Equal(t, emb.Vector, vectors[i], "order must follow input at %d", i)
	}

	t.Run("empty input", func(t *testing.T) {
		vectors, err := EmbedTexts(ctx, p, nil, 0, 0)
		assert.NoError(t, err)
		assert.Nil(t, vectors)
	})

	t.Run("propagates provider error", func(t *testing.T) {
		_, err := EmbedTexts(ctx, failingEmbedder{}, []string{"a", "b"}, 1, 2)
		assert.ErrorIs(t, err, ErrProviderFailed)
	})
}

func TestNormalizeVector(t *testing.T) {
	assert.Equal(t, []float32{0, 0}, NormalizeVector([]float32{0, 0}))

	v := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)
}

type failingEmbedder struct{}

func (failingEmbedder) GenerateEmbedding(context.Context, EmbeddingRequest) (*Embedding, error) {
	return nil, errors.New("boom")
}

func (failingEmbedder) GenerateBatch(context.Context, BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	return nil, ErrProviderFailed
}

func (failingEmbedder) Dimension() int   { return 4 }
func (failingEmbedder) Provider() string { return "failing" }
func (failingEmbedder) Model() string    { return "failing" }
func (failingEmbedder) Close() error     { return nil }

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
