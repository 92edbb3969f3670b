// Package embedder turns chunk text and questions into unit-length vectors.
//
// Three providers are available:
//
//   - openai: any OpenAI-compatible POST /embeddings endpoint (OpenAI,
//     OpenRouter, Ollama's compatibility layer). Base URL and model are
//     configurable.
//   - jina: the Jina AI embeddings API, which speaks the same wire format.
//   - local: an offline feature-hashing embedder used for development and tests.
//
// All vectors are L2-normalized so a dot product equals cosine similarity.
// Embeddings are cached in an LRU keyed by the sha256 of the text, and
// transient HTTP failures are retried with exponential backoff.
//
// An embedder is expensive to construct (a remote model may be queried for its
// dimension) and is meant to be created once per process and shared:
//
//	emb, err := embedder.New(ctx, embedder.Config{Provider: "openai", Model: "text-embedding-3-small"})
//	if errors.Is(err, embedder.ErrEmbeddingUnavailable) {
//	    // fatal for this run
//	}
//	vectors, err := embedder.EmbedTexts(ctx, emb, texts, 0, 0)
package embedder
