package types

// SearchResult is one retrieved chunk with its similarity to the query
type SearchResult struct {
	Rank  int     // Position in result set (1-based)
	Score float32 // Cosine similarity, higher is closer
	Chunk Chunk
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.Rank < 1 {
		return ErrInvalidRank
	}
	return sr.Chunk.Validate()
}
