// Package searcher retrieves the chunks of a project index closest to a
// natural-language question.
//
// The question is embedded with the process-wide embedder and scored against
// every entry of the index. Results come back best first, ranked from 1.
//
//	s := searcher.NewSearcher(emb)
//	resp, err := s.Search(ctx, ix, searcher.SearchRequest{
//	    Query: "list all modules",
//	    Limit: 3,
//	})
//
// Responses can be cached per index generation: set UseCache and a CacheKey
// that changes whenever the index is rebuilt (the data fingerprint works).
package searcher
