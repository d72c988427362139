// Package searcher answers natural-language queries over indexed projects.
//
// The query is embedded with the same provider used for indexing and the
// project's collection returns its nearest chunks:
//
//	s := searcher.NewSearcher(store, emb, logger)
//	hits, err := s.Search(ctx, "api", "where are tokens refreshed", 5)
//	for _, hit := range hits {
//	    fmt.Printf("%s:%d-%d (%.3f)\n", hit.Metadata.SourceFile,
//	        hit.Metadata.StartLine, hit.Metadata.EndLine, hit.Score)
//	}
//
// Hits come back in the order the store ranks them; the searcher does not
// re-rank, filter or de-duplicate. Searching a project that has never been
// indexed returns an empty slice rather than an error.
package searcher
