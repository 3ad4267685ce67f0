// Package searcher implements the document index: a per-paragraph match test
// over a document's embeddings.
//
// A paragraph matches a query when the cosine similarity between its
// embedding and the query embedding reaches the index threshold
// (DefaultThreshold unless configured).
//
// # Basic Usage
//
//	ix, err := searcher.Build(vectors, searcher.Options{
//	    QueryEmbedder: emb,
//	})
//
//	for ordinal, vector := range ix.Embeddings() {
//	    ok, err := ix.Search(ctx, vector, "quarterly revenue")
//	    if err != nil {
//	        return err
//	    }
//	    if ok {
//	        matches = append(matches, ordinal)
//	    }
//	}
//
// The query is embedded once; later calls with the same query and model are
// served from an LRU cache.
//
// # Persistence
//
// Spec returns the storage.IndexSpec saved next to the vectors. FromSpec
// rebuilds an equivalent index from a cache entry.
package searcher
