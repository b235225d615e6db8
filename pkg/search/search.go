// Package search implements exact nearest-neighbor retrieval over an
// embedding store. Every query is a full linear scan: O(N*D) time and
// O(N) space per query, which is the right trade for a corpus of
// thousands to low tens of thousands of vectors. Swapping in an index
// structure is the first change to make if the corpus outgrows that.
package search

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/visto-dev/visto/pkg/observability"
	"github.com/visto-dev/visto/pkg/storage"
	"github.com/visto-dev/visto/pkg/vector"
)

// DefaultTopK is the result count used when the caller passes topK <= 0.
const DefaultTopK = 10

// Result pairs a stored record with its similarity to the query.
type Result struct {
	Record     storage.EmbeddingRecord
	Similarity float64
}

// Engine ranks stored embeddings against a query vector.
type Engine struct {
	store storage.EmbeddingStore
}

// New creates a search engine over the given store.
func New(store storage.EmbeddingStore) *Engine {
	return &Engine{store: store}
}

// Search returns the topK stored records most similar to query, ordered by
// descending cosine similarity. Ties keep insertion order (stable sort), so
// output is deterministic. An empty store yields an empty slice, and topK
// larger than the corpus yields the whole corpus; neither is an error.
//
// A zero-norm query or stored vector fails loudly rather than ranking on
// NaN, and a stored embedding whose length differs from the query is
// treated as corruption and aborts the search.
func (e *Engine) Search(ctx context.Context, query []float32, topK int) ([]Result, error) {
	start := time.Now()

	results, err := e.search(ctx, query, topK)

	status := "success"
	if err != nil {
		status = "error"
	}
	observability.SearchesTotal.WithLabelValues(status).Inc()
	observability.SearchDuration.Observe(time.Since(start).Seconds())

	return results, err
}

func (e *Engine) search(ctx context.Context, query []float32, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	if vector.Norm(query) == 0 {
		return nil, fmt.Errorf("search: query vector has zero magnitude")
	}

	records, err := e.store.AllRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading corpus: %w", err)
	}

	results := make([]Result, 0, len(records))
	for _, r := range records {
		if len(r.Embedding) != len(query) {
			// A stored record with the wrong dimensionality means the
			// corpus and encoder disagree. Surface it immediately instead
			// of producing silently wrong scores.
			return nil, fmt.Errorf("record %d (%s): stored dimension %d, query dimension %d: %w",
				r.ID, r.FileName, len(r.Embedding), len(query), storage.ErrDimensionMismatch)
		}

		sim, err := vector.CosineSimilarity(query, r.Embedding)
		if err != nil {
			return nil, fmt.Errorf("scoring record %d (%s): %w", r.ID, r.FileName, err)
		}

		results = append(results, Result{Record: r, Similarity: sim})
	}

	// Stable: equal scores stay in insertion order.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if len(results) > topK {
		results = results[:topK]
	}

	return results, nil
}
