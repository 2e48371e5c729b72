package retrieval

import (
	"context"
	"errors"
	"sort"

	"github.com/esilv-labs/assistant-go/internal/assistant/interfaces"
	"github.com/esilv-labs/assistant-go/internal/assistant/models"
	"github.com/esilv-labs/assistant-go/pkg/util"

	"github.com/rs/zerolog"
)

var ErrNoStores = errors.New("retriever needs at least one store")

// ConfidenceThreshold is the minimum similarity score a chunk must reach for
// the indexed corpus to be considered relevant to a question.
const ConfidenceThreshold = 0.3

// DefaultK is the number of chunks retrieved when the caller does not ask
// for a specific count.
const DefaultK = 5

// Searcher is the store-side contract: given a query embedding, return the
// best chunks tagged with their store of origin.
type Searcher interface {
	Name() string
	Exists() bool
	Search(query []float32, k int) ([]models.RetrievalResult, error)
}

// Retriever answers similarity queries over a set of named stores. The query
// is embedded once and fanned out; per-store results are merged into a
// single ranking.
type Retriever struct {
	embedder interfaces.Embedder
	stores   []Searcher
	logger   zerolog.Logger
}

// New creates a retriever over the given stores.
func New(embedder interfaces.Embedder, stores ...Searcher) (*Retriever, error) {
	if len(stores) == 0 {
		return nil, ErrNoStores
	}
	return &Retriever{
		embedder: embedder,
		stores:   stores,
		logger:   util.NewLogger(util.LevelFromEnv("RETRIEVAL_LOG_LEVEL")),
	}, nil
}

// Retrieve returns the k most similar chunks across all stores, best first.
// A store with no built index contributes nothing; it is not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]models.RetrievalResult, error) {
	if k <= 0 {
		k = DefaultK
	}

	vectors, err := r.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	queryVec := vectors[0]

	var merged []models.RetrievalResult
	for _, store := range r.stores {
		results, err := store.Search(queryVec, k)
		if err != nil {
			return nil, err
		}
		merged = append(merged, results...)
	}

	// Stable sort keeps the store registration order among equal scores.
	sort.SliceStable(merged, func(a, b int) bool {
		return merged[a].Score > merged[b].Score
	})
	if len(merged) > k {
		merged = merged[:k]
	}

	r.logger.Debug().Str("query", query).Int("results", len(merged)).Msg("retrieved chunks")
	return merged, nil
}

// HasRelevantDocs reports whether any retrieved chunk clears the confidence
// threshold; below it, callers should prefer a live-page fallback.
func (r *Retriever) HasRelevantDocs(results []models.RetrievalResult) bool {
	for _, result := range results {
		if result.Score > ConfidenceThreshold {
			return true
		}
	}
	return false
}

// Ready reports whether at least one store has a built index to serve from.
func (r *Retriever) Ready() bool {
	for _, store := range r.stores {
		if store.Exists() {
			return true
		}
	}
	return false
}
