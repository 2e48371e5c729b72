package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/esilv-labs/assistant-go/internal/assistant/models"
)

type stubEmbedder struct {
	vector []float32
	err    error
}

func (s stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = s.vector
	}
	return vectors, nil
}

func (s stubEmbedder) GetModelName() string { return "stub" }
func (s stubEmbedder) GetDimension() int    { return len(s.vector) }

type stubStore struct {
	name    string
	exists  bool
	results []models.RetrievalResult
	err     error
}

func (s stubStore) Name() string { return s.name }
func (s stubStore) Exists() bool { return s.exists }

func (s stubStore) Search(query []float32, k int) ([]models.RetrievalResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.results) > k {
		return s.results[:k], nil
	}
	return s.results, nil
}

func TestNew_RequiresStores(t *testing.T) {
	if _, err := New(stubEmbedder{vector: []float32{1}}); !errors.Is(err, ErrNoStores) {
		t.Errorf("expected ErrNoStores, got %v", err)
	}
}

func TestRetriever_MergesAndRanksAcrossStores(t *testing.T) {
	scraped := stubStore{
		name:   "scraped",
		exists: true,
		results: []models.RetrievalResult{
			{Text: "admission dossier", SourceID: "a", Score: 0.9, Store: "scraped"},
			{Text: "vie associative", SourceID: "b", Score: 0.2, Store: "scraped"},
		},
	}
	uploads := stubStore{
		name:   "uploads",
		exists: true,
		results: []models.RetrievalResult{
			{Text: "brochure admissions", SourceID: "c", Score: 0.7, Store: "uploads"},
		},
	}

	retriever, err := New(stubEmbedder{vector: []float32{1, 0}}, scraped, uploads)
	if err != nil {
		t.Fatalf("failed to create retriever: %v", err)
	}

	results, err := retriever.Retrieve(context.Background(), "comment candidater", 2)
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].SourceID != "a" || results[1].SourceID != "c" {
		t.Errorf("wrong ranking: got %q then %q", results[0].SourceID, results[1].SourceID)
	}
	if results[0].Store != "scraped" || results[1].Store != "uploads" {
		t.Errorf("store tags lost in merge: %+v", results)
	}
}

func TestRetriever_EmptyStoreContributesNothing(t *testing.T) {
	populated := stubStore{
		name:    "scraped",
		exists:  true,
		results: []models.RetrievalResult{{Text: "x", Score: 0.5, Store: "scraped"}},
	}
	empty := stubStore{name: "uploads"}

	retriever, err := New(stubEmbedder{vector: []float32{1}}, populated, empty)
	if err != nil {
		t.Fatalf("failed to create retriever: %v", err)
	}

	results, err := retriever.Retrieve(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result, got %d", len(results))
	}
}

func TestRetriever_DefaultK(t *testing.T) {
	many := make([]models.RetrievalResult, 10)
	for i := range many {
		many[i] = models.RetrievalResult{Text: "t", Score: float32(10 - i), Store: "scraped"}
	}
	store := stubStore{name: "scraped", exists: true, results: many}

	retriever, err := New(stubEmbedder{vector: []float32{1}}, store)
	if err != nil {
		t.Fatalf("failed to create retriever: %v", err)
	}

	results, err := retriever.Retrieve(context.Background(), "q", 0)
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if len(results) != DefaultK {
		t.Errorf("expected %d results for k=0, got %d", DefaultK, len(results))
	}
}

func TestRetriever_EmbedderErrorPropagates(t *testing.T) {
	wantErr := errors.New("quota exceeded")
	retriever, err := New(stubEmbedder{err: wantErr}, stubStore{name: "scraped"})
	if err != nil {
		t.Fatalf("failed to create retriever: %v", err)
	}

	if _, err := retriever.Retrieve(context.Background(), "q", 3); !errors.Is(err, wantErr) {
		t.Errorf("expected embedder error, got %v", err)
	}
}

func TestRetriever_HasRelevantDocs(t *testing.T) {
	retriever, err := New(stubEmbedder{vector: []float32{1}}, stubStore{name: "scraped"})
	if err != nil {
		t.Fatalf("failed to create retriever: %v", err)
	}

	tests := []struct {
		name    string
		results []models.RetrievalResult
		want    bool
	}{
		{"no results", nil, false},
		{"all below threshold", []models.RetrievalResult{{Score: 0.1}, {Score: 0.3}}, false},
		{"one above threshold", []models.RetrievalResult{{Score: 0.1}, {Score: 0.31}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retriever.HasRelevantDocs(tt.results); got != tt.want {
				t.Errorf("HasRelevantDocs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetriever_Ready(t *testing.T) {
	embedder := stubEmbedder{vector: []float32{1}}

	notReady, err := New(embedder, stubStore{name: "scraped"}, stubStore{name: "uploads"})
	if err != nil {
		t.Fatalf("failed to create retriever: %v", err)
	}
	if notReady.Ready() {
		t.Error("expected retriever without built stores to be not ready")
	}

	ready, err := New(embedder, stubStore{name: "scraped", exists: true})
	if err != nil {
		t.Fatalf("failed to create retriever: %v", err)
	}
	if !ready.Ready() {
		t.Error("expected retriever with a built store to be ready")
	}
}
