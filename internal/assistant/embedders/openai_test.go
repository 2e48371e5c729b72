package embedders

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func TestNewOpenAIEmbedder(t *testing.T) {
	originalAPIKey := os.Getenv("OPENAI_API_KEY")
	defer os.Setenv("OPENAI_API_KEY", originalAPIKey)

	tests := []struct {
		name        string
		model       string
		apiKey      string
		expectError bool
		expectedDim int
		description string
	}{
		{
			name:        "valid text-embedding-3-small",
			model:       "text-embedding-3-small",
			apiKey:      "test-api-key",
			expectedDim: 1536,
			description: "should create embedder for text-embedding-3-small",
		},
		{
			name:        "valid text-embedding-3-large",
			model:       "text-embedding-3-large",
			apiKey:      "test-api-key",
			expectedDim: 3072,
			description: "should create embedder for text-embedding-3-large",
		},
		{
			name:        "unsupported model",
			model:       "unsupported-model",
			apiKey:      "test-api-key",
			expectError: true,
			description: "should return error for unsupported model",
		},
		{
			name:        "missing api key",
			model:       "text-embedding-3-small",
			apiKey:      "",
			expectError: true,
			description: "should return error when API key is missing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("OPENAI_API_KEY", tt.apiKey)

			embedder, err := NewOpenAIEmbedder(tt.model)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none for test: %s", tt.description)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error for test %s: %v", tt.description, err)
				return
			}

			if embedder.GetModelName() != tt.model {
				t.Errorf("Expected model %s, got %s", tt.model, embedder.GetModelName())
			}
			if embedder.GetDimension() != tt.expectedDim {
				t.Errorf("Expected dimension %d, got %d", tt.expectedDim, embedder.GetDimension())
			}
		})
	}
}

func TestOpenAIEmbedder_EmbedBatch(t *testing.T) {
	originalAPIKey := os.Getenv("OPENAI_API_KEY")
	defer os.Setenv("OPENAI_API_KEY", originalAPIKey)
	os.Setenv("OPENAI_API_KEY", "test-api-key")

	// Fake API that returns a fixed-dimension non-normalized vector per input,
	// intentionally out of order to exercise index-based reordering.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req OpenAIEmbeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var resp OpenAIEmbeddingResponse
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
				Object    string    `json:"object"`
			}{
				Embedding: []float32{float32(i + 1), 1, 0},
				Index:     i,
				Object:    "embedding",
			})
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("failed to encode response: %v", err)
		}
	}))
	defer server.Close()

	embedder, err := NewOpenAIEmbedderWithClient("text-embedding-3-small", server.Client(), server.URL)
	if err != nil {
		t.Fatalf("Failed to create embedder: %v", err)
	}

	texts := []string{"premier texte", "deuxieme texte", "troisieme texte"}
	vectors, err := embedder.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}

	if len(vectors) != len(texts) {
		t.Fatalf("Expected %d vectors, got %d", len(texts), len(vectors))
	}

	for i, v := range vectors {
		var norm float64
		for _, x := range v {
			norm += float64(x) * float64(x)
		}
		if math.Abs(norm-1.0) > 1e-5 {
			t.Errorf("vector %d is not unit-norm: %v", i, norm)
		}
	}

	// The fake returned data in reverse; the first component grows with the
	// input index, so reordering restores ascending order.
	for i := 0; i < len(vectors)-1; i++ {
		if vectors[i][0] >= vectors[i+1][0] {
			t.Errorf("vectors not reordered by index at %d: %v >= %v", i, vectors[i][0], vectors[i+1][0])
		}
	}
}

func TestOpenAIEmbedder_EmbedBatchErrors(t *testing.T) {
	originalAPIKey := os.Getenv("OPENAI_API_KEY")
	defer os.Setenv("OPENAI_API_KEY", originalAPIKey)
	os.Setenv("OPENAI_API_KEY", "test-api-key")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	embedder, err := NewOpenAIEmbedderWithClient("text-embedding-3-small", server.Client(), server.URL)
	if err != nil {
		t.Fatalf("Failed to create embedder: %v", err)
	}

	if _, err := embedder.EmbedBatch(context.Background(), nil); err != ErrNoInputTexts {
		t.Errorf("Expected ErrNoInputTexts, got %v", err)
	}

	if _, err := embedder.EmbedBatch(context.Background(), []string{"texte"}); err != ErrAPIRequestFailed {
		t.Errorf("Expected ErrAPIRequestFailed, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		vector []float32
	}{
		{name: "already normalized", vector: []float32{1, 0, 0}},
		{name: "needs scaling", vector: []float32{3, 4}},
		{name: "negative components", vector: []float32{-2, 2, -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := normalize(tt.vector)
			var norm float64
			for _, x := range out {
				norm += float64(x) * float64(x)
			}
			if math.Abs(norm-1.0) > 1e-5 {
				t.Errorf("expected unit norm, got %v", norm)
			}
		})
	}

	zero := normalize([]float32{0, 0})
	for i, x := range zero {
		if x != 0 {
			t.Errorf("zero vector changed at %d: %v", i, x)
		}
	}
}

func ExampleOpenAIEmbedder_GetModelName() {
	os.Setenv("OPENAI_API_KEY", "test-api-key")
	embedder, _ := NewOpenAIEmbedder("text-embedding-3-small")
	fmt.Println(embedder.GetModelName())
	// Output: text-embedding-3-small
}
