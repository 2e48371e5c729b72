package embedders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/esilv-labs/assistant-go/pkg/util"

	"github.com/rs/zerolog"
)

// TogetherAIEmbedder implements batch embedding using Together AI's API.
type TogetherAIEmbedder struct {
	apiKey     string
	model      string
	dimension  int
	maxTokens  int
	httpClient *http.Client
	apiURL     string
	logger     zerolog.Logger
}

// TogetherAIEmbeddingRequest represents the request structure for Together AI embeddings API.
type TogetherAIEmbeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

// TogetherAIEmbeddingResponse represents the response structure from Together AI embeddings API.
type TogetherAIEmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
		Object    string    `json:"object"`
	} `json:"data"`
	Model  string `json:"model"`
	Object string `json:"object"`
}

// NewTogetherAIEmbedder creates a new Together AI embedder.
func NewTogetherAIEmbedder(model string) (*TogetherAIEmbedder, error) {
	return NewTogetherAIEmbedderWithClient(model, nil, "")
}

// NewTogetherAIEmbedderWithClient creates a new Together AI embedder with custom HTTP client and API URL.
func NewTogetherAIEmbedderWithClient(
	model string,
	httpClient *http.Client,
	apiURL string,
) (*TogetherAIEmbedder, error) {
	logger := util.NewLogger(zerolog.ErrorLevel)
	apiKey := os.Getenv("TOGETHER_API_KEY")
	if strings.EqualFold(apiKey, "") {
		logger.Error().Msg("TOGETHER_API_KEY env variable not set")
		return nil, ErrAPIKeyNotSet
	}

	var dimension, maxTokens int
	switch model {
	case "togethercomputer/m2-bert-80M-8k-retrieval":
		dimension = 768
		maxTokens = 8192
	case "togethercomputer/m2-bert-80M-32k-retrieval":
		dimension = 768
		maxTokens = 32768
	default:
		logger.Error().Str("unsupported model", model).Err(ErrUnsupportedModel)
		return nil, ErrUnsupportedModel
	}

	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: timeout,
		}
	}

	if apiURL == "" {
		apiURL = "https://api.together.xyz/v1/embeddings"
	}

	return &TogetherAIEmbedder{
		apiKey:     apiKey,
		model:      model,
		dimension:  dimension,
		maxTokens:  maxTokens,
		httpClient: httpClient,
		apiURL:     apiURL,
		logger:     logger,
	}, nil
}

// EmbedBatch creates one unit-norm embedding per input text, preserving order.
func (t *TogetherAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrNoInputTexts
	}

	request := TogetherAIEmbeddingRequest{
		Input: cleanTexts(texts),
		Model: t.model,
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		t.logger.Err(err).Msg("failed to marshal request")
		return nil, err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		t.apiURL,
		bytes.NewBuffer(requestBody),
	)
	if err != nil {
		t.logger.Err(err).Msg("failed to create request")
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", t.apiKey))

	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.logger.Err(err).Msg("failed to make request")
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.logger.Error().Err(err).Msg("Failed to close response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		t.logger.Error().Int("status_code", resp.StatusCode).Msg("API request failed")
		return nil, ErrAPIRequestFailed
	}

	var response TogetherAIEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		t.logger.Err(err).Msg("failed to decode response")
		return nil, err
	}

	if len(response.Data) == 0 {
		return nil, ErrNoEmbeddingData
	}
	if len(response.Data) != len(texts) {
		return nil, ErrEmbeddingCount
	}

	sort.Slice(response.Data, func(i, j int) bool {
		return response.Data[i].Index < response.Data[j].Index
	})

	vectors := make([][]float32, len(response.Data))
	for i, d := range response.Data {
		vectors[i] = normalize(d.Embedding)
	}

	return vectors, nil
}

// GetModelName returns the name of the embedding model.
func (t *TogetherAIEmbedder) GetModelName() string {
	return t.model
}

// GetDimension returns the dimension of the embedding vectors.
func (t *TogetherAIEmbedder) GetDimension() int {
	return t.dimension
}

// GetMaxTokens returns the maximum number of tokens this embedder can handle.
func (t *TogetherAIEmbedder) GetMaxTokens() int {
	return t.maxTokens
}
