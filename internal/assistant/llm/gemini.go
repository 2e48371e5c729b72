package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/esilv-labs/assistant-go/pkg/util"

	"github.com/rs/zerolog"
)

var (
	ErrAPIKeyNotSet     = errors.New("GEMINI_API_KEY environment variable is not set")
	ErrGenerationFailed = errors.New("generation request failed")
	ErrNoCandidates     = errors.New("response contains no candidates")
)

const (
	DefaultModel = "gemini-2.0-flash-exp"

	defaultEndpoint = "https://generativelanguage.googleapis.com/v1beta/models"
	defaultTimeout  = 30 * time.Second

	generationTemperature = 0.7
	generationMaxTokens   = 1024
)

// GeminiClient generates completions through the Gemini REST API. It
// implements both one-shot and streamed generation.
type GeminiClient struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
	logger   zerolog.Logger
}

// NewGeminiClient creates a client for the given model, reading the API key
// from the environment. An empty model selects the default.
func NewGeminiClient(model string) (*GeminiClient, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	return NewGeminiClientWithConfig(apiKey, model, defaultEndpoint, &http.Client{Timeout: defaultTimeout})
}

// NewGeminiClientWithConfig creates a fully configured client. Used by tests
// to point at a fake server.
func NewGeminiClientWithConfig(apiKey, model, endpoint string, client *http.Client) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	if model == "" {
		model = DefaultModel
	}
	return &GeminiClient{
		apiKey:   apiKey,
		model:    model,
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   client,
		logger:   util.NewLogger(util.LevelFromEnv("LLM_LOG_LEVEL")),
	}, nil
}

// GetModelName returns the configured model identifier.
func (g *GeminiClient) GetModelName() string {
	return g.model
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (r *generateResponse) text() (string, bool) {
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return "", false
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String(), true
}

func (g *GeminiClient) newRequest(ctx context.Context, verb, prompt string) (*http.Request, error) {
	payload := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     generationTemperature,
			MaxOutputTokens: generationMaxTokens,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s:%s?key=%s", g.endpoint, g.model, verb, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Generate produces a full completion for the prompt.
func (g *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	req, err := g.newRequest(ctx, "generateContent", prompt)
	if err != nil {
		return "", err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Err(err).Str("model", g.model).Msg("generation request failed")
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		g.logger.Error().Int("status", resp.StatusCode).Str("model", g.model).Msg("generation returned non-OK status")
		return "", fmt.Errorf("%w: status %d", ErrGenerationFailed, resp.StatusCode)
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	text, ok := parsed.text()
	if !ok {
		return "", ErrNoCandidates
	}
	return strings.TrimSpace(text), nil
}

// GenerateStream produces a completion incrementally, forwarding each
// fragment to emit as it arrives, and returns the assembled text.
func (g *GeminiClient) GenerateStream(ctx context.Context, prompt string, emit func(fragment string)) (string, error) {
	req, err := g.newRequest(ctx, "streamGenerateContent", prompt)
	if err != nil {
		return "", err
	}
	q := req.URL.Query()
	q.Set("alt", "sse")
	req.URL.RawQuery = q.Encode()

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Err(err).Str("model", g.model).Msg("streaming request failed")
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrGenerationFailed, resp.StatusCode)
	}

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}

		var chunk generateResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			g.logger.Warn().Err(err).Msg("skipping malformed stream event")
			continue
		}
		if fragment, ok := chunk.text(); ok && fragment != "" {
			full.WriteString(fragment)
			if emit != nil {
				emit(fragment)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	if full.Len() == 0 {
		return "", ErrNoCandidates
	}
	return strings.TrimSpace(full.String()), nil
}
