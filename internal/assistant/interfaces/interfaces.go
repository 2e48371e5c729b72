package interfaces

import (
	"context"

	"github.com/esilv-labs/assistant-go/internal/assistant/models"
)

// Embedder defines the interface for generating vector embeddings.
// Implementations must return unit-norm vectors of a fixed dimension.
type Embedder interface {
	// EmbedBatch creates one embedding per input text, preserving order
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// GetModelName returns the name of the embedding model
	GetModelName() string

	// GetDimension returns the dimension of the embedding vectors
	GetDimension() int
}

// Generator defines the interface for the generative text service.
type Generator interface {
	// Generate produces a completion for the given prompt
	Generate(ctx context.Context, prompt string) (string, error)
}

// StreamingGenerator is a Generator that can additionally emit the
// completion incrementally. The full text is returned once the stream ends.
type StreamingGenerator interface {
	Generator

	// GenerateStream forwards fragments to emit as they arrive
	GenerateStream(ctx context.Context, prompt string, emit func(fragment string)) (string, error)
}

// ProgressFunc receives best-effort progress updates from long operations.
// Fraction is monotonically non-decreasing within [0, 1].
type ProgressFunc func(fraction float64, phase, message string)

// PageFetcher fetches and extracts the main textual content of a live page.
type PageFetcher interface {
	// FetchPageText returns the extracted text, truncated to a fixed budget
	FetchPageText(ctx context.Context, pageURL string) (string, error)

	// GuessURL maps a question to a best-guess page URL
	GuessURL(question string) string
}

// Request carries one user turn through the router.
type Request struct {
	ConversationID string
	Query          string
	K              int
}

// Response is the payload every routing path terminates in. Success=false
// never means a propagated error; Text is always usable by the caller.
type Response struct {
	Success       bool                     `json:"success"`
	Text          string                   `json:"response"`
	AgentUsed     string                   `json:"agent_used"`
	Intent        string                   `json:"intent"`
	Service       string                   `json:"service,omitempty"`
	ServiceEmail  string                   `json:"service_email,omitempty"`
	FormActive    bool                     `json:"form_active,omitempty"`
	FormSubmitted bool                     `json:"form_submitted,omitempty"`
	Chunks        []models.RetrievalResult `json:"chunks,omitempty"`
	Error         string                   `json:"error,omitempty"`
}

// Handler defines the interface for query handlers registered with the router.
type Handler interface {
	// Name returns the handler's display name
	Name() string

	// CanHandle reports whether this handler claims the query
	CanHandle(query string) bool

	// Process handles the query and always returns a response payload
	Process(ctx context.Context, req *Request) *Response
}

// StreamingHandler is a Handler that can emit its response incrementally.
// The router discovers this capability via type assertion.
type StreamingHandler interface {
	Handler

	// ProcessStream forwards fragments to emit; the final Response is the sentinel
	ProcessStream(ctx context.Context, req *Request, emit func(fragment string)) *Response
}
