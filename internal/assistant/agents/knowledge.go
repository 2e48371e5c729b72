package agents

import (
	"context"
	"strings"

	"github.com/esilv-labs/assistant-go/internal/assistant/compose"
	"github.com/esilv-labs/assistant-go/internal/assistant/interfaces"
	"github.com/esilv-labs/assistant-go/internal/assistant/retrieval"
	"github.com/esilv-labs/assistant-go/pkg/util"

	"github.com/rs/zerolog"
)

// KnowledgeHandler answers questions from the indexed corpus. It claims any
// query that is not a contact request, as long as an index is available.
type KnowledgeHandler struct {
	composer  *compose.Composer
	retriever *retrieval.Retriever
	logger    zerolog.Logger
}

// NewKnowledgeHandler creates the knowledge handler.
func NewKnowledgeHandler(composer *compose.Composer, retriever *retrieval.Retriever) *KnowledgeHandler {
	return &KnowledgeHandler{
		composer:  composer,
		retriever: retriever,
		logger:    util.NewLogger(util.LevelFromEnv("AGENTS_LOG_LEVEL")),
	}
}

// Name implements interfaces.Handler.
func (h *KnowledgeHandler) Name() string {
	return "knowledge"
}

// CanHandle claims every non-contact query when the index is ready.
func (h *KnowledgeHandler) CanHandle(query string) bool {
	if matchesAny(strings.ToLower(query), contactKeywords) {
		return false
	}
	return h.retriever.Ready()
}

// Process composes an answer from the corpus. Generation failures degrade
// inside the composer; only retrieval failure yields Success=false, and even
// then the response text remains usable.
func (h *KnowledgeHandler) Process(ctx context.Context, req *interfaces.Request) *interfaces.Response {
	return h.respond(ctx, req, nil)
}

// ProcessStream implements interfaces.StreamingHandler.
func (h *KnowledgeHandler) ProcessStream(ctx context.Context, req *interfaces.Request, emit func(string)) *interfaces.Response {
	return h.respond(ctx, req, emit)
}

func (h *KnowledgeHandler) respond(ctx context.Context, req *interfaces.Request, emit func(string)) *interfaces.Response {
	answer, err := h.composer.AnswerStream(ctx, req.Query, req.K, emit)
	if err != nil {
		h.logger.Err(err).Str("query", req.Query).Msg("failed to compose answer")
		return &interfaces.Response{
			Success:   false,
			Text:      "Desole, je ne peux pas repondre pour le moment. Reessayez dans un instant.",
			AgentUsed: h.Name(),
			Error:     err.Error(),
		}
	}

	return &interfaces.Response{
		Success:   true,
		Text:      answer.Text,
		AgentUsed: h.Name(),
		Chunks:    answer.Chunks,
	}
}
