package agents

import (
	"context"

	"github.com/esilv-labs/assistant-go/internal/assistant/forms"
	"github.com/esilv-labs/assistant-go/internal/assistant/interfaces"
	"github.com/esilv-labs/assistant-go/internal/assistant/models"
	"github.com/esilv-labs/assistant-go/internal/assistant/sessions"
	"github.com/esilv-labs/assistant-go/pkg/util"

	"github.com/rs/zerolog"
)

// LeadWriter persists submitted contact forms.
type LeadWriter interface {
	Add(ctx context.Context, lead models.Lead) (models.Lead, error)
}

// FormTurnHandler consumes turns of a conversation that has an open form
// session. It extracts slot values from the turn, re-prompts while required
// slots are missing, and submits the lead once the form is complete.
type FormTurnHandler struct {
	registry  *sessions.Registry
	extractor forms.Extractor
	fallback  forms.Extractor
	leads     LeadWriter
	logger    zerolog.Logger
}

// NewFormTurnHandler creates the form-turn handler. extractor failures fall
// back to the heuristic parser so a down LLM never stalls a form.
func NewFormTurnHandler(registry *sessions.Registry, extractor forms.Extractor, leads LeadWriter) *FormTurnHandler {
	return &FormTurnHandler{
		registry:  registry,
		extractor: extractor,
		fallback:  forms.HeuristicExtractor{},
		leads:     leads,
		logger:    util.NewLogger(util.LevelFromEnv("AGENTS_LOG_LEVEL")),
	}
}

// Name implements interfaces.Handler.
func (h *FormTurnHandler) Name() string {
	return "form"
}

// CanHandle claims the turn only when the conversation has an open form.
// The router passes the conversation id through the request, so this
// handler is consulted explicitly rather than via keyword matching.
func (h *FormTurnHandler) CanHandle(string) bool {
	return false
}

// Active reports whether the conversation has an open form session.
func (h *FormTurnHandler) Active(conversationID string) bool {
	return h.registry.Get(conversationID) != nil
}

// Process folds the turn into the open form session.
func (h *FormTurnHandler) Process(ctx context.Context, req *interfaces.Request) *interfaces.Response {
	session := h.registry.Get(req.ConversationID)
	if session == nil {
		return &interfaces.Response{
			Success:   false,
			Text:      "Aucun formulaire en cours pour cette conversation.",
			AgentUsed: h.Name(),
			Error:     "no active form session",
		}
	}

	fields, err := h.extractor.Extract(ctx, req.Query, session.Fields())
	if err != nil {
		h.logger.Warn().Err(err).Msg("slot extraction failed, using heuristic parser")
		fields, _ = h.fallback.Extract(ctx, req.Query, session.Fields())
	}
	session.Apply(fields)

	if !session.Complete() {
		return &interfaces.Response{
			Success:      true,
			Text:         session.Reprompt(),
			AgentUsed:    h.Name(),
			Intent:       IntentContact,
			Service:      session.Service,
			ServiceEmail: session.ServiceEmail,
			FormActive:   true,
		}
	}

	lead, err := session.Finalize()
	if err != nil {
		// Complete() held, so this only fires on a logic regression.
		h.logger.Err(err).Msg("failed to finalize a complete form")
		return &interfaces.Response{
			Success:   false,
			Text:      "Une erreur est survenue lors de l'envoi du formulaire. Reessayez.",
			AgentUsed: h.Name(),
			Error:     err.Error(),
		}
	}

	if _, err := h.leads.Add(ctx, lead); err != nil {
		h.logger.Err(err).Str("email", lead.Email).Msg("failed to persist lead")
		return &interfaces.Response{
			Success:    false,
			Text:       "Impossible d'enregistrer votre demande pour le moment. Reessayez dans un instant.",
			AgentUsed:  h.Name(),
			FormActive: true,
			Error:      err.Error(),
		}
	}

	h.registry.Remove(req.ConversationID)
	h.logger.Info().Str("service", session.Service).Str("email", lead.Email).Msg("lead submitted")

	return &interfaces.Response{
		Success:       true,
		Text:          session.Confirmation(),
		AgentUsed:     h.Name(),
		Intent:        IntentContact,
		Service:       session.Service,
		ServiceEmail:  session.ServiceEmail,
		FormSubmitted: true,
	}
}
