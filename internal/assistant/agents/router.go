package agents

import (
	"context"

	"github.com/esilv-labs/assistant-go/internal/assistant/interfaces"
	"github.com/esilv-labs/assistant-go/pkg/util"

	"github.com/rs/zerolog"
)

// redirectText is the last-resort reply when no handler claims a query and
// the persona generator is unavailable.
const redirectText = "Desole, je ne peux pas traiter cette demande pour le moment. " +
	"Vous pouvez contacter l'ESILV a contact@esilv.fr ou au +33 1 41 16 70 00."

// Router dispatches each turn: an open form session always wins, then the
// first registered handler that claims the query, then a persona reply from
// the generator, then a static redirect. It never fails to produce text.
type Router struct {
	classifier *Classifier
	formTurns  *FormTurnHandler
	handlers   []interfaces.Handler
	generator  interfaces.Generator
	logger     zerolog.Logger
}

// NewRouter creates a router. Handlers are consulted in registration order.
// generator may be nil; the persona fallback is then skipped.
func NewRouter(classifier *Classifier, formTurns *FormTurnHandler, generator interfaces.Generator, handlers ...interfaces.Handler) *Router {
	return &Router{
		classifier: classifier,
		formTurns:  formTurns,
		handlers:   handlers,
		generator:  generator,
		logger:     util.NewLogger(util.LevelFromEnv("AGENTS_LOG_LEVEL")),
	}
}

// Route processes one turn and always returns a usable response.
func (r *Router) Route(ctx context.Context, req *interfaces.Request) *interfaces.Response {
	return r.route(ctx, req, nil)
}

// RouteStream behaves like Route, forwarding fragments to emit when the
// selected handler supports streaming. Non-streaming paths emit the full
// text once.
func (r *Router) RouteStream(ctx context.Context, req *interfaces.Request, emit func(fragment string)) *interfaces.Response {
	resp := r.route(ctx, req, emit)
	return resp
}

func (r *Router) route(ctx context.Context, req *interfaces.Request, emit func(string)) *interfaces.Response {
	// Turns of an open form never go through intent routing.
	if r.formTurns != nil && r.formTurns.Active(req.ConversationID) {
		resp := r.formTurns.Process(ctx, req)
		emitOnce(emit, resp.Text)
		return resp
	}

	intent := r.classifier.ClassifyIntent(ctx, req.Query)
	r.logger.Debug().Str("intent", intent).Str("query", req.Query).Msg("routing query")

	for _, handler := range r.handlers {
		if !handler.CanHandle(req.Query) {
			continue
		}
		r.logger.Info().Str("handler", handler.Name()).Str("intent", intent).Msg("handler selected")

		resp, emitted := r.dispatch(ctx, handler, req, emit)
		if resp == nil {
			r.logger.Warn().Str("handler", handler.Name()).Msg("handler panicked, trying next")
			continue
		}
		// A failed handler falls through, unless its fragments already
		// reached the caller.
		if !resp.Success && !emitted {
			r.logger.Warn().Str("handler", handler.Name()).Str("text", resp.Text).Msg("handler failed, trying next")
			continue
		}

		if !emitted {
			emitOnce(emit, resp.Text)
		}
		if resp.Intent == "" {
			resp.Intent = intent
		}
		return resp
	}

	return r.unrouted(ctx, req, intent, emit)
}

func (r *Router) dispatch(ctx context.Context, handler interfaces.Handler, req *interfaces.Request, emit func(string)) (resp *interfaces.Response, emitted bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Str("handler", handler.Name()).Interface("panic", rec).Msg("handler panic recovered")
			resp = nil
		}
	}()

	if emit != nil {
		if streamer, ok := handler.(interfaces.StreamingHandler); ok {
			counted := func(fragment string) {
				emitted = true
				emit(fragment)
			}
			return streamer.ProcessStream(ctx, req, counted), emitted
		}
	}
	return handler.Process(ctx, req), false
}

// unrouted answers queries no handler claimed: a persona reply when the
// generator is up, the static redirect otherwise.
func (r *Router) unrouted(ctx context.Context, req *interfaces.Request, intent string, emit func(string)) *interfaces.Response {
	if r.generator != nil {
		prompt := "Tu es l'assistant de l'ecole d'ingenieurs ESILV. " +
			"Reponds brievement et poliment en francais a ce message, " +
			"et invite l'utilisateur a poser une question sur l'ecole si pertinent.\n\n" +
			"Message: " + req.Query
		if text, err := r.generator.Generate(ctx, prompt); err == nil {
			emitOnce(emit, text)
			return &interfaces.Response{
				Success:   true,
				Text:      text,
				AgentUsed: "persona",
				Intent:    intent,
			}
		} else {
			r.logger.Warn().Err(err).Msg("persona fallback failed")
		}
	}

	emitOnce(emit, redirectText)
	return &interfaces.Response{
		Success:   true,
		Text:      redirectText,
		AgentUsed: "none",
		Intent:    intent,
	}
}

func emitOnce(emit func(string), text string) {
	if emit != nil && text != "" {
		emit(text)
	}
}
