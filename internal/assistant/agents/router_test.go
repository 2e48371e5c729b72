package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/esilv-labs/assistant-go/internal/assistant/forms"
	"github.com/esilv-labs/assistant-go/internal/assistant/interfaces"
	"github.com/esilv-labs/assistant-go/internal/assistant/sessions"
)

type stubHandler struct {
	name    string
	claims  bool
	resp    *interfaces.Response
	calls   int
	queries []string
}

func (h *stubHandler) Name() string { return h.name }

func (h *stubHandler) CanHandle(query string) bool {
	h.queries = append(h.queries, query)
	return h.claims
}

func (h *stubHandler) Process(_ context.Context, req *interfaces.Request) *interfaces.Response {
	h.calls++
	if h.resp != nil {
		return h.resp
	}
	return &interfaces.Response{Success: true, Text: "handled by " + h.name, AgentUsed: h.name}
}

type stubStreamingHandler struct {
	stubHandler
	fragments []string
}

func (h *stubStreamingHandler) ProcessStream(_ context.Context, req *interfaces.Request, emit func(string)) *interfaces.Response {
	h.calls++
	for _, fragment := range h.fragments {
		emit(fragment)
	}
	return &interfaces.Response{Success: true, Text: strings.Join(h.fragments, ""), AgentUsed: h.name}
}

func newRouter(formTurns *FormTurnHandler, generator interfaces.Generator, handlers ...interfaces.Handler) *Router {
	return NewRouter(NewClassifier(nil), formTurns, generator, handlers...)
}

func TestRouter_FirstClaimingHandlerWins(t *testing.T) {
	first := &stubHandler{name: "first", claims: false}
	second := &stubHandler{name: "second", claims: true}
	third := &stubHandler{name: "third", claims: true}

	router := newRouter(nil, nil, first, second, third)
	resp := router.Route(context.Background(), &interfaces.Request{ConversationID: "c", Query: "comment candidater ?"})

	if resp.AgentUsed != "second" {
		t.Errorf("expected second handler, got %q", resp.AgentUsed)
	}
	if second.calls != 1 || third.calls != 0 || first.calls != 0 {
		t.Errorf("wrong dispatch counts: first=%d second=%d third=%d", first.calls, second.calls, third.calls)
	}
	if resp.Intent != IntentInformation {
		t.Errorf("router did not stamp the intent: %q", resp.Intent)
	}
}

func TestRouter_HandlerIntentPreserved(t *testing.T) {
	handler := &stubHandler{
		name:   "contact",
		claims: true,
		resp:   &interfaces.Response{Success: true, Text: "ok", AgentUsed: "contact", Intent: IntentContact},
	}

	router := newRouter(nil, nil, handler)
	resp := router.Route(context.Background(), &interfaces.Request{ConversationID: "c", Query: "comment ?"})

	if resp.Intent != IntentContact {
		t.Errorf("handler-set intent overwritten: %q", resp.Intent)
	}
}

func TestRouter_ActiveFormBypassesHandlers(t *testing.T) {
	registry := sessions.NewRegistry()
	registry.Put("conv-1", forms.NewSession("admissions", "admissions@esilv.fr"))

	formTurns := NewFormTurnHandler(registry, scriptedExtractor{fields: forms.Fields{forms.SlotPrenom: "Marie"}}, &memoryLeads{})
	knowledge := &stubHandler{name: "knowledge", claims: true}

	router := newRouter(formTurns, nil, knowledge)
	resp := router.Route(context.Background(), &interfaces.Request{ConversationID: "conv-1", Query: "Marie"})

	if resp.AgentUsed != "form" {
		t.Errorf("expected form handler for active session, got %q", resp.AgentUsed)
	}
	if knowledge.calls != 0 {
		t.Error("registered handlers consulted despite active form")
	}

	// Other conversations are unaffected by conv-1's form.
	resp = router.Route(context.Background(), &interfaces.Request{ConversationID: "conv-2", Query: "comment candidater ?"})
	if resp.AgentUsed != "knowledge" {
		t.Errorf("expected knowledge handler for other conversation, got %q", resp.AgentUsed)
	}
}

type panickingHandler struct {
	name string
}

func (h *panickingHandler) Name() string          { return h.name }
func (h *panickingHandler) CanHandle(string) bool { return true }

func (h *panickingHandler) Process(_ context.Context, _ *interfaces.Request) *interfaces.Response {
	panic("boom")
}

func TestRouter_FailedHandlerFallsThrough(t *testing.T) {
	broken := &stubHandler{
		name:   "broken",
		claims: true,
		resp:   &interfaces.Response{Success: false, Text: "erreur interne", AgentUsed: "broken"},
	}
	healthy := &stubHandler{name: "healthy", claims: true}

	router := newRouter(nil, nil, broken, healthy)
	resp := router.Route(context.Background(), &interfaces.Request{ConversationID: "c", Query: "bonjour"})

	if resp.AgentUsed != "healthy" {
		t.Errorf("expected fall-through to healthy handler, got %q", resp.AgentUsed)
	}
	if broken.calls != 1 {
		t.Errorf("broken handler dispatched %d times", broken.calls)
	}
}

func TestRouter_PanickingHandlerFallsThrough(t *testing.T) {
	healthy := &stubHandler{name: "healthy", claims: true}

	router := newRouter(nil, nil, &panickingHandler{name: "broken"}, healthy)
	resp := router.Route(context.Background(), &interfaces.Request{ConversationID: "c", Query: "bonjour"})

	if resp.AgentUsed != "healthy" {
		t.Errorf("expected fall-through past the panic, got %q", resp.AgentUsed)
	}
	if !resp.Success {
		t.Error("router must still succeed after a handler panic")
	}
}

func TestRouter_FailedStreamingResponseKeptAfterFragments(t *testing.T) {
	streamer := &failingStreamingHandler{name: "knowledge", fragments: []string{"debut de reponse"}}
	healthy := &stubHandler{name: "healthy", claims: true}

	router := newRouter(nil, nil, streamer, healthy)

	var fragments []string
	resp := router.RouteStream(context.Background(), &interfaces.Request{ConversationID: "c", Query: "q"}, func(fragment string) {
		fragments = append(fragments, fragment)
	})

	if resp.AgentUsed != "knowledge" {
		t.Errorf("fragments already emitted, response must not fall through; got %q", resp.AgentUsed)
	}
	if healthy.calls != 0 {
		t.Error("next handler dispatched despite emitted fragments")
	}
	if len(fragments) != 1 {
		t.Errorf("unexpected fragments %v", fragments)
	}
}

type failingStreamingHandler struct {
	name      string
	fragments []string
}

func (h *failingStreamingHandler) Name() string          { return h.name }
func (h *failingStreamingHandler) CanHandle(string) bool { return true }

func (h *failingStreamingHandler) Process(_ context.Context, _ *interfaces.Request) *interfaces.Response {
	return &interfaces.Response{Success: false, AgentUsed: h.name}
}

func (h *failingStreamingHandler) ProcessStream(_ context.Context, _ *interfaces.Request, emit func(string)) *interfaces.Response {
	for _, fragment := range h.fragments {
		emit(fragment)
	}
	return &interfaces.Response{Success: false, Text: strings.Join(h.fragments, ""), AgentUsed: h.name}
}

func TestRouter_PersonaFallback(t *testing.T) {
	generator := &stubGenerator{reply: "Bonjour ! Posez-moi une question sur l'ESILV."}
	router := newRouter(nil, generator, &stubHandler{name: "knowledge", claims: false})

	resp := router.Route(context.Background(), &interfaces.Request{ConversationID: "c", Query: "salut"})

	if resp.AgentUsed != "persona" {
		t.Errorf("expected persona fallback, got %q", resp.AgentUsed)
	}
	if resp.Text != generator.reply {
		t.Errorf("unexpected persona text %q", resp.Text)
	}
}

func TestRouter_StaticRedirectWhenGeneratorFails(t *testing.T) {
	tests := []struct {
		name      string
		generator interfaces.Generator
	}{
		{"no generator", nil},
		{"generator error", &stubGenerator{err: errors.New("down")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(nil, tt.generator, &stubHandler{name: "knowledge", claims: false})
			resp := router.Route(context.Background(), &interfaces.Request{ConversationID: "c", Query: "salut"})

			if !resp.Success {
				t.Errorf("router must always succeed, got %+v", resp)
			}
			if resp.Text != redirectText {
				t.Errorf("expected static redirect, got %q", resp.Text)
			}
		})
	}
}

func TestRouter_RouteStreamUsesStreamingHandler(t *testing.T) {
	streamer := &stubStreamingHandler{
		stubHandler: stubHandler{name: "knowledge", claims: true},
		fragments:   []string{"Les admissions ", "ouvrent en janvier."},
	}

	router := newRouter(nil, nil, streamer)

	var fragments []string
	resp := router.RouteStream(context.Background(), &interfaces.Request{ConversationID: "c", Query: "quand ?"}, func(fragment string) {
		fragments = append(fragments, fragment)
	})

	if len(fragments) != 2 {
		t.Fatalf("expected 2 fragments, got %v", fragments)
	}
	if strings.Join(fragments, "") != resp.Text {
		t.Errorf("fragments %v do not reassemble the response %q", fragments, resp.Text)
	}
}

func TestRouter_RouteStreamEmitsNonStreamingOnce(t *testing.T) {
	handler := &stubHandler{name: "contact", claims: true}
	router := newRouter(nil, nil, handler)

	var fragments []string
	resp := router.RouteStream(context.Background(), &interfaces.Request{ConversationID: "c", Query: "q"}, func(fragment string) {
		fragments = append(fragments, fragment)
	})

	if len(fragments) != 1 || fragments[0] != resp.Text {
		t.Errorf("expected the full text as one fragment, got %v", fragments)
	}
}
