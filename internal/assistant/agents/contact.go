package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/esilv-labs/assistant-go/internal/assistant/forms"
	"github.com/esilv-labs/assistant-go/internal/assistant/interfaces"
	"github.com/esilv-labs/assistant-go/internal/assistant/sessions"
	"github.com/esilv-labs/assistant-go/pkg/util"

	"github.com/rs/zerolog"
)

// School contact details served by the contact handler.
const (
	ContactAddress      = "12 Avenue Leonard de Vinci, 92400 Courbevoie, France"
	ContactPhone        = "+33 1 41 16 70 00"
	ContactEmailGeneral = "contact@esilv.fr"
	ContactHours        = "Lundi - Vendredi: 9h00 - 18h00"

	ServiceGeneral = "general"
)

// Service routes a contact request to a department mailbox.
type Service struct {
	Name        string
	Email       string
	Description string
	keywords    []string
}

// services in resolution order; the first keyword match wins.
var services = []Service{
	{
		Name:        "admissions",
		Email:       "admissions@esilv.fr",
		Description: "pour toutes questions sur les admissions et inscriptions",
		keywords:    []string{"admission", "inscri", "candidat", "postuler", "intégrer"},
	},
	{
		Name:        "scolarite",
		Email:       "scolarite@esilv.fr",
		Description: "pour les questions relatives a la scolarite",
		keywords:    []string{"scolarité", "notes", "bulletin", "cours", "emploi du temps"},
	},
	{
		Name:        "international",
		Email:       "international@esilv.fr",
		Description: "pour les etudiants internationaux",
		keywords:    []string{"international", "étranger", "visa", "erasmus", "exchange"},
	},
	{
		Name:        "stages",
		Email:       "stages@esilv.fr",
		Description: "pour les questions sur les stages et l'alternance",
		keywords:    []string{"stage", "alternance", "entreprise", "apprentissage"},
	},
	{
		Name:        "entreprises",
		Email:       "entreprises@esilv.fr",
		Description: "pour les relations entreprises",
		keywords:    []string{"partenariat", "recrut", "collaboration", "taxe d'apprentissage"},
	},
}

// ResolveService returns the service addressed by the query, or the general
// mailbox when no department keyword matches.
func ResolveService(query string) Service {
	lower := strings.ToLower(query)
	for _, service := range services {
		if matchesAny(lower, service.keywords) {
			return service
		}
	}
	return Service{
		Name:        ServiceGeneral,
		Email:       ContactEmailGeneral,
		Description: "pour toute autre demande",
	}
}

// ContactHandler answers contact requests: it serves the school's contact
// details, resolves the department concerned, and opens a form session so
// the follow-up turns can collect the visitor's details.
type ContactHandler struct {
	registry *sessions.Registry
	logger   zerolog.Logger
}

// NewContactHandler creates the contact handler.
func NewContactHandler(registry *sessions.Registry) *ContactHandler {
	return &ContactHandler{
		registry: registry,
		logger:   util.NewLogger(util.LevelFromEnv("AGENTS_LOG_LEVEL")),
	}
}

// Name implements interfaces.Handler.
func (h *ContactHandler) Name() string {
	return "contact"
}

// CanHandle claims queries carrying a contact keyword.
func (h *ContactHandler) CanHandle(query string) bool {
	return matchesAny(strings.ToLower(query), contactKeywords)
}

// Process resolves the service, replies with its coordinates and opens a
// form session for the conversation.
func (h *ContactHandler) Process(_ context.Context, req *interfaces.Request) *interfaces.Response {
	service := ResolveService(req.Query)
	h.logger.Info().Str("service", service.Name).Str("conversation", req.ConversationID).Msg("opening contact form")

	h.registry.Put(req.ConversationID, forms.NewSession(service.Name, service.Email))

	return &interfaces.Response{
		Success:      true,
		Text:         h.formatContactResponse(service),
		AgentUsed:    h.Name(),
		Intent:       IntentContact,
		Service:      service.Name,
		ServiceEmail: service.Email,
		FormActive:   true,
	}
}

func (h *ContactHandler) formatContactResponse(service Service) string {
	var b strings.Builder

	if service.Name != ServiceGeneral {
		fmt.Fprintf(&b, "Pour %s, voici les coordonnees :\n", service.Description)
		fmt.Fprintf(&b, "Email: %s\n", service.Email)
	} else {
		b.WriteString("Voici les coordonnees de l'ESILV :\n")
		fmt.Fprintf(&b, "Email general: %s\n", ContactEmailGeneral)
	}

	fmt.Fprintf(&b, "Telephone: %s\n", ContactPhone)
	fmt.Fprintf(&b, "Adresse: %s\n", ContactAddress)
	fmt.Fprintf(&b, "Horaires: %s\n", ContactHours)

	if service.Name == ServiceGeneral {
		b.WriteString("\nServices specialises :\n")
		for _, svc := range services {
			fmt.Fprintf(&b, "- %s: %s\n", svc.Name, svc.Email)
		}
	}

	b.WriteString("\nSi vous souhaitez etre recontacte, indiquez-moi vos nom, prenom, email, l'objet de votre demande et votre message (telephone facultatif).")
	return b.String()
}
