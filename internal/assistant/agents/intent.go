package agents

import (
	"context"
	"strings"

	"github.com/esilv-labs/assistant-go/internal/assistant/interfaces"
	"github.com/esilv-labs/assistant-go/pkg/util"

	"github.com/rs/zerolog"
)

// Intent labels for user queries.
const (
	IntentInformation = "information"
	IntentContact     = "contact"
	IntentOther       = "other"
)

// contactKeywords flag a query as a contact request.
var contactKeywords = []string{
	"contact", "contacter", "joindre", "appeler", "téléphone", "email",
	"mail", "écrire", "parler", "rencontrer", "rendez-vous", "rdv",
	"adresse", "numéro", "téléphoner", "envoyer un message",
}

// infoKeywords flag a query as an information request.
var infoKeywords = []string{
	"qu'est-ce", "c'est quoi", "comment", "pourquoi", "quand", "où",
	"qui", "quel", "quelle", "info", "information", "renseignement",
	"savoir", "connaître", "expliquer", "présenter", "décrire",
	"programme", "cours", "formation", "admission", "étudier",
}

// Classifier labels a query with one of the three intents. Keyword matching
// decides first; the generator is only consulted when no keyword fires, and
// its failures silently fall back to the keyword decision.
type Classifier struct {
	generator interfaces.Generator
	logger    zerolog.Logger
}

// NewClassifier creates an intent classifier. generator may be nil for a
// keyword-only classifier.
func NewClassifier(generator interfaces.Generator) *Classifier {
	return &Classifier{
		generator: generator,
		logger:    util.NewLogger(util.LevelFromEnv("AGENTS_LOG_LEVEL")),
	}
}

func matchesAny(query string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(query, keyword) {
			return true
		}
	}
	return false
}

// ClassifyIntent returns information, contact or other for the query.
// Contact keywords win over information keywords; an unmatched query with no
// usable generator verdict defaults to information.
func (c *Classifier) ClassifyIntent(ctx context.Context, query string) string {
	lower := strings.ToLower(query)

	hasContact := matchesAny(lower, contactKeywords)
	hasInfo := matchesAny(lower, infoKeywords)

	if c.generator != nil && !hasContact && !hasInfo {
		if intent, ok := c.askGenerator(ctx, query); ok {
			return intent
		}
	}

	switch {
	case hasContact:
		return IntentContact
	case hasInfo:
		return IntentInformation
	default:
		return IntentInformation
	}
}

func (c *Classifier) askGenerator(ctx context.Context, query string) (string, bool) {
	prompt := "Analyse cette requete et determine l'intention principale.\n" +
		"Reponds UNIQUEMENT par un seul mot: 'information', 'contact', ou 'other'\n\n" +
		"Requete: " + query + "\n\nIntention:"

	reply, err := c.generator.Generate(ctx, prompt)
	if err != nil {
		c.logger.Warn().Err(err).Msg("intent classification via generator failed")
		return "", false
	}

	intent := strings.ToLower(strings.Trim(strings.TrimSpace(reply), "'\"."))
	switch intent {
	case IntentInformation, IntentContact, IntentOther:
		return intent, true
	}
	c.logger.Warn().Str("reply", reply).Msg("generator returned an unknown intent")
	return "", false
}
