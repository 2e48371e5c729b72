package forms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/esilv-labs/assistant-go/internal/assistant/interfaces"
	"github.com/esilv-labs/assistant-go/pkg/util"

	"github.com/rs/zerolog"
)

var ErrExtractionParse = errors.New("could not parse extraction output")

// extractionTimeout bounds one extraction round trip.
const extractionTimeout = 15 * time.Second

// jsonObjectRe grabs the first JSON object in a completion, tolerating prose
// or code fences around it.
var jsonObjectRe = regexp.MustCompile(`\{[\s\S]*\}`)

// Extractor pulls form slot values out of a free-text user turn.
type Extractor interface {
	Extract(ctx context.Context, userInput string, current Fields) (Fields, error)
}

// LLMExtractor asks the generator for a strict-JSON slot extraction.
type LLMExtractor struct {
	generator interfaces.Generator
	logger    zerolog.Logger
}

// NewLLMExtractor creates an extractor backed by the given generator.
func NewLLMExtractor(generator interfaces.Generator) *LLMExtractor {
	return &LLMExtractor{
		generator: generator,
		logger:    util.NewLogger(util.LevelFromEnv("FORMS_LOG_LEVEL")),
	}
}

func extractionPrompt(userInput string, current Fields) string {
	var state strings.Builder
	for _, slot := range allSlots {
		value := current[slot]
		if value == "" {
			value = "Non fourni"
		}
		fmt.Fprintf(&state, "- %s: %s\n", slot, value)
	}

	return fmt.Sprintf(`Tu es un assistant qui extrait des informations d'un formulaire de contact.

Message de l'utilisateur: %q

Etat actuel du formulaire:
%s
Extrais les informations suivantes du message et retourne-les au format JSON strict (uniquement le JSON, rien d'autre):
{
  "nom": "nom de famille ou null",
  "prenom": "prenom ou null",
  "email": "adresse email ou null",
  "telephone": "numero de telephone ou null",
  "objet": "objet/sujet de la demande ou null",
  "message": "message detaille ou null"
}

Regles:
- Si une information n'est pas fournie, mets null
- Ne garde que ce qui est NOUVEAU dans le message
- L'email doit contenir un @
- Si l'utilisateur donne "Prenom Nom", le premier mot est le prenom, le reste est le nom
- Si c'est juste un texte sans structure, c'est probablement l'objet ou le message

JSON:`, userInput, state.String())
}

// Extract parses the generator's JSON reply into slot values. Slots set to
// null, "null" or empty are omitted from the result.
func (e *LLMExtractor) Extract(ctx context.Context, userInput string, current Fields) (Fields, error) {
	ctx, cancel := context.WithTimeout(ctx, extractionTimeout)
	defer cancel()

	reply, err := e.generator.Generate(ctx, extractionPrompt(userInput, current))
	if err != nil {
		return nil, err
	}

	raw := jsonObjectRe.FindString(reply)
	if raw == "" {
		e.logger.Warn().Str("reply", reply).Msg("no JSON object in extraction reply")
		return nil, ErrExtractionParse
	}

	var parsed map[string]*string
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		e.logger.Warn().Err(err).Msg("malformed extraction JSON")
		return nil, fmt.Errorf("%w: %v", ErrExtractionParse, err)
	}

	fields := make(Fields)
	for _, slot := range allSlots {
		value, ok := parsed[slot]
		if !ok || value == nil {
			continue
		}
		trimmed := strings.TrimSpace(*value)
		if trimmed == "" || strings.EqualFold(trimmed, "null") {
			continue
		}
		fields[slot] = trimmed
	}
	return fields, nil
}

// HeuristicExtractor classifies comma-separated segments of the input
// without an LLM. It is the fallback when generation is unavailable.
type HeuristicExtractor struct{}

// Extract applies simple rules per segment: an @ means email, a number-only
// segment means telephone, a "cle: valeur" pair addresses that slot, and the
// first unclassified segment is split into prenom and nom.
func (HeuristicExtractor) Extract(_ context.Context, userInput string, current Fields) (Fields, error) {
	fields := make(Fields)
	nameTaken := current[SlotNom] != "" || current[SlotPrenom] != ""

	for _, segment := range strings.Split(userInput, ",") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}

		if key, value, ok := splitKeyValue(segment); ok {
			if contains(allSlots, key) && value != "" {
				fields[key] = value
			}
			continue
		}

		switch {
		case strings.Contains(segment, "@"):
			fields[SlotEmail] = segment
		case isPhoneNumber(segment):
			fields[SlotTelephone] = segment
		case !nameTaken:
			words := strings.Fields(segment)
			fields[SlotPrenom] = words[0]
			if len(words) > 1 {
				fields[SlotNom] = strings.Join(words[1:], " ")
			}
			nameTaken = true
		case current[SlotObjet] == "" && fields[SlotObjet] == "":
			fields[SlotObjet] = segment
		default:
			if prev := fields[SlotMessage]; prev != "" {
				fields[SlotMessage] = prev + ", " + segment
			} else {
				fields[SlotMessage] = segment
			}
		}
	}
	return fields, nil
}

func splitKeyValue(segment string) (key, value string, ok bool) {
	idx := strings.Index(segment, ":")
	if idx <= 0 {
		return "", "", false
	}
	key = strings.ToLower(strings.TrimSpace(segment[:idx]))
	value = strings.TrimSpace(segment[idx+1:])
	if strings.ContainsAny(key, " \t") {
		return "", "", false
	}
	return key, value, true
}

func isPhoneNumber(segment string) bool {
	digits := 0
	for _, r := range segment {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == ' ' || r == '+' || r == '.' || r == '-':
		default:
			return false
		}
	}
	return digits >= 6
}

func contains(slots []string, key string) bool {
	for _, slot := range slots {
		if slot == key {
			return true
		}
	}
	return false
}
