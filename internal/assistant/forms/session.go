package forms

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/esilv-labs/assistant-go/internal/assistant/models"
)

var ErrIncompleteSubmission = errors.New("form is missing required fields")

// Slot names. They double as the JSON keys of the extraction contract.
const (
	SlotNom       = "nom"
	SlotPrenom    = "prenom"
	SlotEmail     = "email"
	SlotTelephone = "telephone"
	SlotObjet     = "objet"
	SlotMessage   = "message"
)

// requiredSlots must all be filled before a form can be submitted, in the
// order they are reported back to the user. Telephone stays optional.
var requiredSlots = []string{SlotNom, SlotPrenom, SlotEmail, SlotObjet, SlotMessage}

// allSlots is every slot the extractors may produce.
var allSlots = []string{SlotNom, SlotPrenom, SlotEmail, SlotTelephone, SlotObjet, SlotMessage}

// Fields maps slot names to collected values. Absent slots are simply not
// present; an empty string never appears as a value.
type Fields map[string]string

// State of a form session.
type State string

const (
	StateCollecting State = "collecting"
	StateComplete   State = "complete"
)

// Session is one in-flight contact form. It accumulates slot values over
// turns until every required slot is filled.
type Session struct {
	Service      string
	ServiceEmail string
	State        State
	fields       Fields
	startedAt    time.Time
}

// NewSession opens a form for the given service.
func NewSession(service, serviceEmail string) *Session {
	return &Session{
		Service:      service,
		ServiceEmail: serviceEmail,
		State:        StateCollecting,
		fields:       make(Fields),
		startedAt:    time.Now(),
	}
}

// Fields returns a copy of the collected values.
func (s *Session) Fields() Fields {
	out := make(Fields, len(s.fields))
	for k, v := range s.fields {
		out[k] = v
	}
	return out
}

// Apply merges extracted values into the session. Only non-empty values for
// known slots are taken; an absent or empty extraction never erases a value
// collected on an earlier turn.
func (s *Session) Apply(extracted Fields) {
	for _, slot := range allSlots {
		if value, ok := extracted[slot]; ok {
			value = strings.TrimSpace(value)
			if value != "" {
				s.fields[slot] = value
			}
		}
	}
	if len(s.Missing()) == 0 {
		s.State = StateComplete
	}
}

// Missing returns the required slots not yet filled, in canonical order.
func (s *Session) Missing() []string {
	var missing []string
	for _, slot := range requiredSlots {
		if s.fields[slot] == "" {
			missing = append(missing, slot)
		}
	}
	return missing
}

// Complete reports whether every required slot is filled.
func (s *Session) Complete() bool {
	return len(s.Missing()) == 0
}

// Reprompt names the slots still needed from the user.
func (s *Session) Reprompt() string {
	missing := s.Missing()
	if len(missing) == 0 {
		return ""
	}
	return fmt.Sprintf("Merci ! Il me manque encore : %s.\n\nPouvez-vous me les fournir ?", strings.Join(missing, ", "))
}

// Finalize converts the completed session into a lead. The objet and
// telephone travel inside the message body so nothing collected is lost.
func (s *Session) Finalize() (models.Lead, error) {
	if missing := s.Missing(); len(missing) > 0 {
		return models.Lead{}, fmt.Errorf("%w: %s", ErrIncompleteSubmission, strings.Join(missing, ", "))
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Objet: %s\n", s.fields[SlotObjet])
	if tel := s.fields[SlotTelephone]; tel != "" {
		fmt.Fprintf(&body, "Telephone: %s\n", tel)
	}
	fmt.Fprintf(&body, "Service: %s (%s)\n\n%s", s.Service, s.ServiceEmail, s.fields[SlotMessage])

	message := body.String()
	return models.Lead{
		Name:    s.fields[SlotPrenom] + " " + s.fields[SlotNom],
		Email:   s.fields[SlotEmail],
		Message: &message,
	}, nil
}

// Confirmation is the reply sent once the form has been submitted.
func (s *Session) Confirmation() string {
	return fmt.Sprintf(
		"Votre demande a bien ete transmise au service %s (%s). Vous recevrez une reponse a l'adresse %s.",
		s.Service, s.ServiceEmail, s.fields[SlotEmail],
	)
}
