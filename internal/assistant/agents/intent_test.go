package agents

import (
	"context"
	"errors"
	"testing"
)

type stubGenerator struct {
	reply string
	err   error
	calls int
}

func (g *stubGenerator) Generate(context.Context, string) (string, error) {
	g.calls++
	return g.reply, g.err
}

func TestClassifier_Keywords(t *testing.T) {
	classifier := NewClassifier(nil)

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"contact verb", "Je voudrais contacter le service des admissions", IntentContact},
		{"phone request", "Quel est le numéro de téléphone de l'ecole ?", IntentContact},
		{"information question", "Comment se passe la formation ?", IntentInformation},
		{"admission info", "admission en cycle ingenieur", IntentInformation},
		{"unmatched defaults to information", "blabla", IntentInformation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifier.ClassifyIntent(context.Background(), tt.query); got != tt.want {
				t.Errorf("ClassifyIntent(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}

func TestClassifier_ContactWinsOverInfo(t *testing.T) {
	classifier := NewClassifier(nil)

	// Carries both "comment" (info) and "contacter" (contact).
	got := classifier.ClassifyIntent(context.Background(), "Comment contacter la scolarite ?")
	if got != IntentContact {
		t.Errorf("expected contact to win, got %q", got)
	}
}

func TestClassifier_GeneratorOnlyConsultedWhenNoKeyword(t *testing.T) {
	generator := &stubGenerator{reply: "other"}
	classifier := NewClassifier(generator)

	if got := classifier.ClassifyIntent(context.Background(), "Comment candidater ?"); got != IntentInformation {
		t.Errorf("keyword match should bypass the generator, got %q", got)
	}
	if generator.calls != 0 {
		t.Errorf("generator consulted despite keyword match: %d calls", generator.calls)
	}

	if got := classifier.ClassifyIntent(context.Background(), "blabla"); got != IntentOther {
		t.Errorf("expected generator verdict 'other', got %q", got)
	}
	if generator.calls != 1 {
		t.Errorf("expected one generator call, got %d", generator.calls)
	}
}

func TestClassifier_GeneratorFailuresAreSilent(t *testing.T) {
	tests := []struct {
		name      string
		generator *stubGenerator
	}{
		{"generator error", &stubGenerator{err: errors.New("down")}},
		{"unknown verdict", &stubGenerator{reply: "je ne sais pas"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classifier := NewClassifier(tt.generator)
			if got := classifier.ClassifyIntent(context.Background(), "blabla"); got != IntentInformation {
				t.Errorf("expected silent fallback to information, got %q", got)
			}
		})
	}
}

func TestClassifier_NormalizesGeneratorVerdict(t *testing.T) {
	classifier := NewClassifier(&stubGenerator{reply: " 'Contact' \n"})

	if got := classifier.ClassifyIntent(context.Background(), "blabla"); got != IntentContact {
		t.Errorf("expected normalized verdict contact, got %q", got)
	}
}
