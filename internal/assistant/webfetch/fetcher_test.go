package webfetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFetcher_GuessURL(t *testing.T) {
	fetcher := New()

	tests := []struct {
		name     string
		question string
		want     string
	}{
		{
			name:     "admission keyword",
			question: "Comment se passe l'admission en premiere annee ?",
			want:     "https://www.esilv.fr/admissions/",
		},
		{
			name:     "price keyword",
			question: "Quel est le prix de la scolarite ?",
			want:     "https://www.esilv.fr/admissions/tarifs-et-financement/",
		},
		{
			name:     "keyword match is case-insensitive",
			question: "PARCOURS possibles en cycle ingenieur",
			want:     "https://www.esilv.fr/formations/cycle-ingenieur/parcours/",
		},
		{
			name:     "salary keyword",
			question: "Quel salaire en sortie d'ecole ?",
			want:     "https://www.esilv.fr/combien-gagne-un-ingenieur-les-salaires-en-sortie-decole-dingenieurs-a-lesilv/",
		},
		{
			name:     "no keyword falls back to home page",
			question: "Bonjour, qui es-tu ?",
			want:     HomeURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fetcher.GuessURL(tt.question); got != tt.want {
				t.Errorf("GuessURL(%q) = %q, want %q", tt.question, got, tt.want)
			}
		})
	}
}

func TestFetcher_FetchPageText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<nav>Menu principal</nav>
			<main><h1>Admissions</h1><p>Les   candidatures   ouvrent en janvier.</p></main>
			<footer>Mentions legales</footer>
		</body></html>`))
	}))
	defer server.Close()

	fetcher := NewWithClient(server.Client())

	text, err := fetcher.FetchPageText(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchPageText failed: %v", err)
	}

	if !strings.Contains(text, "Les candidatures ouvrent en janvier.") {
		t.Errorf("expected whitespace-collapsed main content, got %q", text)
	}
	for _, chrome := range []string{"Menu principal", "Mentions legales"} {
		if strings.Contains(text, chrome) {
			t.Errorf("non-content element %q leaked into output", chrome)
		}
	}
}

func TestFetcher_FetchPageTextTruncates(t *testing.T) {
	long := strings.Repeat("contenu tres long ", 1000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><main><p>" + long + "</p></main></body></html>"))
	}))
	defer server.Close()

	fetcher := NewWithClient(server.Client())

	text, err := fetcher.FetchPageText(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchPageText failed: %v", err)
	}
	if got := len([]rune(text)); got > maxPageChars {
		t.Errorf("expected at most %d chars, got %d", maxPageChars, got)
	}
}

func TestFetcher_FetchPageTextErrors(t *testing.T) {
	t.Run("non-OK status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "not found", http.StatusNotFound)
		}))
		defer server.Close()

		fetcher := NewWithClient(server.Client())
		if _, err := fetcher.FetchPageText(context.Background(), server.URL); !errors.Is(err, ErrFetchFailed) {
			t.Errorf("expected ErrFetchFailed, got %v", err)
		}
	})

	t.Run("empty page", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html><body><nav>menu</nav></body></html>"))
		}))
		defer server.Close()

		fetcher := NewWithClient(server.Client())
		if _, err := fetcher.FetchPageText(context.Background(), server.URL); !errors.Is(err, ErrEmptyPage) {
			t.Errorf("expected ErrEmptyPage, got %v", err)
		}
	})

	t.Run("unreachable host", func(t *testing.T) {
		fetcher := New()
		if _, err := fetcher.FetchPageText(context.Background(), "http://127.0.0.1:1/nothing"); !errors.Is(err, ErrFetchFailed) {
			t.Errorf("expected ErrFetchFailed, got %v", err)
		}
	})
}
