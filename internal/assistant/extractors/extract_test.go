package extractors

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExtractor_ExtractText(t *testing.T) {
	extractor := New()
	dir := t.TempDir()

	write := func(name, content string) string {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write fixture: %v", err)
		}
		return path
	}

	tests := []struct {
		name      string
		file      string
		content   string
		contains  string
		expectErr error
	}{
		{
			name:     "plain text",
			file:     "notes.txt",
			content:  "Les admissions ouvrent en janvier.",
			contains: "Les admissions ouvrent en janvier.",
		},
		{
			name:     "markdown passthrough",
			file:     "readme.md",
			content:  "# Titre\n\nContenu du document.",
			contains: "Contenu du document.",
		},
		{
			name:     "html main content",
			file:     "page.html",
			content:  `<html><head><script>x()</script></head><body><nav>menu</nav><main><p>Texte principal.</p></main></body></html>`,
			contains: "Texte principal.",
		},
		{
			name:      "empty text file",
			file:      "empty.txt",
			content:   "   ",
			expectErr: ErrEmptyDocument,
		},
		{
			name:      "unsupported extension",
			file:      "report.pdf",
			content:   "%PDF-1.4",
			expectErr: ErrUnsupportedFileType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := write(tt.file, tt.content)
			text, err := extractor.ExtractText(path)

			if tt.expectErr != nil {
				if !errors.Is(err, tt.expectErr) {
					t.Errorf("expected %v, got %v", tt.expectErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(text, tt.contains) {
				t.Errorf("expected %q in output, got %q", tt.contains, text)
			}
		})
	}
}

func TestExtractor_ExtractHTMLStripsChrome(t *testing.T) {
	extractor := New()

	html := `<html><body>
		<header>Bandeau</header>
		<nav>Navigation</nav>
		<article><h1>Formations</h1><p>Le cycle ingenieur dure trois ans.</p></article>
		<footer>Pied de page</footer>
	</body></html>`

	text, err := extractor.ExtractHTML(html)
	if err != nil {
		t.Fatalf("ExtractHTML failed: %v", err)
	}

	if !strings.Contains(text, "Le cycle ingenieur dure trois ans.") {
		t.Errorf("main content missing: %q", text)
	}
	for _, chrome := range []string{"Bandeau", "Navigation", "Pied de page"} {
		if strings.Contains(text, chrome) {
			t.Errorf("non-content element %q leaked into output", chrome)
		}
	}
}
