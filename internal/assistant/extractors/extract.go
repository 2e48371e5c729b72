package extractors

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/esilv-labs/assistant-go/pkg/util"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrEmptyDocument       = errors.New("document has no extractable text")
)

// nonContentSelector matches elements stripped before content extraction.
const nonContentSelector = "script, style, noscript, nav, header, footer, aside, iframe"

// Extractor turns uploaded files into plain text suitable for chunking.
// HTML is reduced to its main content and converted to markdown; plain text
// formats pass through. PDF extraction is delegated to an external tool and
// is not handled here.
type Extractor struct {
	markdownConverter *md.Converter
	logger            zerolog.Logger
}

// New creates a text extractor.
func New() *Extractor {
	return &Extractor{
		markdownConverter: md.NewConverter("", true, nil),
		logger:            util.NewLogger(zerolog.ErrorLevel),
	}
}

// ExtractText reads the file at path and returns its textual content.
func (e *Extractor) ExtractText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		e.logger.Err(err).Str("path", path).Msg("failed to read file")
		return "", err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		text := strings.TrimSpace(string(data))
		if text == "" {
			return "", ErrEmptyDocument
		}
		return text, nil
	case ".html", ".htm":
		return e.ExtractHTML(string(data))
	default:
		e.logger.Warn().Str("path", path).Msg("unsupported file type")
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, filepath.Ext(path))
	}
}

// ExtractHTML extracts the main content of an HTML document as markdown,
// preferring semantic containers over the raw body.
func (e *Extractor) ExtractHTML(content string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		e.logger.Err(err).Msg("failed to parse HTML")
		return "", err
	}

	doc.Find(nonContentSelector).Remove()

	selection := doc.Find("main").First()
	if selection.Length() == 0 {
		selection = doc.Find("article").First()
	}
	if selection.Length() == 0 {
		selection = doc.Find("body").First()
	}
	if selection.Length() == 0 {
		return "", ErrEmptyDocument
	}

	inner, err := selection.Html()
	if err != nil {
		return "", err
	}

	markdown, err := e.markdownConverter.ConvertString(inner)
	if err != nil {
		e.logger.Err(err).Msg("failed to convert HTML to markdown")
		return "", err
	}

	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return "", ErrEmptyDocument
	}
	return markdown, nil
}
