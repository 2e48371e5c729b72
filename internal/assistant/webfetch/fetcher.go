package webfetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/esilv-labs/assistant-go/pkg/util"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

var (
	ErrFetchFailed = errors.New("failed to fetch page")
	ErrEmptyPage   = errors.New("page has no extractable text")
)

const (
	// maxPageChars bounds the extracted text so a scraped page cannot crowd
	// the prompt context.
	maxPageChars = 5000

	defaultTimeout = 10 * time.Second

	nonContentSelector = "script, style, noscript, nav, header, footer, aside, iframe"

	// HomeURL is the fallback page when no keyword matches the question.
	HomeURL = "https://www.esilv.fr/"
)

// keywordPages maps question keywords to the site page most likely to
// answer them. Substring match against the lowercased question.
var keywordPages = []struct {
	keyword string
	url     string
}{
	{"admission", "https://www.esilv.fr/admissions/"},
	{"tarif", "https://www.esilv.fr/admissions/tarifs-et-financement/"},
	{"prix", "https://www.esilv.fr/admissions/tarifs-et-financement/"},
	{"cout", "https://www.esilv.fr/admissions/tarifs-et-financement/"},
	{"formation", "https://www.esilv.fr/formations/"},
	{"majeure", "https://www.esilv.fr/formations/cycle-ingenieur/majeures/"},
	{"parcours", "https://www.esilv.fr/formations/cycle-ingenieur/parcours/"},
	{"bachelor", "https://www.esilv.fr/formations/bachelor-informatique-cybersecurite/"},
	{"entreprise", "https://www.esilv.fr/entreprises-debouches/"},
	{"emploi", "https://www.esilv.fr/entreprises-debouches/enquete-premier-emploi-ingenieur/"},
	{"salaire", "https://www.esilv.fr/combien-gagne-un-ingenieur-les-salaires-en-sortie-decole-dingenieurs-a-lesilv/"},
}

// Fetcher retrieves live pages from the school site when the indexed corpus
// cannot answer a question with enough confidence.
type Fetcher struct {
	client *http.Client
	logger zerolog.Logger
}

// New creates a fetcher with the default timeout.
func New() *Fetcher {
	return NewWithClient(&http.Client{Timeout: defaultTimeout})
}

// NewWithClient creates a fetcher using the given HTTP client.
func NewWithClient(client *http.Client) *Fetcher {
	return &Fetcher{
		client: client,
		logger: util.NewLogger(util.LevelFromEnv("WEBFETCH_LOG_LEVEL")),
	}
}

// GuessURL maps a question to the site page most likely to answer it. The
// first matching keyword wins; unmatched questions go to the home page.
func (f *Fetcher) GuessURL(question string) string {
	lower := strings.ToLower(question)
	for _, page := range keywordPages {
		if strings.Contains(lower, page.keyword) {
			return page.url
		}
	}
	return HomeURL
}

// FetchPageText downloads pageURL and returns the main textual content,
// whitespace-collapsed and truncated to the context budget.
func (f *Fetcher) FetchPageText(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn().Err(err).Str("url", pageURL).Msg("page fetch failed")
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.logger.Warn().Int("status", resp.StatusCode).Str("url", pageURL).Msg("page fetch returned non-OK status")
		return "", fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	doc.Find(nonContentSelector).Remove()

	selection := doc.Find("main").First()
	if selection.Length() == 0 {
		selection = doc.Find("article").First()
	}
	if selection.Length() == 0 {
		selection = doc.Find("body").First()
	}

	text := strings.Join(strings.Fields(selection.Text()), " ")
	if text == "" {
		return "", ErrEmptyPage
	}

	runes := []rune(text)
	if len(runes) > maxPageChars {
		text = string(runes[:maxPageChars])
	}

	f.logger.Debug().Str("url", pageURL).Int("chars", len(text)).Msg("fetched page text")
	return text, nil
}
