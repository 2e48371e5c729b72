package compose

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/esilv-labs/assistant-go/internal/assistant/interfaces"
	"github.com/esilv-labs/assistant-go/internal/assistant/models"
	"github.com/esilv-labs/assistant-go/internal/assistant/retrieval"
	"github.com/esilv-labs/assistant-go/pkg/util"

	"github.com/rs/zerolog"
	"github.com/tiktoken-go/tokenizer"
)

// ErrNoGenerator marks a composer running without a generative backend; the
// extractive fallback covers it.
var ErrNoGenerator = errors.New("no generator configured")

// SystemPrompt frames every generated answer. Overridable via config.
const SystemPrompt = "Tu es un assistant pour l'ecole d'ingenieurs ESILV. " +
	"Reponds aux questions en utilisant le contexte fourni. " +
	"Reponds toujours en francais et de maniere claire et concise."

const (
	// maxPromptTokens bounds the assembled prompt; excess context extracts
	// are dropped from the tail rather than truncated mid-extract.
	maxPromptTokens = 6000

	// extractiveSnippets is how many chunks the no-LLM fallback quotes.
	extractiveSnippets = 3

	extractSeparator = "\n\n---\n\n"
)

// Answer is a composed reply plus the evidence behind it.
type Answer struct {
	Text string
	// Extractive is set when the generator was unavailable and the text is
	// quoted chunks rather than a generated reply.
	Extractive bool
	// WebFallback is set when a live page was scraped into the context.
	WebFallback bool
	FallbackURL string
	Chunks      []models.RetrievalResult
}

// promptContext carries the assembled prompt and its evidence through the
// answer strategies.
type promptContext struct {
	prompt string
	chunks []models.RetrievalResult
}

// answerStrategy is one way of producing answer text. Strategies are tried
// in order until one succeeds; the last one never fails.
type answerStrategy struct {
	name       string
	extractive bool
	run        func(ctx context.Context, p *promptContext, emit func(string)) (string, error)
}

// Composer turns retrieved chunks into a final answer. When retrieval
// confidence is low it augments the context with a live page, and when the
// generator fails it degrades to quoting the chunks directly.
type Composer struct {
	retriever *retrieval.Retriever
	generator interfaces.Generator
	fetcher   interfaces.PageFetcher

	webSearchEnabled bool
	systemPrompt     string
	strategies       []answerStrategy

	codec  tokenizer.Codec
	logger zerolog.Logger
}

// Option configures a Composer.
type Option func(*Composer)

// WithoutWebSearch disables the live-page fallback.
func WithoutWebSearch() Option {
	return func(c *Composer) { c.webSearchEnabled = false }
}

// WithSystemPrompt overrides the default answer framing.
func WithSystemPrompt(prompt string) Option {
	return func(c *Composer) {
		if prompt != "" {
			c.systemPrompt = prompt
		}
	}
}

// New creates a composer. fetcher may be nil, which disables the live-page
// fallback regardless of options.
func New(retriever *retrieval.Retriever, generator interfaces.Generator, fetcher interfaces.PageFetcher, opts ...Option) (*Composer, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer: %w", err)
	}

	c := &Composer{
		retriever:        retriever,
		generator:        generator,
		fetcher:          fetcher,
		webSearchEnabled: fetcher != nil,
		systemPrompt:     SystemPrompt,
		codec:            codec,
		logger:           util.NewLogger(util.LevelFromEnv("COMPOSE_LOG_LEVEL")),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fetcher == nil {
		c.webSearchEnabled = false
	}

	c.strategies = []answerStrategy{
		{name: "generated", run: c.generate},
		{name: "extractive", extractive: true, run: c.extractive},
	}
	return c, nil
}

// Answer composes a reply to the question from the k best chunks. It never
// returns an error for generator failures; the fallback chain always yields
// usable text. Only retrieval failure is an error.
func (c *Composer) Answer(ctx context.Context, question string, k int) (*Answer, error) {
	return c.answer(ctx, question, k, nil)
}

// AnswerStream behaves like Answer but forwards generated fragments to emit
// as they arrive. Fallback text is emitted as a single fragment.
func (c *Composer) AnswerStream(ctx context.Context, question string, k int, emit func(fragment string)) (*Answer, error) {
	if emit == nil {
		return c.answer(ctx, question, k, nil)
	}
	return c.answer(ctx, question, k, emit)
}

func (c *Composer) answer(ctx context.Context, question string, k int, emit func(string)) (*Answer, error) {
	chunks, err := c.retriever.Retrieve(ctx, question, k)
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}

	answer := &Answer{Chunks: chunks}

	confident := c.retriever.HasRelevantDocs(chunks)
	var webContext string
	if !confident && c.webSearchEnabled {
		webContext, answer.FallbackURL = c.fetchWebContext(ctx, question)
		answer.WebFallback = webContext != ""
	}

	p := &promptContext{
		prompt: c.buildPrompt(question, chunks, webContext),
		chunks: chunks,
	}

	for _, strategy := range c.strategies {
		text, err := strategy.run(ctx, p, emit)
		if err != nil {
			c.logger.Warn().Err(err).Str("strategy", strategy.name).Msg("answer strategy failed, trying next")
			continue
		}
		answer.Text = text
		answer.Extractive = strategy.extractive
		return answer, nil
	}

	// Unreachable: the extractive strategy never fails.
	return answer, nil
}

func (c *Composer) generate(ctx context.Context, p *promptContext, emit func(string)) (string, error) {
	if c.generator == nil {
		return "", ErrNoGenerator
	}
	if emit != nil {
		if streamer, ok := c.generator.(interfaces.StreamingGenerator); ok {
			return streamer.GenerateStream(ctx, p.prompt, emit)
		}
	}
	text, err := c.generator.Generate(ctx, p.prompt)
	if err == nil && emit != nil {
		emit(text)
	}
	return text, err
}

func (c *Composer) extractive(_ context.Context, p *promptContext, emit func(string)) (string, error) {
	text := c.extractiveAnswer(p.chunks)
	if emit != nil {
		emit(text)
	}
	return text, nil
}

// fetchWebContext scrapes the best-guess page for the question. Failures
// are logged and swallowed; the caller continues without the extra context.
func (c *Composer) fetchWebContext(ctx context.Context, question string) (block, url string) {
	url = c.fetcher.GuessURL(question)
	c.logger.Info().Str("url", url).Msg("retrieval confidence low, fetching live page")

	text, err := c.fetcher.FetchPageText(ctx, url)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", url).Msg("live page fetch failed")
		return "", ""
	}
	return fmt.Sprintf("\n\n[Contenu scrape depuis %s]\n%s", url, text), url
}

// buildPrompt assembles the generation prompt, numbering each extract and
// keeping the whole thing under the token budget.
func (c *Composer) buildPrompt(question string, chunks []models.RetrievalResult, webContext string) string {
	fixed := c.systemPrompt + webContext + question
	budget := maxPromptTokens - c.countTokens(fixed)

	var parts []string
	for i, chunk := range chunks {
		extract := fmt.Sprintf("[Extrait %d]\n%s", i+1, chunk.Text)
		cost := c.countTokens(extract + extractSeparator)
		if cost > budget {
			c.logger.Debug().Int("kept_extracts", len(parts)).Msg("dropping extracts over the token budget")
			break
		}
		budget -= cost
		parts = append(parts, extract)
	}

	context := strings.Join(parts, extractSeparator)
	return fmt.Sprintf(
		"%s\n\nContexte (extraits pertinents):%s%s\n\nQuestion: %s\n\n"+
			"Reponds de facon claire et concise en te basant sur les extraits fournis. "+
			"Si l'information n'est pas dans les extraits, dis-le clairement.",
		c.systemPrompt, context, webContext, question,
	)
}

func (c *Composer) countTokens(text string) int {
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		// Rough upper bound so budgeting still works.
		return len(text) / 2
	}
	return len(ids)
}

// extractiveAnswer quotes the top chunks verbatim. It never fails: with no
// chunks at all it says so.
func (c *Composer) extractiveAnswer(chunks []models.RetrievalResult) string {
	if len(chunks) == 0 {
		return "Aucun extrait pertinent trouve."
	}

	n := len(chunks)
	if n > extractiveSnippets {
		n = extractiveSnippets
	}

	var b strings.Builder
	b.WriteString("Voici les extraits les plus pertinents trouves pour votre question:\n\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%d. %s", i+1, chunks[i].Text)
		if i < n-1 {
			b.WriteString("\n\n")
		}
	}
	b.WriteString("\n\nReponse generee sans IA. Consultez les sources pour plus de details.")
	return b.String()
}
