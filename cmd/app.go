package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/esilv-labs/assistant-go/internal/assistant/agents"
	"github.com/esilv-labs/assistant-go/internal/assistant/chunkers"
	"github.com/esilv-labs/assistant-go/internal/assistant/compose"
	"github.com/esilv-labs/assistant-go/internal/assistant/config"
	"github.com/esilv-labs/assistant-go/internal/assistant/embedders"
	"github.com/esilv-labs/assistant-go/internal/assistant/extractors"
	"github.com/esilv-labs/assistant-go/internal/assistant/forms"
	"github.com/esilv-labs/assistant-go/internal/assistant/indexstore"
	"github.com/esilv-labs/assistant-go/internal/assistant/interfaces"
	"github.com/esilv-labs/assistant-go/internal/assistant/leads"
	"github.com/esilv-labs/assistant-go/internal/assistant/llm"
	"github.com/esilv-labs/assistant-go/internal/assistant/models"
	"github.com/esilv-labs/assistant-go/internal/assistant/retrieval"
	"github.com/esilv-labs/assistant-go/internal/assistant/sessions"
	"github.com/esilv-labs/assistant-go/internal/assistant/webfetch"
	"github.com/esilv-labs/assistant-go/pkg/db"
	"github.com/esilv-labs/assistant-go/pkg/util"

	"github.com/rs/zerolog"
)

var (
	ErrUnknownEmbeddingProvider = errors.New("unknown embedding provider")
	ErrLeadStoreUnavailable     = errors.New("lead storage is not configured")
)

// unavailableLeads stands in when no database is configured.
type unavailableLeads struct{}

func (unavailableLeads) Add(context.Context, models.Lead) (models.Lead, error) {
	return models.Lead{}, ErrLeadStoreUnavailable
}

// app wires the components every command works with.
type app struct {
	cfg       *config.AppConfig
	stores    map[string]*indexstore.Store
	retriever *retrieval.Retriever
	logger    zerolog.Logger
}

func loadConfig() (*config.AppConfig, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	cfg, _, err := config.LoadDefault()
	return cfg, err
}

func newEmbedder(cfg *config.AppConfig) (interfaces.Embedder, error) {
	switch cfg.Embedder.Provider {
	case "openai":
		return embedders.NewOpenAIEmbedder(cfg.Embedder.Model)
	case "togetherai":
		return embedders.NewTogetherAIEmbedder(cfg.Embedder.Model)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEmbeddingProvider, cfg.Embedder.Provider)
	}
}

// newApp builds the chunker, embedder and stores shared by all commands.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	chunker, err := chunkers.NewSentenceChunker(cfg.Chunking.ChunkSize, cfg.Chunking.Overlap, cfg.Chunking.MinChunkSize)
	if err != nil {
		return nil, fmt.Errorf("creating chunker: %w", err)
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	extractor := extractors.New()

	stores := make(map[string]*indexstore.Store, len(cfg.Stores))
	searchers := make([]retrieval.Searcher, 0, len(cfg.Stores))
	for _, sc := range cfg.Stores {
		store := indexstore.New(sc.Name, sc.Dir, chunker, embedder,
			indexstore.WithBatchSize(cfg.Embedder.BatchSize),
			indexstore.WithExtractor(extractor.ExtractText),
		)
		if store.Exists() {
			if err := store.Load(); err != nil {
				return nil, fmt.Errorf("loading store %s: %w", sc.Name, err)
			}
		}
		stores[sc.Name] = store
		searchers = append(searchers, store)
	}

	retriever, err := retrieval.New(embedder, searchers...)
	if err != nil {
		return nil, fmt.Errorf("creating retriever: %w", err)
	}

	return &app{
		cfg:       cfg,
		stores:    stores,
		retriever: retriever,
		logger:    util.NewLogger(util.LevelFromEnv("ASSISTANT_LOG_LEVEL")),
	}, nil
}

func (a *app) store(name string) (*indexstore.Store, error) {
	store, ok := a.stores[name]
	if !ok {
		return nil, fmt.Errorf("unknown store %q", name)
	}
	return store, nil
}

// newGenerator returns the configured Gemini client, or nil when no API key
// is present; callers degrade to extractive answers.
func (a *app) newGenerator() interfaces.Generator {
	client, err := llm.NewGeminiClient(a.cfg.Generator.Model)
	if err != nil {
		a.logger.Warn().Err(err).Msg("generator unavailable, answers will be extractive")
		return nil
	}
	return client
}

// newComposer assembles the answer pipeline from the loaded config.
func (a *app) newComposer(generator interfaces.Generator) (*compose.Composer, error) {
	var opts []compose.Option
	if a.cfg.Generator.SystemPrompt != "" {
		opts = append(opts, compose.WithSystemPrompt(a.cfg.Generator.SystemPrompt))
	}

	var fetcher interfaces.PageFetcher
	if a.cfg.Retrieval.WebSearchEnabled {
		fetcher = webfetch.New()
	}

	return compose.New(a.retriever, generator, fetcher, opts...)
}

// newRouter assembles the full agent stack used by the chat command. The
// lead store is optional; without a database, submitted forms are refused
// with a readable message.
func (a *app) newRouter(generator interfaces.Generator) (*agents.Router, func(), error) {
	composer, err := a.newComposer(generator)
	if err != nil {
		return nil, nil, err
	}

	registry := sessions.NewRegistry()

	var writer agents.LeadWriter
	cleanup := func() {}
	database, err := db.NewConnection()
	if err != nil {
		a.logger.Warn().Err(err).Msg("lead database unavailable, form submissions will fail")
		writer = unavailableLeads{}
	} else {
		store, err := leads.NewStore(database)
		if err != nil {
			database.Close()
			return nil, nil, fmt.Errorf("creating lead store: %w", err)
		}
		writer = store
		cleanup = func() { database.Close() }
	}

	var extractor forms.Extractor
	if generator != nil {
		extractor = forms.NewLLMExtractor(generator)
	} else {
		extractor = forms.HeuristicExtractor{}
	}

	formTurns := agents.NewFormTurnHandler(registry, extractor, writer)
	router := agents.NewRouter(
		agents.NewClassifier(generator),
		formTurns,
		generator,
		agents.NewContactHandler(registry),
		agents.NewKnowledgeHandler(composer, a.retriever),
	)
	return router, cleanup, nil
}
