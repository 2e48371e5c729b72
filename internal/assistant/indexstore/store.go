package indexstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/esilv-labs/assistant-go/internal/assistant/chunkers"
	"github.com/esilv-labs/assistant-go/internal/assistant/interfaces"
	"github.com/esilv-labs/assistant-go/internal/assistant/models"
	"github.com/esilv-labs/assistant-go/internal/assistant/vectorindex"
	"github.com/esilv-labs/assistant-go/pkg/util"

	"github.com/rs/zerolog"
)

const (
	indexFileName   = "index.bin"
	mappingFileName = "mapping.json"

	DefaultBatchSize = 64
)

// Mapping is the metadata companion of the vector index: three parallel
// arrays where position i describes vector i.
type Mapping struct {
	SourceIDs      []string `json:"source_ids"`
	ChunkTexts     []string `json:"chunk_texts"`
	SourceOrdinals []int    `json:"source_ordinals"`
}

// Len returns the number of entries, or -1 when the arrays are misaligned.
func (m *Mapping) Len() int {
	if len(m.SourceIDs) != len(m.ChunkTexts) || len(m.ChunkTexts) != len(m.SourceOrdinals) {
		return -1
	}
	return len(m.ChunkTexts)
}

// Stats describes the persisted state of a store.
type Stats struct {
	IndexExists   bool `json:"index_exists"`
	MappingExists bool `json:"mapping_exists"`
	DocumentCount int  `json:"document_count"`
	ChunkCount    int  `json:"chunk_count"`
	EmbeddingDim  int  `json:"embedding_dim"`
}

// OpStats summarizes one build or append operation.
type OpStats struct {
	DocumentCount int       `json:"document_count"`
	ChunkCount    int       `json:"chunk_count"`
	ChunksAdded   int       `json:"chunks_added"`
	EmbeddingDim  int       `json:"embedding_dim"`
	IndexedAt     time.Time `json:"indexed_at"`
}

// Result reports the outcome of an indexing operation. Indexing errors are
// carried here rather than raised, so batch callers can report partial
// success; Err remains available for errors.Is checks.
type Result struct {
	Success bool
	Message string
	Stats   OpStats
	Err     error
}

// ExtractFunc turns a file path into plain text.
type ExtractFunc func(path string) (string, error)

// Store owns one (vector index, metadata) pair persisted under dir. Writers
// are serialized; readers see the last loaded snapshot.
type Store struct {
	name     string
	dir      string
	chunker  *chunkers.SentenceChunker
	embedder interfaces.Embedder
	extract  ExtractFunc

	batchSize int
	logger    zerolog.Logger

	writeMu sync.Mutex

	stateMu sync.RWMutex
	index   *vectorindex.Flat
	mapping *Mapping
}

// Option configures a Store.
type Option func(*Store)

// WithBatchSize bounds how many chunks are embedded per request.
func WithBatchSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithExtractor sets the text-extraction collaborator used by AddIncremental.
func WithExtractor(fn ExtractFunc) Option {
	return func(s *Store) {
		s.extract = fn
	}
}

// New creates a store named name persisting under dir.
func New(name, dir string, chunker *chunkers.SentenceChunker, embedder interfaces.Embedder, opts ...Option) *Store {
	s := &Store{
		name:      name,
		dir:       dir,
		chunker:   chunker,
		embedder:  embedder,
		batchSize: DefaultBatchSize,
		logger:    util.NewLogger(util.LevelFromEnv("INDEX_LOG_LEVEL")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the store tag attached to retrieval results.
func (s *Store) Name() string {
	return s.name
}

func (s *Store) indexPath() string {
	return filepath.Join(s.dir, indexFileName)
}

func (s *Store) mappingPath() string {
	return filepath.Join(s.dir, mappingFileName)
}

// Exists reports whether both persisted artifacts are present.
func (s *Store) Exists() bool {
	return fileExists(s.indexPath()) && fileExists(s.mappingPath())
}

// Load reads the persisted artifacts into memory. Missing artifacts return
// ErrNoIndex; misaligned artifacts return ErrCorruptStore.
func (s *Store) Load() error {
	if !s.Exists() {
		return ErrNoIndex
	}

	index, err := vectorindex.ReadFile(s.indexPath())
	if err != nil {
		return fmt.Errorf("reading vector index: %w", err)
	}

	mapping, err := readMapping(s.mappingPath())
	if err != nil {
		return fmt.Errorf("reading mapping: %w", err)
	}

	if mapping.Len() != index.Len() {
		s.logger.Error().
			Str("store", s.name).
			Int("mapping_len", mapping.Len()).
			Int("index_len", index.Len()).
			Msg("index and mapping are misaligned")
		return ErrCorruptStore
	}

	s.stateMu.Lock()
	s.index = index
	s.mapping = mapping
	s.stateMu.Unlock()

	s.logger.Info().Str("store", s.name).Int("chunks", index.Len()).Msg("index loaded")
	return nil
}

// Rebuild archives any prior state, then chunks, embeds and indexes the
// given documents from scratch.
func (s *Store) Rebuild(ctx context.Context, documents map[string]string, progress interfaces.ProgressFunc) Result {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return s.fail("creating store directory", err)
	}

	if len(documents) == 0 {
		return s.fail("no documents found to index", ErrEmptyInput)
	}

	report(progress, 0.0, "archive", "Archiving old index...")
	if archived, err := s.archive(); err != nil {
		// Archiving is best-effort; a failed copy never aborts the rebuild.
		s.logger.Warn().Err(err).Str("store", s.name).Msg("failed to archive old index")
	} else if archived != "" {
		s.logger.Info().Str("store", s.name).Str("archive", archived).Msg("archived old index")
	}

	report(progress, 0.1, "chunk", fmt.Sprintf("Chunking %d documents...", len(documents)))
	sourceIDs, chunkTexts, ordinals := s.chunker.ChunkDocuments(documents)
	if len(chunkTexts) == 0 {
		return s.fail("no chunks created from documents", ErrEmptyInput)
	}

	vectors, err := s.embedBatches(ctx, chunkTexts, progress, 0.2, 0.8)
	if err != nil {
		return s.fail("generating embeddings", err)
	}

	report(progress, 0.85, "index", "Building vector index...")
	index, err := vectorindex.NewFlat(len(vectors[0]))
	if err != nil {
		return s.fail("building vector index", err)
	}
	if err := index.Add(vectors); err != nil {
		return s.fail("building vector index", err)
	}

	mapping := &Mapping{
		SourceIDs:      sourceIDs,
		ChunkTexts:     chunkTexts,
		SourceOrdinals: ordinals,
	}

	report(progress, 0.9, "persist", "Saving index files...")
	if err := s.persist(index, mapping); err != nil {
		return s.fail("saving index files", err)
	}

	s.stateMu.Lock()
	s.index = index
	s.mapping = mapping
	s.stateMu.Unlock()

	report(progress, 1.0, "done", "Index rebuilt")

	stats := OpStats{
		DocumentCount: len(documents),
		ChunkCount:    len(chunkTexts),
		ChunksAdded:   len(chunkTexts),
		EmbeddingDim:  index.Dimension(),
		IndexedAt:     time.Now(),
	}
	msg := fmt.Sprintf("Index rebuilt successfully with %d chunks from %d documents", stats.ChunkCount, stats.DocumentCount)
	s.logger.Info().Str("store", s.name).Int("chunks", stats.ChunkCount).Msg("index rebuilt")
	return Result{Success: true, Message: msg, Stats: stats}
}

// AddIncremental appends one document to an existing index without
// disturbing prior entries.
func (s *Store) AddIncremental(ctx context.Context, documentPath, documentName string, progress interfaces.ProgressFunc) Result {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.extract == nil {
		return s.fail("no text extractor configured", ErrNoIndex)
	}

	// The live snapshot is required; fall back to the persisted one.
	s.stateMu.RLock()
	loaded := s.index != nil
	s.stateMu.RUnlock()
	if !loaded {
		if err := s.Load(); err != nil {
			return s.fail("index does not exist, rebuild it first", err)
		}
	}

	report(progress, 0.0, "extract", fmt.Sprintf("Extracting text from %s...", documentName))
	text, err := s.extract(documentPath)
	if err != nil {
		return s.fail("extracting document text", err)
	}

	report(progress, 0.1, "chunk", "Chunking document...")
	chunks := s.chunker.Chunk(text)
	if len(chunks) == 0 {
		return s.fail(fmt.Sprintf("document %s is too short to index", documentName), ErrDocumentTooShort)
	}

	vectors, err := s.embedBatches(ctx, chunks, progress, 0.2, 0.8)
	if err != nil {
		return s.fail("generating embeddings", err)
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	nextOrdinal := 0
	for _, ord := range s.mapping.SourceOrdinals {
		if ord >= nextOrdinal {
			nextOrdinal = ord + 1
		}
	}

	report(progress, 0.85, "index", "Appending to vector index...")
	if err := s.index.Add(vectors); err != nil {
		return s.fail("appending vectors", err)
	}

	for _, chunk := range chunks {
		s.mapping.SourceIDs = append(s.mapping.SourceIDs, documentName)
		s.mapping.ChunkTexts = append(s.mapping.ChunkTexts, chunk)
		s.mapping.SourceOrdinals = append(s.mapping.SourceOrdinals, nextOrdinal)
	}

	report(progress, 0.9, "persist", "Saving index files...")
	if err := s.persist(s.index, s.mapping); err != nil {
		return s.fail("saving index files", err)
	}

	report(progress, 1.0, "done", "Document indexed")

	stats := OpStats{
		DocumentCount: distinctOrdinals(s.mapping.SourceOrdinals),
		ChunkCount:    len(s.mapping.ChunkTexts),
		ChunksAdded:   len(chunks),
		EmbeddingDim:  s.index.Dimension(),
		IndexedAt:     time.Now(),
	}
	msg := fmt.Sprintf("Added %d chunks from %s", stats.ChunksAdded, documentName)
	s.logger.Info().Str("store", s.name).Str("document", documentName).Int("chunks_added", stats.ChunksAdded).Msg("incremental add")
	return Result{Success: true, Message: msg, Stats: stats}
}

// Search returns the k best chunks for the query embedding. A store with no
// built index yields no results rather than an error.
func (s *Store) Search(query []float32, k int) ([]models.RetrievalResult, error) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	if s.index == nil || s.mapping == nil {
		return nil, nil
	}

	ids, scores, err := s.index.Search(query, k)
	if err != nil {
		return nil, err
	}

	results := make([]models.RetrievalResult, 0, len(ids))
	for i, id := range ids {
		results = append(results, models.RetrievalResult{
			Text:     s.mapping.ChunkTexts[id],
			SourceID: s.mapping.SourceIDs[id],
			Score:    scores[i],
			Store:    s.name,
			ChunkID:  id,
		})
	}
	return results, nil
}

// Stats recomputes store statistics from the persisted artifacts. The
// document count is the cardinality of the distinct source-ordinal set,
// never a cached counter.
func (s *Store) Stats() Stats {
	stats := Stats{
		IndexExists:   fileExists(s.indexPath()),
		MappingExists: fileExists(s.mappingPath()),
	}

	if stats.MappingExists {
		if mapping, err := readMapping(s.mappingPath()); err == nil {
			stats.ChunkCount = len(mapping.ChunkTexts)
			stats.DocumentCount = distinctOrdinals(mapping.SourceOrdinals)
		} else {
			s.logger.Warn().Err(err).Str("store", s.name).Msg("failed to read mapping for stats")
		}
	}

	if stats.IndexExists {
		if dim, _, err := vectorindex.ReadHeader(s.indexPath()); err == nil {
			stats.EmbeddingDim = dim
		} else {
			s.logger.Warn().Err(err).Str("store", s.name).Msg("failed to read index header for stats")
		}
	}

	return stats
}

// embedBatches embeds texts in fixed-size batches, reporting progress over
// [from, to].
func (s *Store) embedBatches(ctx context.Context, texts []string, progress interfaces.ProgressFunc, from, to float64) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += s.batchSize {
		end := i + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		frac := from + (to-from)*float64(i)/float64(len(texts))
		report(progress, frac, "embed", fmt.Sprintf("Generating embeddings for chunks %d-%d of %d...", i+1, end, len(texts)))

		batch, err := s.embedder.EmbedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// archive copies the current artifacts into a timestamped folder. Returns
// the archive path, or "" when there was nothing to archive.
func (s *Store) archive() (string, error) {
	var existing []string
	for _, path := range []string{s.indexPath(), s.mappingPath()} {
		if fileExists(path) {
			existing = append(existing, path)
		}
	}
	if len(existing) == 0 {
		return "", nil
	}

	folder := filepath.Join(s.dir, "archive_"+time.Now().Format("20060102_150405"))
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", err
	}

	for _, path := range existing {
		if err := copyFile(path, filepath.Join(folder, filepath.Base(path))); err != nil {
			return "", err
		}
	}
	return folder, nil
}

// persist writes both artifacts, each with temp-file-then-rename. The
// mapping write always follows a successful index write so the pair cannot
// end up with a fresh index and stale metadata.
func (s *Store) persist(index *vectorindex.Flat, mapping *Mapping) error {
	if err := index.WriteFile(s.indexPath()); err != nil {
		return fmt.Errorf("writing vector index: %w", err)
	}
	if err := writeMapping(s.mappingPath(), mapping); err != nil {
		return fmt.Errorf("writing mapping: %w", err)
	}
	return nil
}

func (s *Store) fail(message string, err error) Result {
	s.logger.Error().Err(err).Str("store", s.name).Msg(message)
	if err != nil {
		message = fmt.Sprintf("%s: %v", message, err)
	}
	return Result{Success: false, Message: message, Err: err}
}

// report invokes the progress sink, shielding the operation from a
// misbehaving callback.
func report(progress interfaces.ProgressFunc, fraction float64, phase, message string) {
	if progress == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	progress(fraction, phase, message)
}

func readMapping(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var mapping Mapping
	if err := json.Unmarshal(data, &mapping); err != nil {
		return nil, err
	}
	if mapping.Len() < 0 {
		return nil, ErrCorruptStore
	}
	return &mapping, nil
}

func writeMapping(path string, mapping *Mapping) error {
	data, err := json.MarshalIndent(mapping, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func distinctOrdinals(ordinals []int) int {
	seen := make(map[int]struct{}, len(ordinals))
	for _, ord := range ordinals {
		seen[ord] = struct{}{}
	}
	return len(seen)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
