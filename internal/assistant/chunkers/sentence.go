package chunkers

import (
	"errors"
	"sort"
	"strings"

	"github.com/esilv-labs/assistant-go/pkg/util"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidChunkSize    = errors.New("chunkSize must be positive")
	ErrInvalidOverlap      = errors.New("overlap must be between 0 and chunkSize")
	ErrInvalidMinChunkSize = errors.New("minChunkSize must not be negative")
)

const (
	// Window, counted back from the candidate end, scanned for the last
	// sentence terminator.
	boundaryWindow = 100

	DefaultChunkSize    = 1000
	DefaultOverlap      = 100
	DefaultMinChunkSize = 150
)

// SentenceChunker splits raw text into overlapping character-window chunks,
// moving each window end back to the nearest preceding sentence boundary so
// chunks do not break mid-sentence.
type SentenceChunker struct {
	chunkSize    int
	overlap      int
	minChunkSize int
	logger       zerolog.Logger
}

// NewSentenceChunker creates a chunker with the given window parameters.
func NewSentenceChunker(chunkSize, overlap, minChunkSize int) (*SentenceChunker, error) {
	logger := util.NewLogger(util.LevelFromEnv("CHUNKER_LOG_LEVEL"))

	if chunkSize <= 0 {
		logger.Warn().Int("chunk_size", chunkSize).Msg("chunkSize must be positive")
		return nil, ErrInvalidChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		logger.Warn().Int("overlap", overlap).Msg("overlap must be between 0 and chunkSize")
		return nil, ErrInvalidOverlap
	}
	if minChunkSize < 0 {
		logger.Warn().Int("min_chunk_size", minChunkSize).Msg("minChunkSize must not be negative")
		return nil, ErrInvalidMinChunkSize
	}

	return &SentenceChunker{
		chunkSize:    chunkSize,
		overlap:      overlap,
		minChunkSize: minChunkSize,
		logger:       logger,
	}, nil
}

// GetChunkingStrategy returns the strategy name used by this chunker.
func (c *SentenceChunker) GetChunkingStrategy() string {
	return "sentence"
}

// Chunk splits text into chunks of at most chunkSize characters (plus the
// overlap carried from the previous chunk), each at least minChunkSize
// characters long. Text shorter than minChunkSize yields no chunks.
func (c *SentenceChunker) Chunk(text string) []string {
	trimmed := strings.TrimSpace(text)
	if len([]rune(trimmed)) < c.minChunkSize {
		return nil
	}

	// Collapse whitespace runs to single spaces before windowing.
	runes := []rune(strings.Join(strings.Fields(trimmed), " "))

	var chunks []string
	start := 0

	for start < len(runes) {
		end := start + c.chunkSize

		if end >= len(runes) {
			chunk := strings.TrimSpace(string(runes[start:]))
			if len([]rune(chunk)) >= c.minChunkSize {
				chunks = append(chunks, chunk)
			}
			break
		}

		// Move the cut back to just after the last sentence terminator in
		// the boundary window, when one exists.
		searchStart := end - boundaryWindow
		if searchStart < start {
			searchStart = start
		}
		if pos := lastSentenceEnd(runes, searchStart, end); pos > start {
			end = pos
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if len([]rune(chunk)) >= c.minChunkSize {
			chunks = append(chunks, chunk)
		}

		// A boundary adjustment can pull end close to start; never move
		// the cursor backwards.
		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// ChunkDocuments chunks every document and returns three parallel slices:
// the originating source id, the chunk text, and the document's ordinal
// within this call. Documents are processed in sorted-key order so ordinals
// are stable for identical input.
func (c *SentenceChunker) ChunkDocuments(documents map[string]string) (sourceIDs, chunkTexts []string, ordinals []int) {
	ids := make([]string, 0, len(documents))
	for id := range documents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for ordinal, id := range ids {
		chunks := c.Chunk(documents[id])
		if len(chunks) == 0 {
			continue
		}

		c.logger.Debug().Str("source_id", id).Int("chunks", len(chunks)).Msg("chunked document")

		for _, chunk := range chunks {
			sourceIDs = append(sourceIDs, id)
			chunkTexts = append(chunkTexts, chunk)
			ordinals = append(ordinals, ordinal)
		}
	}

	return sourceIDs, chunkTexts, ordinals
}

// lastSentenceEnd returns the position just after the last sentence
// terminator followed by a space in runes[from:to), or -1 when none exists.
func lastSentenceEnd(runes []rune, from, to int) int {
	for i := to - 2; i >= from; i-- {
		if isSentenceTerminator(runes[i]) && runes[i+1] == ' ' {
			return i + 2
		}
	}
	return -1
}

func isSentenceTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
