package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/esilv-labs/assistant-go/internal/assistant/extractors"
	"github.com/esilv-labs/assistant-go/pkg/util"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	rebuildStore   string
	rebuildInput   string
	rebuildTimeout time.Duration
)

// rebuildCmd represents the rebuild command.
var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild an index store from a document corpus",
	Long: `Rebuild archives the current index of a store, then re-chunks,
re-embeds and re-indexes the given corpus from scratch.

The input is either a JSON file mapping source ids (usually URLs) to their
text, or a directory of .txt/.md/.html files.

Examples:
  # Rebuild the scraped store from a crawl dump
  assistant rebuild --store scraped --input data/corpus.json

  # Rebuild the uploads store from a folder of documents
  assistant rebuild --store uploads --input ./documents`,
	Run: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)

	rebuildCmd.Flags().StringVarP(&rebuildStore, "store", "s", "scraped", "Store to rebuild")
	rebuildCmd.Flags().StringVarP(&rebuildInput, "input", "i", "", "Corpus JSON file or document directory (required)")
	rebuildCmd.Flags().DurationVar(&rebuildTimeout, "timeout", 30*time.Minute, "Timeout for the entire operation")

	if err := rebuildCmd.MarkFlagRequired("input"); err != nil {
		return
	}
}

func runRebuild(_ *cobra.Command, _ []string) {
	logger := util.NewLogger(zerolog.ErrorLevel)

	a, err := newApp()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize")
	}

	store, err := a.store(rebuildStore)
	if err != nil {
		logger.Fatal().Err(err).Msg("Unknown store")
	}

	documents, err := loadCorpus(rebuildInput)
	if err != nil {
		logger.Fatal().Err(err).Str("input", rebuildInput).Msg("Failed to load corpus")
	}

	ctx, cancel := context.WithTimeout(context.Background(), rebuildTimeout)
	defer cancel()

	result := store.Rebuild(ctx, documents, printProgress)
	if !result.Success {
		logger.Fatal().Err(result.Err).Msg(result.Message)
	}

	fmt.Println(result.Message)
	fmt.Printf("documents: %d, chunks: %d, dimension: %d\n",
		result.Stats.DocumentCount, result.Stats.ChunkCount, result.Stats.EmbeddingDim)
}

// loadCorpus reads either a JSON map of source id to text, or a directory
// whose files are extracted individually.
func loadCorpus(input string) (map[string]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		data, err := os.ReadFile(input)
		if err != nil {
			return nil, err
		}
		documents := make(map[string]string)
		if err := json.Unmarshal(data, &documents); err != nil {
			return nil, fmt.Errorf("parsing corpus JSON: %w", err)
		}
		return documents, nil
	}

	extractor := extractors.New()
	documents := make(map[string]string)
	err = filepath.WalkDir(input, func(path string, entry os.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}
		text, err := extractor.ExtractText(path)
		if err != nil {
			// Unsupported and empty files are skipped, not fatal.
			return nil
		}
		rel, err := filepath.Rel(input, path)
		if err != nil {
			rel = path
		}
		documents[rel] = text
		return nil
	})
	return documents, err
}

func printProgress(fraction float64, phase, message string) {
	fmt.Printf("[%3.0f%%] %-8s %s\n", fraction*100, phase, message)
}
