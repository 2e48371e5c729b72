package cmd

import (
	"fmt"
	"sort"

	"github.com/esilv-labs/assistant-go/pkg/util"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// statsCmd represents the stats command.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the state of every index store",
	Long: `Stats recomputes each store's figures from its persisted files: chunk
count, distinct document count and embedding dimension.`,
	Run: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(_ *cobra.Command, _ []string) {
	logger := util.NewLogger(zerolog.ErrorLevel)

	a, err := newApp()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize")
	}

	names := make([]string, 0, len(a.stores))
	for name := range a.stores {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		stats := a.stores[name].Stats()
		fmt.Printf("store %q:\n", name)
		if !stats.IndexExists {
			fmt.Println("  no index built")
			continue
		}
		fmt.Printf("  documents: %d\n", stats.DocumentCount)
		fmt.Printf("  chunks:    %d\n", stats.ChunkCount)
		fmt.Printf("  dimension: %d\n", stats.EmbeddingDim)
	}
}
