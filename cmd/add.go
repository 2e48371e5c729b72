package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/esilv-labs/assistant-go/pkg/util"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	addStore   string
	addName    string
	addTimeout time.Duration
)

// addCmd represents the add command.
var addCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Add one document to an existing index store",
	Long: `Add extracts, chunks and embeds a single document and appends it to a
store without rebuilding the rest of the index. The store must already have
an index; run rebuild first.

Examples:
  assistant add brochure.html --store uploads
  assistant add notes.md --store uploads --name "notes de visite"`,
	Args: cobra.ExactArgs(1),
	Run:  runAdd,
}

func init() {
	rootCmd.AddCommand(addCmd)

	addCmd.Flags().StringVarP(&addStore, "store", "s", "uploads", "Store to append to")
	addCmd.Flags().StringVarP(&addName, "name", "n", "", "Source name recorded for the document (defaults to the file name)")
	addCmd.Flags().DurationVar(&addTimeout, "timeout", 5*time.Minute, "Timeout for the entire operation")
}

func runAdd(_ *cobra.Command, args []string) {
	logger := util.NewLogger(zerolog.ErrorLevel)

	a, err := newApp()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize")
	}

	store, err := a.store(addStore)
	if err != nil {
		logger.Fatal().Err(err).Msg("Unknown store")
	}

	path := args[0]
	name := addName
	if name == "" {
		name = filepath.Base(path)
	}

	ctx, cancel := context.WithTimeout(context.Background(), addTimeout)
	defer cancel()

	result := store.AddIncremental(ctx, path, name, printProgress)
	if !result.Success {
		logger.Fatal().Err(result.Err).Msg(result.Message)
	}

	fmt.Println(result.Message)
	fmt.Printf("documents: %d, chunks: %d\n", result.Stats.DocumentCount, result.Stats.ChunkCount)
}
