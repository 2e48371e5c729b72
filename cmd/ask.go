package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/esilv-labs/assistant-go/pkg/util"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	askK       int
	askSources bool
	askTimeout time.Duration
)

// askCmd represents the ask command.
var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a one-shot question over the indexed corpus",
	Long: `Ask retrieves the most relevant chunks across all stores and composes
an answer. When retrieval confidence is low, a live page from the school
site augments the context; when the generative API is unavailable, the
answer quotes the best chunks directly.

Examples:
  assistant ask "Comment se passent les admissions ?"
  assistant ask --k 8 --sources "Quelles majeures sont proposees ?"`,
	Args: cobra.MinimumNArgs(1),
	Run:  runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().IntVarP(&askK, "k", "k", 5, "Number of chunks to retrieve")
	askCmd.Flags().BoolVar(&askSources, "sources", false, "Print the retrieved sources and scores")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 2*time.Minute, "Timeout for the entire operation")
}

func runAsk(_ *cobra.Command, args []string) {
	logger := util.NewLogger(zerolog.ErrorLevel)

	a, err := newApp()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize")
	}

	composer, err := a.newComposer(a.newGenerator())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build composer")
	}

	question := strings.Join(args, " ")
	ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
	defer cancel()

	first := true
	answer, err := composer.AnswerStream(ctx, question, askK, func(fragment string) {
		fmt.Print(fragment)
		first = false
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to answer")
	}
	if first {
		fmt.Print(answer.Text)
	}
	fmt.Println()

	if answer.WebFallback {
		fmt.Printf("\n(complement recupere depuis %s)\n", answer.FallbackURL)
	}

	if askSources {
		fmt.Println("\nSources:")
		for i, chunk := range answer.Chunks {
			fmt.Printf("%d. [%s] %s (score %.4f)\n", i+1, chunk.Store, chunk.SourceID, chunk.Score)
		}
	}
}
