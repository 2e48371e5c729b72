package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/esilv-labs/assistant-go/internal/assistant/interfaces"
	"github.com/esilv-labs/assistant-go/pkg/util"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var chatK int

// chatCmd represents the chat command.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant",
	Long: `Chat starts an interactive session. Each turn is routed by intent:
questions go to the indexed corpus, contact requests open a form that is
collected over the following turns and stored as a lead on submission.

Type 'q', 'quit' or 'exit' to leave.`,
	Run: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().IntVarP(&chatK, "k", "k", 5, "Number of chunks to retrieve per question")
}

func runChat(_ *cobra.Command, _ []string) {
	logger := util.NewLogger(zerolog.ErrorLevel)

	a, err := newApp()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize")
	}

	router, cleanup, err := a.newRouter(a.newGenerator())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build router")
	}
	defer cleanup()

	conversationID := uuid.NewString()
	fmt.Println("Assistant ESILV. Posez votre question ('q' pour quitter).")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if query == "q" || query == "quit" || query == "exit" {
			fmt.Println("Au revoir !")
			break
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		req := &interfaces.Request{
			ConversationID: conversationID,
			Query:          query,
			K:              chatK,
		}

		resp := router.RouteStream(ctx, req, func(fragment string) {
			fmt.Print(fragment)
		})
		cancel()
		fmt.Println()

		if resp.FormSubmitted {
			fmt.Println("(formulaire transmis)")
		}
		if len(resp.Chunks) > 0 {
			fmt.Printf("(%d extraits consultes)\n", len(resp.Chunks))
		}
	}
}
