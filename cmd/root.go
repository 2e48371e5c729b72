package cmd

import (
	"github.com/esilv-labs/assistant-go/pkg/util"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "assistant",
	Short: "A CLI for the school question-answering assistant",
	Long: `assistant manages the retrieval indexes of the school assistant and
answers questions over them: rebuild and extend the indexes, ask one-shot
questions, chat with intent routing and contact forms, and manage leads.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger := util.NewLogger(zerolog.ErrorLevel)
		logger.Fatal().Err(err)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML config file")
}

func initConfig() {
	logger := util.NewLogger(zerolog.ErrorLevel)
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("No .env file found, using process environment")
	}
}
