package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/esilv-labs/assistant-go/internal/assistant/leads"
	"github.com/esilv-labs/assistant-go/internal/assistant/models"
	"github.com/esilv-labs/assistant-go/pkg/db"
	"github.com/esilv-labs/assistant-go/pkg/util"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var leadsSearch string

// leadsCmd represents the leads command.
var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Manage leads collected by the contact form",
}

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List collected leads",
	Run:   runLeadsList,
}

var leadsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all leads as CSV on stdout",
	Run:   runLeadsExport,
}

var leadsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a lead",
	Args:  cobra.ExactArgs(1),
	Run:   runLeadsDelete,
}

func init() {
	rootCmd.AddCommand(leadsCmd)
	leadsCmd.AddCommand(leadsListCmd, leadsExportCmd, leadsDeleteCmd)

	leadsListCmd.Flags().StringVarP(&leadsSearch, "search", "s", "", "Filter by name or email substring")
}

func openLeadStore(logger zerolog.Logger) (*leads.Store, func()) {
	database, err := db.NewConnection()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	store, err := leads.NewStore(database)
	if err != nil {
		database.Close()
		logger.Fatal().Err(err).Msg("Failed to open lead store")
	}
	return store, func() { database.Close() }
}

func leadsContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func runLeadsList(_ *cobra.Command, _ []string) {
	logger := util.NewLogger(zerolog.ErrorLevel)
	store, closeStore := openLeadStore(logger)
	defer closeStore()

	ctx, cancel := leadsContext()
	defer cancel()

	var (
		found []models.Lead
		err   error
	)
	if leadsSearch != "" {
		found, err = store.Search(ctx, leadsSearch)
	} else {
		found, err = store.List(ctx)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to list leads")
	}

	if len(found) == 0 {
		fmt.Println("no leads")
		return
	}
	for _, lead := range found {
		fmt.Printf("%d\t%s\t%s\t%s\n", lead.ID, lead.Name, lead.Email, lead.CreatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Printf("%d lead(s)\n", len(found))
}

func runLeadsExport(_ *cobra.Command, _ []string) {
	logger := util.NewLogger(zerolog.ErrorLevel)
	store, closeStore := openLeadStore(logger)
	defer closeStore()

	ctx, cancel := leadsContext()
	defer cancel()

	out, err := store.ExportCSV(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to export leads")
	}
	fmt.Print(out)
}

func runLeadsDelete(_ *cobra.Command, args []string) {
	logger := util.NewLogger(zerolog.ErrorLevel)

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		logger.Fatal().Err(err).Msg("Lead id must be an integer")
	}

	store, closeStore := openLeadStore(logger)
	defer closeStore()

	ctx, cancel := leadsContext()
	defer cancel()

	if err := store.Delete(ctx, id); err != nil {
		logger.Fatal().Err(err).Msg("Failed to delete lead")
	}
	fmt.Printf("lead %d deleted\n", id)
}
