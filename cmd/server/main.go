package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/sustainareview/sustainareview-api/internal/config"
	"github.com/sustainareview/sustainareview-api/pkg/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found")
	}

	// Initialize logger
	logger.Init()

	// Load configuration
	cfg := config.Load()

	if err := newRootCommand(cfg).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(cfg *config.Config) *cobra.Command {
	serve := newServeCommand(cfg)

	// Running without a subcommand starts the server
	root := &cobra.Command{
		Use:          "sustainareview",
		Short:        "SustainaReview product review API",
		SilenceUsage: true,
		RunE:         serve.RunE,
	}
	root.Flags().AddFlagSet(serve.Flags())

	root.AddCommand(
		serve,
		newMigrateCommand(cfg),
		newSeedCommand(cfg),
		newWorkerCommand(cfg),
	)
	return root
}
