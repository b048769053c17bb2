package main

import (
	"github.com/spf13/cobra"
	"github.com/sustainareview/sustainareview-api/internal/config"
	"github.com/sustainareview/sustainareview-api/internal/database"
	"github.com/sustainareview/sustainareview-api/internal/services"
	"github.com/sustainareview/sustainareview-api/pkg/logger"
	"github.com/sustainareview/sustainareview-api/pkg/rabbitmq"
)

func newWorkerCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume review events and send moderation emails",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL, cfg.IsProduction())
			if err != nil {
				logger.Error("Failed to initialize database: ", err)
				return err
			}

			mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
			if err != nil {
				logger.Error("Failed to connect to RabbitMQ: ", err)
				return err
			}
			defer mqClient.Close()

			notifier := services.NewModerationNotifier(db, services.NewEmailService(cfg))
			return mqClient.ConsumeReviewEvents(notifier.HandleEvent)
		},
	}
}
