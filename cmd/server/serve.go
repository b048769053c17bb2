package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/sustainareview/sustainareview-api/internal/api/routes"
	"github.com/sustainareview/sustainareview-api/internal/config"
	"github.com/sustainareview/sustainareview-api/internal/database"
	"github.com/sustainareview/sustainareview-api/internal/services"
	"github.com/sustainareview/sustainareview-api/pkg/logger"
	"github.com/sustainareview/sustainareview-api/pkg/rabbitmq"
)

func newServeCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.Port, "port", cfg.Port, "port to listen on")
	return cmd
}

func runServer(cfg *config.Config) error {
	// Initialize database
	db, err := database.Init(cfg.DatabaseDriver, cfg.DatabaseURL, cfg.IsProduction())
	if err != nil {
		logger.Error("Failed to initialize database: ", err)
		return err
	}

	storage, err := services.NewPhotoStorage(cfg)
	if err != nil {
		logger.Error("Failed to initialize photo storage: ", err)
		return err
	}

	deps := routes.Dependencies{
		DB:      db,
		Storage: storage,
		Mailer:  services.NewEmailService(cfg),
	}

	if cfg.AbstractEmailAPIKey != "" {
		deps.EmailChecker = services.NewValidationService(cfg.AbstractEmailAPIKey)
	}

	// Redis and RabbitMQ are optional; the API runs without them
	if cfg.RedisURL != "" {
		cache, err := services.NewRedisCatalogCache(cfg.RedisURL, cfg.CatalogCacheTTL)
		if err != nil {
			logger.Warn("Catalog cache disabled: ", err)
		} else {
			defer cache.Close()
			deps.Cache = cache
			logger.Info("Catalog cache connected")
		}
	}

	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			logger.Warn("Event publishing disabled: ", err)
		} else {
			defer mqClient.Close()
			deps.Publisher = mqClient
		}
	}

	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	router := gin.New()
	routes.SetupRoutes(router, cfg, deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting on port " + cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Failed to start server: ", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
