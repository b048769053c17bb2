package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/sustainareview/sustainareview-api/internal/config"
	"github.com/sustainareview/sustainareview-api/internal/database"
	"github.com/sustainareview/sustainareview-api/internal/utils"
	"github.com/sustainareview/sustainareview-api/pkg/logger"
)

func newMigrateCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := database.Init(cfg.DatabaseDriver, cfg.DatabaseURL, cfg.IsProduction()); err != nil {
				logger.Error("Migration failed: ", err)
				return err
			}
			logger.Info("Database migrated")
			return nil
		},
	}
}

func newSeedCommand(cfg *config.Config) *cobra.Command {
	var adminUsername, adminEmail, adminPassword string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert the default categories and attributes, and optionally an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if adminEmail != "" && !utils.IsValidPassword(adminPassword) {
				return fmt.Errorf("--admin-password must be at least 8 characters")
			}

			db, err := database.Init(cfg.DatabaseDriver, cfg.DatabaseURL, cfg.IsProduction())
			if err != nil {
				logger.Error("Failed to initialize database: ", err)
				return err
			}

			created, err := database.Seed(db)
			if err != nil {
				logger.Error("Seeding failed: ", err)
				return err
			}
			logger.Info("Seed complete, rows created: ", created)

			if adminEmail != "" {
				createdAdmin, err := database.SeedAdmin(db, adminUsername, adminEmail, adminPassword)
				if err != nil {
					logger.Error("Failed to create admin: ", err)
					return err
				}
				if createdAdmin {
					logger.Info("Admin account created for ", adminEmail)
				} else {
					logger.Info("Admin account already exists for ", adminEmail)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&adminUsername, "admin-username", "admin", "username of the seeded admin")
	cmd.Flags().StringVar(&adminEmail, "admin-email", "", "email of an admin account to create")
	cmd.Flags().StringVar(&adminPassword, "admin-password", "", "password of the seeded admin")
	return cmd
}
