package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"clinic-booking/cmd/bootstrap"
	"clinic-booking/config"
	"clinic-booking/internal/infrastructure/database"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "clinic",
		Short:        "Clinic appointment booking API",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("env-file", ".env", "path to the .env file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedAdminCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			app, err := bootstrap.New(cfg)
			if err != nil {
				logrus.Errorf("Failed to initialize application: %v", err)
				return err
			}

			return app.Run()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	for _, direction := range []database.MigrateDirection{database.MigrateUp, database.MigrateDown} {
		short := "Apply pending migrations"
		if direction == database.MigrateDown {
			short = "Roll back the last migration"
		}

		cmd.AddCommand(&cobra.Command{
			Use:   string(direction),
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				bootstrap.SetupLogger(cfg.App.LogLevel)

				return database.RunMigrations(cfg.DB, direction)
			},
		})
	}

	return cmd
}

func seedAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the first ADMIN account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			if email == "" || password == "" {
				return fmt.Errorf("--email and --password are required")
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			app, err := bootstrap.New(cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			admin, err := app.Usecases.Auth.CreateAdmin(ctx, email, password)
			if err != nil {
				return fmt.Errorf("failed to create admin: %w", err)
			}

			logrus.WithFields(logrus.Fields{"user_id": admin.ID, "email": admin.Email}).Info("Admin account created")
			return nil
		},
	}

	cmd.Flags().String("email", "", "admin email")
	cmd.Flags().String("password", "", "admin password")

	return cmd
}
