// Package main provides the main entry point for the Tally counter service
//
// @title Tally API
// @version 1.0
// @description Persisted counter service.
// @BasePath /
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/amirphl/tally/config"
	"github.com/amirphl/tally/migrations"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatalf("tally: %v", err)
	}
}

// newRootCommand builds the CLI. Running it without a subcommand serves HTTP.
func newRootCommand() *cobra.Command {
	var envFile string

	loadConfig := func() (*config.ProductionConfig, error) {
		return config.LoadProductionConfigFrom(envFile)
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the counter over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			closer := config.SetupLogging(cfg.Logging)
			defer closer.Close()
			return migrations.ApplyDSN(cmd.Context(), cfg.Database.DSN())
		},
	}

	rootCmd := &cobra.Command{
		Use:           "tally",
		Short:         "Tally persisted counter service",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          serveCmd.RunE,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", config.DefaultEnvFile, "dotenv file loaded before reading the environment")
	rootCmd.AddCommand(serveCmd, migrateCmd)

	return rootCmd
}

// runServer serves until SIGINT or SIGTERM, then shuts down gracefully
func runServer(parent context.Context, cfg *config.ProductionConfig) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	closer := config.SetupLogging(cfg.Logging)
	defer closer.Close()

	log.Println("Starting Tally application...")

	app, err := initializeApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.close()

	app.router.SetupRoutes()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- app.router.Start(cfg.Server.Address())
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	log.Println("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := app.router.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
	return nil
}
