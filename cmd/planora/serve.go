package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/planora/planora/bootstrap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the planora API server.

The server will:
  - Load configuration from planora.yaml (or --config)
  - Load entity definitions and build the registry
  - Create any missing tables in the SQLite database
  - Serve one REST resource per entity under /api

Environment variables (for container deployments):
  PLANORA_ENTITIES_PATH    - Entity definitions file
  PLANORA_DATABASE_PATH    - Database path (default: planora.db)
  PLANORA_SERVER_PORT      - Server port (default: 8080)
  PLANORA_AUTH_JWT_SECRET  - JWT signing secret
  PLANORA_LOG_LEVEL        - Log level: debug, info, warn, error

Examples:
  planora serve
  planora serve --config /etc/planora/planora.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(cfgFile); err != nil && os.Getenv("PLANORA_ENTITIES_PATH") == "" {
		fmt.Println("No configuration found.")
		fmt.Println()
		fmt.Printf("Option 1: Create %s (see planora.yaml in the repository)\n", cfgFile)
		fmt.Println("Option 2: Set PLANORA_ENTITIES_PATH and friends")
		return nil
	}

	app, err := bootstrap.New(cfgFile)
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
