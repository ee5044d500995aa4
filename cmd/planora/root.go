package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "planora",
	Short: "Schema-validated persistence engine for resource planning data",
	Long: `Planora is the persistence backend for staffing and resource
planning data. Entities are declared in a YAML file; each one gets a
validated REST endpoint backed by SQLite with optimistic concurrency.

Quick start:
  planora validate   # Check configuration and entity definitions
  planora serve      # Start the API server

Management:
  planora entities    # Inspect the registered entity set
  planora principals  # Manage API principals and tokens`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "planora.yaml", "config file path")
}
