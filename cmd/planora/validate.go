package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/planora/planora/adapters/sqlite"
	"github.com/planora/planora/config"
	"github.com/planora/planora/core/registry"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and entity definitions",
	Long: `Validate the planora configuration and entity definitions.

Checks:
  - YAML syntax is valid
  - Required fields are present
  - Entity definitions build a valid registry
  - Database is writable (optional)

Examples:
  planora validate
  planora validate --config /etc/planora/planora.yaml --check-database`,
	RunE: runValidate,
}

var validateCheckDatabase bool

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateCheckDatabase, "check-database", false, "check if database is writable")
}

func runValidate(cmd *cobra.Command, args []string) error {
	fmt.Printf("Validating %s...\n\n", cfgFile)

	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Printf("  %s Config file exists\n", crossMark)
		return fmt.Errorf("config file not found: %s", cfgFile)
	}
	fmt.Printf("  %s Config file exists\n", checkMark)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Printf("  %s Config syntax valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Printf("  %s Config syntax valid\n", checkMark)

	reg, err := registry.Load(cfg.Entities.Path)
	if err != nil {
		fmt.Printf("  %s Entity definitions valid\n", crossMark)
		return fmt.Errorf("entities error: %w", err)
	}
	fmt.Printf("  %s Entity definitions valid\n", checkMark)

	fmt.Printf("  %s Database: %s\n", checkMark, cfg.Database.Path)
	fmt.Printf("  %s Entities registered: %d\n", checkMark, len(reg.Names()))

	if validateCheckDatabase {
		if err := checkDatabaseWritable(cfg.Database.Path); err != nil {
			fmt.Printf("  %s Database writable\n", crossMark)
			fmt.Printf("      Error: %v\n", err)
		} else {
			fmt.Printf("  %s Database writable\n", checkMark)
		}
	}

	fmt.Println()
	fmt.Println("Configuration is valid.")
	return nil
}

func checkDatabaseWritable(path string) error {
	db, err := sqlite.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Ping()
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)
