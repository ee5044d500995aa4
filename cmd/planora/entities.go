package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/planora/planora/adapters/sqlite"
	"github.com/planora/planora/config"
	"github.com/planora/planora/core/registry"
)

var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "Inspect the registered entity set",
	Long: `Inspect the entity definitions the server would load.

Examples:
  planora entities list
  planora entities show project
  planora entities sql`,
}

var entitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered entities",
	RunE:  runEntitiesList,
}

var entitiesShowCmd = &cobra.Command{
	Use:   "show <entity>",
	Short: "Show one entity's columns and key layout",
	Args:  cobra.ExactArgs(1),
	RunE:  runEntitiesShow,
}

var entitiesSQLCmd = &cobra.Command{
	Use:   "sql",
	Short: "Print the CREATE TABLE statements for all entities",
	RunE:  runEntitiesSQL,
}

func init() {
	rootCmd.AddCommand(entitiesCmd)
	entitiesCmd.AddCommand(entitiesListCmd)
	entitiesCmd.AddCommand(entitiesShowCmd)
	entitiesCmd.AddCommand(entitiesSQLCmd)
}

func loadRegistry() (*registry.Registry, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, err
	}
	return registry.Load(cfg.Entities.Path)
}

func runEntitiesList(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENTITY\tTABLE\tCOLUMNS\tKEY\tRESTRICTED")
	for _, desc := range reg.Descriptors() {
		key := "id"
		if !desc.HasSurrogateID() {
			key = strings.Join(desc.ConflictKeys, "+")
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%v\n",
			desc.Name, desc.Table, len(desc.Columns), key, desc.Restricted)
	}
	return w.Flush()
}

func runEntitiesShow(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	desc, ok := reg.Resolve(args[0])
	if !ok {
		return fmt.Errorf("unknown entity %q", args[0])
	}

	fmt.Printf("Entity:     %s\n", desc.Name)
	fmt.Printf("Table:      %s\n", desc.Table)
	fmt.Printf("Restricted: %v\n", desc.Restricted)
	if desc.HasSurrogateID() {
		fmt.Println("Key:        surrogate id + version")
	} else {
		fmt.Printf("Key:        %s\n", strings.Join(desc.ConflictKeys, " + "))
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COLUMN\tEXTERNAL\tTYPE\tDATE")
	for _, col := range desc.Columns {
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", col.Name, col.External, col.SQLType, col.Date)
	}
	return w.Flush()
}

func runEntitiesSQL(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	for _, desc := range reg.Descriptors() {
		fmt.Println(sqlite.BuildCreateTableSQL(desc) + ";")
		fmt.Println()
	}
	return nil
}
