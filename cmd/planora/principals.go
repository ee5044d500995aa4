package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/planora/planora/adapters/clock"
	"github.com/planora/planora/adapters/hasher"
	"github.com/planora/planora/adapters/idgen"
	"github.com/planora/planora/adapters/sqlite"
	"github.com/planora/planora/config"
	"github.com/planora/planora/domain/principal"
	"github.com/planora/planora/ports"
)

var principalsCmd = &cobra.Command{
	Use:   "principals",
	Short: "Manage API principals",
	Long: `Manage the principals that may call the API.

Each principal has a role (viewer, planner or admin) and an API token.
The token secret is shown once at creation and stored only as a bcrypt
hash.

Examples:
  planora principals list
  planora principals add --name="ci reader" --role=viewer
  planora principals remove <id>`,
}

var principalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all principals",
	RunE:  runPrincipalsList,
}

var principalsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a principal and print its API token",
	RunE:  runPrincipalsAdd,
}

var principalsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a principal",
	Args:  cobra.ExactArgs(1),
	RunE:  runPrincipalsRemove,
}

var (
	principalName string
	principalRole string
)

func init() {
	rootCmd.AddCommand(principalsCmd)
	principalsCmd.AddCommand(principalsListCmd)
	principalsCmd.AddCommand(principalsAddCmd)
	principalsCmd.AddCommand(principalsRemoveCmd)

	principalsAddCmd.Flags().StringVar(&principalName, "name", "", "principal name (required)")
	principalsAddCmd.Flags().StringVar(&principalRole, "role", "viewer", "role: viewer, planner or admin")
	principalsAddCmd.MarkFlagRequired("name")
}

func openPrincipalStore() (*sqlite.PrincipalStore, *sqlite.DB, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}

	return sqlite.NewPrincipalStore(db, clock.System{}), db, nil
}

func runPrincipalsList(cmd *cobra.Command, args []string) error {
	store, db, err := openPrincipalStore()
	if err != nil {
		return err
	}
	defer db.Close()

	principals, err := store.List(context.Background())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tROLE\tCREATED")
	for _, p := range principals {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			p.ID, p.Name, p.Role, p.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func runPrincipalsAdd(cmd *cobra.Command, args []string) error {
	role, err := principal.ParseRole(principalRole)
	if err != nil {
		return err
	}

	store, db, err := openPrincipalStore()
	if err != nil {
		return err
	}
	defer db.Close()

	secret, err := generateSecret()
	if err != nil {
		return err
	}

	h := hasher.NewBcrypt(0)
	hash, err := h.Hash(secret)
	if err != nil {
		return fmt.Errorf("hash token: %w", err)
	}

	p := principal.Principal{
		ID:        idgen.UUID{}.New(),
		Name:      principalName,
		Role:      role,
		TokenHash: hash,
	}

	if err := store.Create(context.Background(), p); err != nil {
		return err
	}

	fmt.Printf("Created principal %s (%s, %s)\n\n", p.Name, p.ID, p.Role)
	fmt.Println("API token (shown once, store it now):")
	fmt.Printf("  %s:%s\n\n", p.ID, secret)
	fmt.Println("Use it as the X-API-Token header.")
	return nil
}

func runPrincipalsRemove(cmd *cobra.Command, args []string) error {
	store, db, err := openPrincipalStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.Delete(context.Background(), args[0]); err != nil {
		if err == ports.ErrNotFound {
			return fmt.Errorf("principal %q not found", args[0])
		}
		return err
	}

	fmt.Printf("Removed principal %s\n", args[0])
	return nil
}

func generateSecret() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
