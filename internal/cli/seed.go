package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func buildSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create indexes, load the task catalog and the owner account",
		Long: `seed creates the MongoDB indexes, inserts the maintenance catalog when the
collection is empty (CARBOOK_CATALOG_FILE, or the built-in list) and creates
the owner account when no user exists yet.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.store.EnsureIndexes(ctx); err != nil {
				return err
			}
			inserted, err := seedCatalog(ctx, a)
			if err != nil {
				return err
			}
			created, err := a.auth.EnsureOwner(ctx, a.store.Users, cfg.Auth.OwnerUsername, cfg.Auth.OwnerPassword, cfg.Vehicle.OwnerName)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if inserted == 0 {
				fmt.Fprintln(out, "Catalog already present, nothing inserted")
			} else {
				fmt.Fprintf(out, "Inserted %d maintenance tasks\n", inserted)
			}
			if created {
				fmt.Fprintf(out, "Created owner account %q\n", cfg.Auth.OwnerUsername)
			}
			return nil
		},
	}
}
