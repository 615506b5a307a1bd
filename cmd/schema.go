package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veloquery/veloquery/internal/config"
	"github.com/veloquery/veloquery/internal/postgres"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Show the harvested schema catalog",
	Long: `Harvest column metadata from the connected database and print the
catalog the translator works with, including the sampled values used for
value matching.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger()
		if err != nil {
			return err
		}
		defer log.Sync()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		ctx := cmd.Context()
		store, err := postgres.Open(ctx, cfg.Database.DSN(), log)
		if err != nil {
			return err
		}
		defer store.Close()

		catalog := postgres.NewCatalog(store.DB(), log)
		if err := catalog.Refresh(ctx); err != nil {
			return err
		}

		table := ""
		for _, col := range catalog.Cached() {
			if col.Table != table {
				if table != "" {
					fmt.Println()
				}
				table = col.Table
				fmt.Println(table)
			}
			line := fmt.Sprintf("  %-24s %-28s %s", col.Name, col.DataType, col.Kind)
			if n := len(col.Samples); n > 0 {
				line += fmt.Sprintf("  (%d sampled values)", n)
			}
			fmt.Println(line)
		}
		return nil
	},
}
