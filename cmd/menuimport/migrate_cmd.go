package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/menuimport/internal/store/drivers"
)

func newMigrateCmd(db *dbFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(db)
			if err != nil {
				return err
			}
			setupLogger(cmd.ErrOrStderr(), cfg)

			if err := drivers.Migrate(cmd.Context(), cfg.Database); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema is up to date (%s)\n", cfg.Database.Driver)
			return nil
		},
	}
}
