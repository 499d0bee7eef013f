package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/menuimport/internal/report"
	"github.com/JonMunkholm/menuimport/internal/store/drivers"
)

func newHistoryCmd(db *dbFlags) *cobra.Command {
	var (
		limit  int
		output string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent import runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "table" && output != "json" {
				return withCode(exitUsage, fmt.Errorf("unsupported --output: %s", output))
			}
			cfg, err := loadConfig(db)
			if err != nil {
				return err
			}
			setupLogger(cmd.ErrOrStderr(), cfg)

			st, err := drivers.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer st.Close()

			if limit <= 0 {
				limit = cfg.Import.HistoryLimit
			}
			runs, err := st.ListImportRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if output == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}
			return report.WriteHistory(cmd.OutOrStdout(), runs)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Number of runs to show (default: IMPORT_HISTORY_LIMIT)")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output: table or json")
	return cmd
}
