package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fairlens/leaseaudit/internal/config"
	"github.com/fairlens/leaseaudit/internal/merge"
	"github.com/fairlens/leaseaudit/internal/report"
)

var (
	flagFormat string
	flagBy     string
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [merged-csv]",
		Short: "Summarize a processed dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			csvPath := filepath.Join(cfg.Dirs.Processed, "latest", "merged.csv")
			if len(args) > 0 {
				csvPath = args[0]
			}
			resolved, err := filepath.EvalSymlinks(csvPath)
			if err != nil {
				return fmt.Errorf("resolving dataset path: %w", err)
			}
			rows, err := merge.ReadCSV(resolved)
			if err != nil {
				return err
			}
			return report.Generate(rows, flagBy, flagFormat, os.Stdout)
		},
	}
	cmd.Flags().StringVar(&flagFormat, "format", "table", "output format (table, markdown, json)")
	cmd.Flags().StringVar(&flagBy, "by", "", "secondary grouping (race, gender, occupation, living)")
	return cmd
}
