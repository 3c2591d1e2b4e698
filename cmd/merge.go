package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fairlens/leaseaudit/internal/config"
	"github.com/fairlens/leaseaudit/internal/merge"
	"github.com/fairlens/leaseaudit/internal/pricing"
	"github.com/fairlens/leaseaudit/internal/seeds"
)

var (
	flagAllowMissing bool
	flagMergeWorkers int
)

func newMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge result files with the seed table into the processed CSV",
		RunE:  runMerge,
	}
	cmd.Flags().BoolVar(&flagAllowMissing, "allow-missing", false, "retain unanswered seeds as MISSING rows instead of failing")
	cmd.Flags().IntVar(&flagMergeWorkers, "workers", 4, "result files read concurrently")
	return cmd
}

func runMerge(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	seedsByID, err := seeds.ReadSeeds(filepath.Join(cfg.Dirs.Processed, "seeds.jsonl"))
	if err != nil {
		return err
	}

	rows, err := merge.LoadResults(cfg.Dirs.Results, cfg, logger, flagMergeWorkers)
	if err != nil {
		return err
	}

	var table *pricing.Table
	if cfg.Pricing != "" {
		table, err = pricing.Load(cfg.Pricing)
		if err != nil {
			return err
		}
	}

	merged, err := merge.Merge(&merge.Options{
		Config:       cfg,
		Logger:       logger,
		Pricing:      table,
		AllowMissing: flagAllowMissing,
	}, rows, seedsByID)
	if err != nil {
		return err
	}

	runDir, err := merge.CreateRunDir(cfg.Dirs.Processed)
	if err != nil {
		return err
	}
	outPath := filepath.Join(runDir, "merged.csv")
	if err := merge.WriteCSV(outPath, merged); err != nil {
		return err
	}

	logger.Info("merge complete",
		zap.Int("rows", len(merged)),
		zap.String("output", outPath))
	fmt.Println(outPath)
	return nil
}
