package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fairlens/leaseaudit/internal/config"
	"github.com/fairlens/leaseaudit/internal/seeds"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the config and re-check seed balance invariants",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Config OK: %d models, %d occupations, %d living statuses\n",
				len(cfg.Models), len(cfg.Generate.Occupations), len(cfg.Generate.LivingStatuses))

			seedsPath := filepath.Join(cfg.Dirs.Processed, "seeds.jsonl")
			if _, err := os.Stat(seedsPath); os.IsNotExist(err) {
				fmt.Println("No seeds file yet; run generate first to check balance.")
				return nil
			}
			byID, err := seeds.ReadSeeds(seedsPath)
			if err != nil {
				return err
			}
			tasks := make([]seeds.Task, 0, len(byID))
			for _, t := range byID {
				tasks = append(tasks, t)
			}
			if err := seeds.CheckBalance(tasks); err != nil {
				return fmt.Errorf("seed balance check failed: %w", err)
			}
			fmt.Printf("Seed balance OK: %d tasks\n", len(tasks))
			return nil
		},
	}
}
