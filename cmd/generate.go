package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fairlens/leaseaudit/internal/config"
	"github.com/fairlens/leaseaudit/internal/names"
	"github.com/fairlens/leaseaudit/internal/seeds"
)

func newGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Build balanced request files from the applicant name workbook",
		RunE:  runGenerate,
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	firsts, lasts, err := names.LoadWorkbook(cfg.Generate.NamesFile, cfg.Generate.FirstSheet, cfg.Generate.LastSheet)
	if err != nil {
		return err
	}
	applicants, err := names.Pair(firsts, lasts, cfg.Generate.LastNamesPerFirst)
	if err != nil {
		return err
	}

	tasks := seeds.Build(applicants, cfg.Generate.Occupations, cfg.Generate.LivingStatuses, cfg.Generate.Replicates)
	if err := seeds.CheckBalance(tasks); err != nil {
		return fmt.Errorf("refusing to write request files: %w", err)
	}

	if err := os.MkdirAll(cfg.Dirs.Requests, 0o755); err != nil {
		return fmt.Errorf("creating requests dir: %w", err)
	}
	if err := os.MkdirAll(cfg.Dirs.Processed, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	seedsPath := filepath.Join(cfg.Dirs.Processed, "seeds.jsonl")
	if err := seeds.WriteSeeds(seedsPath, tasks); err != nil {
		return err
	}

	manifest := seeds.NewManifest(len(tasks), len(applicants), seedsPath)
	for _, m := range cfg.Models {
		paths, err := seeds.WriteRequests(cfg.Dirs.Requests, m.Name, tasks, cfg.Generate)
		if err != nil {
			return fmt.Errorf("writing requests for %s: %w", m.Name, err)
		}
		manifest.Files[m.Name] = paths
		logger.Info("wrote request files",
			zap.String("model", m.Name),
			zap.Strings("files", paths))
	}
	if err := seeds.WriteManifest(cfg.Dirs.Requests, manifest); err != nil {
		return err
	}

	logger.Info("generation complete",
		zap.String("run_id", manifest.ID),
		zap.Int("applicants", len(applicants)),
		zap.Int("tasks", len(tasks)),
		zap.Int("models", len(cfg.Models)),
		zap.String("seeds", seedsPath))
	return nil
}
