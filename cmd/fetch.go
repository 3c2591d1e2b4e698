package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fairlens/leaseaudit/internal/config"
	"github.com/fairlens/leaseaudit/internal/weights"
)

var (
	flagFetchDryRun  bool
	flagFetchReplace bool
)

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download weights for every local model referenced by request files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return weights.Fetch(ctx, &weights.Opts{
				Config:  cfg,
				Logger:  logger,
				DryRun:  flagFetchDryRun,
				Replace: flagFetchReplace,
			})
		},
	}
	cmd.Flags().BoolVar(&flagFetchDryRun, "dry-run", false, "print download commands without executing")
	cmd.Flags().BoolVar(&flagFetchReplace, "replace", false, "re-download weights that are already present")
	return cmd
}
