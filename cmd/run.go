package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fairlens/leaseaudit/internal/batch"
	"github.com/fairlens/leaseaudit/internal/config"
)

var (
	flagTensorParallel   int
	flagMaxModelLen      int
	flagMaxNumSeqs       int
	flagMaxBatchedTokens int
	flagGPUMemUtil       float64
	flagDryRun           bool
	flagReplace          bool
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the local inference runner over pending request files",
		RunE:  runBatches,
	}
	cmd.Flags().IntVar(&flagTensorParallel, "tensor-parallel", 0, "tensor parallelism degree")
	cmd.Flags().IntVar(&flagMaxModelLen, "max-model-len", 0, "maximum sequence length")
	cmd.Flags().IntVar(&flagMaxNumSeqs, "max-num-seqs", 0, "maximum sequences per batch")
	cmd.Flags().IntVar(&flagMaxBatchedTokens, "max-batched-tokens", 0, "maximum batched tokens")
	cmd.Flags().Float64Var(&flagGPUMemUtil, "gpu-mem-util", 0, "GPU memory utilization fraction")
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "print runner commands without executing")
	cmd.Flags().BoolVar(&flagReplace, "replace", false, "re-run files whose output already exists")
	return cmd
}

func runBatches(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if flagTensorParallel > 0 {
		cfg.Runner.TensorParallel = flagTensorParallel
	}
	if flagMaxModelLen > 0 {
		cfg.Runner.MaxModelLen = flagMaxModelLen
	}
	if flagMaxNumSeqs > 0 {
		cfg.Runner.MaxNumSeqs = flagMaxNumSeqs
	}
	if flagMaxBatchedTokens > 0 {
		cfg.Runner.MaxBatchedTokens = flagMaxBatchedTokens
	}
	if flagGPUMemUtil > 0 {
		cfg.Runner.GPUMemoryUtilization = flagGPUMemUtil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return batch.Run(ctx, &batch.Opts{
		Config:  cfg,
		Logger:  logger,
		DryRun:  flagDryRun,
		Replace: flagReplace,
	})
}
