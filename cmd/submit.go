package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fairlens/leaseaudit/internal/config"
	"github.com/fairlens/leaseaudit/internal/hosted"
)

var (
	flagSubmitInput   string
	flagSubmitOutput  string
	flagSubmitReplace bool
	flagSubmitDryRun  bool
	flagPollInterval  time.Duration
)

func newSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a request file to the hosted batch API and collect results",
		RunE:  runSubmit,
	}
	cmd.Flags().StringVarP(&flagSubmitInput, "input", "i", "", "request file to submit (required)")
	cmd.Flags().StringVarP(&flagSubmitOutput, "output", "o", "", "result file path (default: results dir)")
	cmd.Flags().BoolVar(&flagSubmitReplace, "replace", false, "discard existing output instead of resuming")
	cmd.Flags().BoolVar(&flagSubmitDryRun, "dry-run", false, "report what would be submitted")
	cmd.Flags().DurationVar(&flagPollInterval, "poll-interval", 0, "override batch status poll interval")
	cmd.MarkFlagRequired("input")
	return cmd
}

func runSubmit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.LoadSecrets(); err != nil {
		return err
	}
	apiKey := os.Getenv(cfg.Hosted.APIKeyEnv)
	if apiKey == "" && !flagSubmitDryRun {
		return fmt.Errorf("no API key: set %s or secrets.env_file", cfg.Hosted.APIKeyEnv)
	}
	if err := os.MkdirAll(cfg.Dirs.Results, 0o755); err != nil {
		return fmt.Errorf("creating results dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return hosted.Submit(ctx, &hosted.SubmitOpts{
		Config:       cfg,
		Logger:       logger,
		Client:       hosted.NewClient(cfg.Hosted.BaseURL, apiKey),
		Input:        flagSubmitInput,
		Output:       flagSubmitOutput,
		PollInterval: flagPollInterval,
		Replace:      flagSubmitReplace,
		DryRun:       flagSubmitDryRun,
	})
}
