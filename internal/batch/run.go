package batch

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fairlens/leaseaudit/internal/config"
	"github.com/fairlens/leaseaudit/internal/dockerrun"
)

type Opts struct {
	Config  *config.Config
	Logger  *zap.Logger
	DryRun  bool
	Replace bool
}

// Command assembles the inference runner invocation for one request
// file.
func Command(r config.Runner, model, inputFile, outputFile string, mistral bool) []string {
	args := append([]string{}, r.Command...)
	args = append(args,
		"-i", inputFile,
		"-o", outputFile,
		"--model", model,
		"--tensor-parallel-size", strconv.Itoa(r.TensorParallel),
		"--max-model-len", strconv.Itoa(r.MaxModelLen),
		"--max-num-seqs", strconv.Itoa(r.MaxNumSeqs),
		"--max-num-batched-tokens", strconv.Itoa(r.MaxBatchedTokens),
		"--gpu-memory-utilization", strconv.FormatFloat(r.GPUMemoryUtilization, 'f', -1, 64),
	)
	if mistral {
		args = append(args,
			"--tokenizer-mode", "mistral",
			"--config-format", "mistral",
			"--load-format", "mistral",
		)
	}
	return args
}

// Run processes every pending request file sequentially. A malformed
// file is logged and skipped; cancellation (SIGINT/SIGTERM via ctx)
// kills the in-flight subprocess group and ends the run.
func Run(ctx context.Context, opts *Opts) error {
	cfg := opts.Config
	log := opts.Logger

	files, err := ScanRequests(cfg.Dirs.Requests)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		log.Warn("no request files found", zap.String("dir", cfg.Dirs.Requests))
		return nil
	}
	if err := os.MkdirAll(cfg.Dirs.Results, 0o755); err != nil {
		return fmt.Errorf("creating results dir: %w", err)
	}
	if err := os.MkdirAll(cfg.Dirs.Logs, 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if IsHosted(file, cfg.Hosted.Patterns) {
			log.Info("skipping hosted-API batch", zap.String("file", file))
			continue
		}
		model, err := RequestModel(file)
		if err != nil {
			log.Error("cannot determine model, skipping file", zap.String("file", file), zap.Error(err))
			continue
		}
		out := OutputPath(cfg.Dirs.Results, file)
		if !opts.Replace && OutputExists(out) {
			log.Info("output exists, skipping", zap.String("file", file), zap.String("output", out))
			continue
		}

		args := Command(cfg.Runner, model, file, out, IsMistralFamily(file, cfg.Runner.MistralPatterns))
		if opts.DryRun {
			fmt.Println(strings.Join(args, " "))
			continue
		}

		log.Info("running inference batch",
			zap.String("file", file),
			zap.String("model", model),
			zap.String("output", out))
		start := time.Now()
		if cfg.Container.Image != "" {
			err = dockerrun.RunBatch(ctx, &dockerrun.Opts{
				Image:       cfg.Container.Image,
				GPUs:        cfg.Container.GPUs,
				Command:     args,
				RequestsDir: cfg.Dirs.Requests,
				ResultsDir:  cfg.Dirs.Results,
				WeightsDir:  cfg.Dirs.Weights,
				LogPath:     filepath.Join(cfg.Dirs.Logs, Stem(file)+".log"),
			})
		} else {
			err = runSubprocess(ctx, args, filepath.Join(cfg.Dirs.Logs, Stem(file)+".log"))
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("inference batch failed", zap.String("file", file), zap.Error(err))
			continue
		}
		log.Info("inference batch done",
			zap.String("file", file),
			zap.Duration("duration", time.Since(start)))
	}
	return ctx.Err()
}

// runSubprocess launches one runner process, tees its output to the
// per-file log while surfacing it live, and blocks until it exits.
// The child runs in its own process group so cancellation reaps the
// whole tree, not just the direct child.
func runSubprocess(ctx context.Context, args []string, logPath string) error {
	logFile, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("creating log file %s: %w", logPath, err)
	}
	defer logFile.Close()

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 10 * time.Second
	cmd.Stdout = io.MultiWriter(os.Stdout, logFile)
	cmd.Stderr = io.MultiWriter(os.Stderr, logFile)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	return nil
}
