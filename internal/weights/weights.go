// Package weights downloads model weight artifacts for every model
// referenced by the pending request files, one model at a time.
package weights

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fairlens/leaseaudit/internal/batch"
	"github.com/fairlens/leaseaudit/internal/config"
)

type Opts struct {
	Config  *config.Config
	Logger  *zap.Logger
	DryRun  bool
	Replace bool
}

// Models resolves the distinct, non-hosted model identifiers across
// the request files, preserving first-seen order. Files whose model
// cannot be determined are skipped with a warning.
func Models(files []string, cfg *config.Config, log *zap.Logger) []string {
	seen := map[string]bool{}
	var models []string
	for _, file := range files {
		if batch.IsHosted(file, cfg.Hosted.Patterns) {
			continue
		}
		model, err := batch.RequestModel(file)
		if err != nil {
			log.Warn("cannot determine model, skipping file", zap.String("file", file), zap.Error(err))
			continue
		}
		if m, ok := cfg.ModelByName(model); ok && m.IsHosted() {
			continue
		}
		if !seen[model] {
			seen[model] = true
			models = append(models, model)
		}
	}
	return models
}

// Fetch downloads safetensors shards for every distinct local model,
// sequentially, with the same interrupt semantics as the batch driver.
func Fetch(ctx context.Context, opts *Opts) error {
	cfg := opts.Config
	log := opts.Logger

	files, err := batch.ScanRequests(cfg.Dirs.Requests)
	if err != nil {
		return err
	}
	models := Models(files, cfg, log)
	if len(models) == 0 {
		log.Warn("no local models referenced by request files")
		return nil
	}
	if err := os.MkdirAll(cfg.Dirs.Weights, 0o755); err != nil {
		return fmt.Errorf("creating weights dir: %w", err)
	}
	if err := os.MkdirAll(cfg.Dirs.Logs, 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	for _, model := range models {
		if err := ctx.Err(); err != nil {
			return err
		}
		stem := config.FileStem(model)
		dest := filepath.Join(cfg.Dirs.Weights, stem)
		if !opts.Replace && downloaded(dest) {
			log.Info("weights present, skipping", zap.String("model", model), zap.String("dir", dest))
			continue
		}

		args := []string{
			"huggingface-cli", "download", model,
			"--include", "*.safetensors",
			"--local-dir", dest,
		}
		if opts.DryRun {
			fmt.Println(strings.Join(args, " "))
			continue
		}

		log.Info("downloading weights", zap.String("model", model), zap.String("dir", dest))
		start := time.Now()
		if err := download(ctx, args, filepath.Join(cfg.Dirs.Logs, "fetch_"+stem+".log")); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("weight download failed", zap.String("model", model), zap.Error(err))
			continue
		}
		log.Info("weights downloaded",
			zap.String("model", model),
			zap.Duration("duration", time.Since(start)))
	}
	return ctx.Err()
}

func downloaded(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}

func download(ctx context.Context, args []string, logPath string) error {
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
