package dockerrun_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fairlens/leaseaudit/internal/dockerrun"
)

func TestRunBatch(t *testing.T) {
	if os.Getenv("LEASEAUDIT_DOCKER_TESTS") == "" {
		t.Skip("set LEASEAUDIT_DOCKER_TESTS=1 to run Docker tests")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	root := t.TempDir()
	resultsDir := filepath.Join(root, "results")
	if err := os.MkdirAll(resultsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	logPath := filepath.Join(root, "batch.log")

	out := filepath.Join(resultsDir, "model_results.jsonl")
	err := dockerrun.RunBatch(ctx, &dockerrun.Opts{
		Image:      "alpine:latest",
		Command:    []string{"sh", "-c", "echo '{\"custom_id\":\"task-0\"}' > " + out},
		ResultsDir: resultsDir,
		LogPath:    logPath,
	})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("result file not written through bind mount: %v", err)
	}
	if _, err := os.Stat(logPath); err != nil {
		t.Errorf("container log not captured: %v", err)
	}
}

func TestRunBatchNonzeroExit(t *testing.T) {
	if os.Getenv("LEASEAUDIT_DOCKER_TESTS") == "" {
		t.Skip("set LEASEAUDIT_DOCKER_TESTS=1 to run Docker tests")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	err := dockerrun.RunBatch(ctx, &dockerrun.Opts{
		Image:   "alpine:latest",
		Command: []string{"sh", "-c", "exit 3"},
	})
	if err == nil {
		t.Error("expected error for nonzero container exit")
	}
}
