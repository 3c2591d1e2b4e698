package merge_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/fairlens/leaseaudit/internal/merge"
	"github.com/fairlens/leaseaudit/internal/seeds"
)

func TestCreateRunDir(t *testing.T) {
	processed := t.TempDir()
	runDir, err := merge.CreateRunDir(processed)
	if err != nil {
		t.Fatalf("CreateRunDir: %v", err)
	}
	info, err := os.Stat(runDir)
	if err != nil || !info.IsDir() {
		t.Fatalf("run dir not created: %v", err)
	}

	latest := filepath.Join(processed, "latest")
	target, err := os.Readlink(latest)
	if err != nil {
		t.Fatalf("latest symlink: %v", err)
	}
	if target != runDir {
		t.Errorf("latest points at %s, want %s", target, runDir)
	}

	// A second run repoints the symlink without failing on the
	// existing link.
	if _, err := merge.CreateRunDir(processed); err != nil {
		t.Fatalf("second CreateRunDir: %v", err)
	}
}

func TestCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "merged.csv")
	want := []merge.MergedRow{
		{
			CustomID: "task-0",
			Model:    "Anthropic/claude-3-5-sonnet-20241022",
			Task: seeds.Task{
				Name: "Emily Walsh", Gender: "female", Race: "white",
				Occupation: "teacher", LivingStatus: "living alone", Replicate: 1,
			},
			Amount: 3500, Status: "OK",
			ContentLen: 24, InputTokens: 60, OutputTokens: 12, CostUSD: 0.00036,
		},
		{
			CustomID: "task-1",
			Model:    "meta-llama/Llama-3.1-8B-Instruct",
			Task:     seeds.Task{Name: "Jamal Jefferson", Gender: "male", Race: "black"},
			Status:   "REFUSED", Refused: true, ContentLen: 12, OutputTokens: 8,
		},
	}

	if err := merge.WriteCSV(path, want); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	got, err := merge.ReadCSV(path)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}

	// RunID and CustomID carry the same information; only the id is
	// persisted.
	for i := range want {
		want[i].Task.RunID = 0
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCSVNoData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "merged.csv")
	if err := os.WriteFile(path, []byte("custom_id,model\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := merge.ReadCSV(path); err == nil {
		t.Error("expected error for header-only file")
	}
}
