package merge_test

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/fairlens/leaseaudit/internal/merge"
)

func TestScanResults(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b_results.jsonl", "a_results.jsonl.gz", "readme.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	files, err := merge.ScanResults(dir)
	if err != nil {
		t.Fatalf("ScanResults: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %v", files)
	}
	if filepath.Base(files[0]) != "a_results.jsonl.gz" {
		t.Errorf("ordering: %v", files)
	}
}

func TestLoadResults(t *testing.T) {
	dir := t.TempDir()
	llama := filepath.Join(dir, "Llama-3.1-8B-Instruct_results.jsonl")
	if err := os.WriteFile(llama, []byte(openAILine+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	claude := filepath.Join(dir, "claude-3-5-sonnet-20241022_results.jsonl")
	if err := os.WriteFile(claude, []byte(anthropicLine+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	rows, err := merge.LoadResults(dir, testConfig(), zap.NewNop(), 4)
	if err != nil {
		t.Fatalf("LoadResults: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	byID := map[string]merge.Row{}
	for _, r := range rows {
		byID[r.CustomID] = r
	}
	if byID["task-3"].Content != "$3,000" {
		t.Errorf("openai row: %+v", byID["task-3"])
	}
	if byID["task-4"].Model != "claude-3-5-sonnet-20241022" {
		t.Errorf("anthropic row: %+v", byID["task-4"])
	}
}

func TestLoadResultsSplitFiles(t *testing.T) {
	dir := t.TempDir()
	// Part files of the same model resolve to the same format.
	for _, name := range []string{
		"Llama-3.1-8B-Instruct-part01_results.jsonl",
		"Llama-3.1-8B-Instruct-part02_results.jsonl",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(openAILine+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	rows, err := merge.LoadResults(dir, testConfig(), zap.NewNop(), 2)
	if err != nil {
		t.Fatalf("LoadResults: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("got %d rows, want 2", len(rows))
	}
}

func TestLoadResultsUnknownModelProbed(t *testing.T) {
	dir := t.TempDir()
	// Anthropic-shaped file for a model absent from the config.
	path := filepath.Join(dir, "mystery-model_results.jsonl")
	if err := os.WriteFile(path, []byte(anthropicLine+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	rows, err := merge.LoadResults(dir, testConfig(), zap.NewNop(), 1)
	if err != nil {
		t.Fatalf("LoadResults: %v", err)
	}
	if len(rows) != 1 || rows[0].Content == "" {
		t.Errorf("probed file not parsed: %+v", rows)
	}
}

func TestLoadResultsDropsUnparseable(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "Llama-3.1-8B-Instruct_results.jsonl")
	if err := os.WriteFile(good, []byte(openAILine+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(dir, "broken_results.jsonl")
	if err := os.WriteFile(bad, []byte("not json\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	rows, err := merge.LoadResults(dir, testConfig(), zap.NewNop(), 4)
	if err != nil {
		t.Fatalf("LoadResults: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("got %d rows, want 1 with the broken file dropped", len(rows))
	}
}

func TestLoadResultsEmpty(t *testing.T) {
	if _, err := merge.LoadResults(t.TempDir(), testConfig(), zap.NewNop(), 1); err == nil {
		t.Error("expected error for empty results dir")
	}
}
