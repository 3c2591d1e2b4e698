package pricing_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/fairlens/leaseaudit/internal/pricing"
)

func TestLoadAndCost(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	data := `Anthropic:
  claude-3-5-sonnet-20241022:
    input: 3.0
    output: 15.0
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	table, err := pricing.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	got := table.Cost("Anthropic", "claude-3-5-sonnet-20241022", 1_000_000, 100_000)
	want := 3.0 + 1.5
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Cost: got %f, want %f", got, want)
	}

	if c := table.Cost("Anthropic", "unknown-model", 1000, 1000); c != 0 {
		t.Errorf("unknown model should cost zero, got %f", c)
	}
	if c := table.Cost("OpenAI", "gpt-4o", 1000, 1000); c != 0 {
		t.Errorf("unknown provider should cost zero, got %f", c)
	}
}

func TestCostNilTable(t *testing.T) {
	var table *pricing.Table
	if c := table.Cost("Anthropic", "any", 1000, 1000); c != 0 {
		t.Errorf("nil table should cost zero, got %f", c)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := pricing.Load("nonexistent.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
