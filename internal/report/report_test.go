package report_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fairlens/leaseaudit/internal/merge"
	"github.com/fairlens/leaseaudit/internal/report"
	"github.com/fairlens/leaseaudit/internal/seeds"
)

func sampleRows() []merge.MergedRow {
	return []merge.MergedRow{
		{
			Model: "model-a", Amount: 3000, Status: "OK",
			Task: seeds.Task{Race: "white", Gender: "female", Occupation: "teacher", LivingStatus: "living alone"},
			ContentLen: 100, CostUSD: 0.01,
		},
		{
			Model: "model-a", Amount: 4000, Status: "OK",
			Task: seeds.Task{Race: "black", Gender: "male", Occupation: ""},
			ContentLen: 200, CostUSD: 0.01,
		},
		{
			Model: "model-a", Status: "REFUSED", Refused: true,
			Task: seeds.Task{Race: "black", Gender: "female"},
			ContentLen: 50,
		},
		{
			Model: "model-b", Amount: 5000, Status: "OK",
			Task: seeds.Task{Race: "white", Gender: "male"},
			ContentLen: 80,
		},
	}
}

func TestGenerateJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := report.Generate(sampleRows(), "", "json", &buf); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	var summaries []report.Summary
	if err := json.Unmarshal(buf.Bytes(), &summaries); err != nil {
		t.Fatalf("output not valid JSON: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want one per model", len(summaries))
	}

	a := summaries[0]
	if a.Model != "model-a" || a.N != 3 {
		t.Errorf("model-a summary: %+v", a)
	}
	if a.RefusalRate < 0.33 || a.RefusalRate > 0.34 {
		t.Errorf("refusal rate: %f", a.RefusalRate)
	}
	// Refused rows are excluded from the amount statistics.
	if a.MeanAmount != 3500 || a.MedianAmount != 3500 {
		t.Errorf("amounts: mean %f median %f", a.MeanAmount, a.MedianAmount)
	}
	if summaries[1].Model != "model-b" || summaries[1].N != 1 {
		t.Errorf("model-b summary: %+v", summaries[1])
	}
}

func TestGenerateGroupedByRace(t *testing.T) {
	var buf bytes.Buffer
	if err := report.Generate(sampleRows(), "race", "json", &buf); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	var summaries []report.Summary
	if err := json.Unmarshal(buf.Bytes(), &summaries); err != nil {
		t.Fatal(err)
	}
	// model-a splits into black/white, model-b is white only.
	if len(summaries) != 3 {
		t.Fatalf("got %d summaries: %+v", len(summaries), summaries)
	}
	if summaries[0].Group != "black" || summaries[0].N != 2 {
		t.Errorf("first group: %+v", summaries[0])
	}
}

func TestGenerateControlLabel(t *testing.T) {
	var buf bytes.Buffer
	if err := report.Generate(sampleRows(), "occupation", "json", &buf); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(buf.String(), "(control)") {
		t.Error("empty occupation not labeled as control")
	}
}

func TestGenerateMissingCountsAsRefusal(t *testing.T) {
	rows := []merge.MergedRow{
		{Model: "m", Status: merge.StatusMissing},
		{Model: "m", Amount: 3000, Status: "OK"},
	}
	var buf bytes.Buffer
	if err := report.Generate(rows, "", "json", &buf); err != nil {
		t.Fatal(err)
	}
	var summaries []report.Summary
	if err := json.Unmarshal(buf.Bytes(), &summaries); err != nil {
		t.Fatal(err)
	}
	if summaries[0].RefusalRate != 0.5 {
		t.Errorf("MISSING row not counted as refusal: %+v", summaries[0])
	}
}

func TestGenerateTable(t *testing.T) {
	var buf bytes.Buffer
	if err := report.Generate(sampleRows(), "", "table", &buf); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "MODEL") || !strings.Contains(out, "model-a") {
		t.Errorf("table output missing content:\n%s", out)
	}
}

func TestGenerateMarkdown(t *testing.T) {
	var buf bytes.Buffer
	if err := report.Generate(sampleRows(), "", "markdown", &buf); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "| Model |") {
		t.Errorf("markdown header missing:\n%s", buf.String())
	}
}

func TestGenerateUnknownFormat(t *testing.T) {
	if err := report.Generate(sampleRows(), "", "xml", &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestGenerateUnknownGrouping(t *testing.T) {
	if err := report.Generate(sampleRows(), "zodiac", "json", &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown grouping")
	}
}
