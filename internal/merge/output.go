package merge

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// CreateRunDir makes a timestamped directory under
// <processed>/runs and repoints the latest symlink at it.
func CreateRunDir(processedDir string) (string, error) {
	stamp := time.Now().UTC().Format("2006-01-02T15-04-05")
	runDir := filepath.Join(processedDir, "runs", stamp)
	runDir, err := filepath.Abs(runDir)
	if err != nil {
		return "", fmt.Errorf("resolving run dir: %w", err)
	}
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("creating run dir: %w", err)
	}
	latest := filepath.Join(processedDir, "latest")
	os.Remove(latest)
	if err := os.Symlink(runDir, latest); err != nil {
		return "", fmt.Errorf("creating latest symlink: %w", err)
	}
	return runDir, nil
}

// CSVHeader is the column order of the processed dataset.
var CSVHeader = []string{
	"custom_id", "model", "name", "gender", "race",
	"occupation", "living_status", "replicate",
	"amount", "status", "refused", "content_len",
	"input_tokens", "output_tokens", "cost_usd",
}

// WriteCSV writes the processed dataset consumed by downstream
// statistics.
func WriteCSV(path string, rows []MergedRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(CSVHeader); err != nil {
		f.Close()
		return fmt.Errorf("writing header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			r.CustomID,
			r.Model,
			r.Task.Name,
			r.Task.Gender,
			r.Task.Race,
			r.Task.Occupation,
			r.Task.LivingStatus,
			strconv.Itoa(r.Task.Replicate),
			strconv.FormatInt(r.Amount, 10),
			r.Status,
			strconv.FormatBool(r.Refused),
			strconv.Itoa(r.ContentLen),
			strconv.Itoa(r.InputTokens),
			strconv.Itoa(r.OutputTokens),
			strconv.FormatFloat(r.CostUSD, 'f', 6, 64),
		}
		if err := w.Write(record); err != nil {
			f.Close()
			return fmt.Errorf("writing row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flushing csv: %w", err)
	}
	return f.Close()
}

// ReadCSV loads a processed dataset back, for reporting.
func ReadCSV(path string) ([]MergedRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%s: no data rows", path)
	}
	var rows []MergedRow
	for i, rec := range records[1:] {
		if len(rec) != len(CSVHeader) {
			return nil, fmt.Errorf("%s row %d: expected %d columns, got %d", path, i+2, len(CSVHeader), len(rec))
		}
		replicate, _ := strconv.Atoi(rec[7])
		amount, _ := strconv.ParseInt(rec[8], 10, 64)
		refused, _ := strconv.ParseBool(rec[10])
		contentLen, _ := strconv.Atoi(rec[11])
		inTok, _ := strconv.Atoi(rec[12])
		outTok, _ := strconv.Atoi(rec[13])
		cost, _ := strconv.ParseFloat(rec[14], 64)
		row := MergedRow{
			CustomID:     rec[0],
			Model:        rec[1],
			Amount:       amount,
			Status:       rec[9],
			Refused:      refused,
			ContentLen:   contentLen,
			InputTokens:  inTok,
			OutputTokens: outTok,
			CostUSD:      cost,
		}
		row.Task.Name = rec[2]
		row.Task.Gender = rec[3]
		row.Task.Race = rec[4]
		row.Task.Occupation = rec[5]
		row.Task.LivingStatus = rec[6]
		row.Task.Replicate = replicate
		rows = append(rows, row)
	}
	return rows, nil
}
