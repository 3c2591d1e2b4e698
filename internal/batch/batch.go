// Package batch drives the local inference runner over pending request
// files, one subprocess at a time.
package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fairlens/leaseaudit/internal/jsonl"
)

// ScanRequests lists the request files under dir, sorted by name.
func ScanRequests(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading requests dir %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".jsonl") || strings.HasSuffix(name, ".jsonl.gz") {
			files = append(files, filepath.Join(dir, name))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Stem strips the directory and the .jsonl/.jsonl.gz suffix.
func Stem(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".gz")
	return strings.TrimSuffix(base, ".jsonl")
}

// IsHosted reports whether the file name matches a hosted-API naming
// pattern; those batches are submitted remotely, never run locally.
func IsHosted(path string, patterns []string) bool {
	base := strings.ToLower(filepath.Base(path))
	for _, p := range patterns {
		if p != "" && strings.Contains(base, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

type firstRecord struct {
	Body struct {
		Model *string `json:"model"`
	} `json:"body"`
}

// RequestModel extracts the target model from the first record's
// request body. A missing or null model is a per-file error; the
// caller logs it and moves on.
func RequestModel(path string) (string, error) {
	var rec firstRecord
	if err := jsonl.DecodeFirst(path, &rec); err != nil {
		return "", err
	}
	if rec.Body.Model == nil || *rec.Body.Model == "" {
		return "", fmt.Errorf("%s: first record has no model", path)
	}
	return *rec.Body.Model, nil
}

// OutputPath is the result artifact the runner writes for a request
// file.
func OutputPath(resultsDir, requestFile string) string {
	return filepath.Join(resultsDir, Stem(requestFile)+"_results.jsonl")
}

// OutputExists checks for the plain or gzip-compressed result file.
func OutputExists(outputPath string) bool {
	for _, p := range []string{outputPath, outputPath + ".gz"} {
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}
	return false
}

// IsMistralFamily reports whether the file name indicates a tokenizer
// family that needs non-default tokenizer/config/load handling.
func IsMistralFamily(path string, patterns []string) bool {
	base := strings.ToLower(filepath.Base(path))
	for _, p := range patterns {
		if p != "" && strings.Contains(base, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
