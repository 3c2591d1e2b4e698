package merge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fairlens/leaseaudit/internal/config"
	"github.com/fairlens/leaseaudit/internal/jsonl"
)

// ScanResults lists result files under dir, sorted by name.
func ScanResults(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading results dir %s: %w", dir, err)
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

var partSuffixRe = regexp.MustCompile(`-part\d+$`)

// modelStem recovers the model file stem from a result file path by
// stripping the extension, the _results suffix, and any -partNN piece.
func modelStem(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".gz")
	base = strings.TrimSuffix(base, ".jsonl")
	base = strings.TrimSuffix(base, "_results")
	return partSuffixRe.ReplaceAllString(base, "")
}

// LoadResults normalizes every result file into rows, reading files
// with a bounded worker pool. Files are read-only here, so the pool
// never violates the one-writer-per-file rule. A file that cannot be
// read or parsed is logged and dropped; the merge invariant will
// surface the gap.
func LoadResults(dir string, cfg *config.Config, log *zap.Logger, workers int) ([]Row, error) {
	files, err := ScanResults(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no result files in %s", dir)
	}
	if workers < 1 {
		workers = 1
	}

	perFile := make([][]Row, len(files))
	var (
		wg  sync.WaitGroup
		sem = make(chan struct{}, workers)
	)
	for i, file := range files {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, file string) {
			defer wg.Done()
			defer func() { <-sem }()
			rows, err := loadFile(file, cfg, log)
			if err != nil {
				log.Error("skipping unreadable result file", zap.String("file", file), zap.Error(err))
				return
			}
			perFile[i] = rows
		}(i, file)
	}
	wg.Wait()

	var all []Row
	for _, rows := range perFile {
		all = append(all, rows...)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("no result rows loaded from %s", dir)
	}
	return all, nil
}

func loadFile(path string, cfg *config.Config, log *zap.Logger) ([]Row, error) {
	format, fallbackModel := resolveFormat(path, cfg, log)
	normalize, err := NormalizerFor(format)
	if err != nil {
		return nil, err
	}

	var rows []Row
	err = jsonl.Decode(path, func(raw json.RawMessage) error {
		row, err := normalize(raw, fallbackModel)
		if err != nil {
			return fmt.Errorf("normalizing record: %w", err)
		}
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// resolveFormat picks the parser variant from the declared format tag
// of the model the file belongs to. Only when the model is not in the
// config does it fall back to probing the first record.
func resolveFormat(path string, cfg *config.Config, log *zap.Logger) (string, string) {
	stem := modelStem(path)
	if m, ok := cfg.ModelByStem(stem); ok {
		return m.Format, m.Name
	}
	var first json.RawMessage
	if err := jsonl.DecodeFirst(path, &first); err != nil {
		return config.FormatOpenAI, ""
	}
	format := ProbeFormat(first)
	log.Warn("model not in config, probed envelope format",
		zap.String("file", path),
		zap.String("format", format))
	return format, ""
}
