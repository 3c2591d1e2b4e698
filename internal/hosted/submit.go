package hosted

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fairlens/leaseaudit/internal/batch"
	"github.com/fairlens/leaseaudit/internal/config"
	"github.com/fairlens/leaseaudit/internal/jsonl"
	"github.com/fairlens/leaseaudit/internal/seeds"
)

type SubmitOpts struct {
	Config       *config.Config
	Logger       *zap.Logger
	Client       *Client
	Input        string
	Output       string
	PollInterval time.Duration
	Replace      bool
	DryRun       bool
}

type batchLogEntry struct {
	BatchID     string    `json:"batch_id"`
	BatchKey    string    `json:"batch_key"`
	BatchNum    int       `json:"batch_num"`
	SubmittedAt time.Time `json:"submitted_at"`
	Status      string    `json:"status"`
}

// Submit pushes one request file through the hosted batch API. Already
// answered custom ids are skipped on rerun, and previously submitted
// batches are polled instead of re-created, so interrupting and
// re-running is safe.
func Submit(ctx context.Context, opts *SubmitOpts) error {
	cfg := opts.Config
	log := opts.Logger

	output := opts.Output
	if output == "" {
		output = batch.OutputPath(cfg.Dirs.Results, opts.Input)
	}

	var requests []seeds.Request
	if err := jsonl.Decode(opts.Input, func(r seeds.Request) error {
		requests = append(requests, r)
		return nil
	}); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	// Only succeeded records count as completed; anything else is
	// stale and gets compacted away before its item is resubmitted,
	// so the output never holds two records for one custom id.
	completed := map[string]bool{}
	var keep []ResultRecord
	stale := 0
	if !opts.Replace {
		if _, err := os.Stat(output); err == nil {
			if err := jsonl.Decode(output, func(rec ResultRecord) error {
				if rec.CustomID == "" || rec.Result.Type != "succeeded" || completed[rec.CustomID] {
					stale++
					return nil
				}
				completed[rec.CustomID] = true
				keep = append(keep, rec)
				return nil
			}); err != nil {
				return fmt.Errorf("scanning existing output: %w", err)
			}
			log.Info("found previously completed items",
				zap.Int("count", len(completed)),
				zap.Int("stale", stale))
		}
	}

	var remaining []seeds.Request
	for _, r := range requests {
		if !completed[r.CustomID] {
			remaining = append(remaining, r)
		}
	}
	log.Info("submit plan",
		zap.String("input", opts.Input),
		zap.String("output", output),
		zap.Int("total", len(requests)),
		zap.Int("remaining", len(remaining)))
	if opts.DryRun {
		return nil
	}

	if opts.Replace {
		if err := os.Remove(output); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing existing output: %w", err)
		}
	} else if stale > 0 {
		if err := compactResults(output, keep); err != nil {
			return err
		}
		log.Info("compacted existing output", zap.Int("dropped", stale))
	}
	if len(remaining) == 0 {
		return nil
	}

	logPath := output + ".batch_log.jsonl"
	known, err := loadBatchLog(logPath)
	if err != nil {
		return err
	}

	interval := opts.PollInterval
	if interval <= 0 {
		interval = cfg.Hosted.PollInterval()
	}
	limiter := rate.NewLimiter(rate.Every(interval), 1)

	size := cfg.Hosted.BatchSize
	for num := 0; num*size < len(remaining); num++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lo := num * size
		hi := min(lo+size, len(remaining))
		chunk := remaining[lo:hi]
		key := fmt.Sprintf("%s_batch_%d", opts.Input, num)

		entry, ok := known[key]
		if ok {
			log.Info("reusing submitted batch", zap.String("batch_id", entry.BatchID), zap.Int("batch", num))
		} else {
			created, err := opts.Client.CreateBatch(ctx, toBatchRequests(chunk, log))
			if err != nil {
				log.Error("batch submission failed", zap.Int("batch", num), zap.Error(err))
				continue
			}
			entry = batchLogEntry{
				BatchID:     created.ID,
				BatchKey:    key,
				BatchNum:    num,
				SubmittedAt: time.Now().UTC(),
				Status:      created.ProcessingStatus,
			}
			if err := appendBatchLog(logPath, entry); err != nil {
				return err
			}
			known[key] = entry
			log.Info("submitted batch", zap.String("batch_id", created.ID), zap.Int("requests", len(chunk)))
		}

		if err := awaitAndCollect(ctx, opts, limiter, entry, output, completed, logPath); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("collecting batch failed", zap.String("batch_id", entry.BatchID), zap.Error(err))
		}
	}
	return ctx.Err()
}

func awaitAndCollect(ctx context.Context, opts *SubmitOpts, limiter *rate.Limiter, entry batchLogEntry, output string, completed map[string]bool, logPath string) error {
	log := opts.Logger
	for {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		b, err := opts.Client.GetBatch(ctx, entry.BatchID)
		if err != nil {
			return err
		}
		if b.ProcessingStatus != "ended" {
			log.Info("batch still processing",
				zap.String("batch_id", entry.BatchID),
				zap.String("status", b.ProcessingStatus))
			continue
		}
		break
	}

	out, err := jsonl.Append(output)
	if err != nil {
		return fmt.Errorf("opening output: %w", err)
	}
	defer out.Close()
	enc := json.NewEncoder(out)

	written := 0
	err = opts.Client.Results(ctx, entry.BatchID, func(rec ResultRecord) error {
		if completed[rec.CustomID] {
			return nil
		}
		if rec.Result.Type != "succeeded" {
			log.Warn("item failed",
				zap.String("custom_id", rec.CustomID),
				zap.String("type", rec.Result.Type))
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		completed[rec.CustomID] = true
		written++
		return nil
	})
	if err != nil {
		return err
	}

	entry.Status = "ended"
	if err := appendBatchLog(logPath, entry); err != nil {
		return err
	}
	log.Info("batch collected", zap.String("batch_id", entry.BatchID), zap.Int("results", written))
	return nil
}

// toBatchRequests converts chat-completion request bodies to message
// params, folding any system messages into the first user turn.
func toBatchRequests(chunk []seeds.Request, log *zap.Logger) []BatchRequest {
	var out []BatchRequest
	for _, r := range chunk {
		if r.Body.Model == "" || len(r.Body.Messages) == 0 {
			log.Error("malformed request item", zap.String("custom_id", r.CustomID))
			continue
		}
		var system string
		var msgs []Message
		for _, m := range r.Body.Messages {
			if m.Role == "system" {
				if system != "" {
					system += " "
				}
				system += m.Content
				continue
			}
			msgs = append(msgs, Message{Role: m.Role, Content: m.Content})
		}
		if system != "" && len(msgs) > 0 {
			msgs[0].Content = system + "\n\n" + msgs[0].Content
			system = ""
		}
		if len(msgs) == 0 {
			msgs = []Message{{Role: "user", Content: system}}
			system = ""
		}
		maxTokens := r.Body.MaxTokens
		if maxTokens == 0 {
			maxTokens = 4096
		}
		out = append(out, BatchRequest{
			CustomID: r.CustomID,
			Params: MessageParams{
				Model:       r.Body.Model,
				MaxTokens:   maxTokens,
				Temperature: r.Body.Temperature,
				System:      system,
				Messages:    msgs,
			},
		})
	}
	return out
}

// compactResults rewrites the output file with only the kept records.
func compactResults(path string, recs []ResultRecord) error {
	tmp := path + ".tmp"
	w, err := jsonl.NewWriter(tmp)
	if err != nil {
		return fmt.Errorf("compacting output: %w", err)
	}
	for _, rec := range recs {
		if err := w.Encode(rec); err != nil {
			w.Close()
			return fmt.Errorf("compacting output: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("compacting output: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("compacting output: %w", err)
	}
	return nil
}

func loadBatchLog(path string) (map[string]batchLogEntry, error) {
	known := map[string]batchLogEntry{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return known, nil
	}
	err := jsonl.Decode(path, func(e batchLogEntry) error {
		if e.BatchKey != "" {
			known[e.BatchKey] = e
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading batch log: %w", err)
	}
	return known, nil
}

func appendBatchLog(path string, entry batchLogEntry) error {
	f, err := jsonl.Append(path)
	if err != nil {
		return fmt.Errorf("opening batch log: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(entry); err != nil {
		return fmt.Errorf("writing batch log: %w", err)
	}
	return nil
}
