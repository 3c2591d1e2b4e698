package seeds

import (
	"fmt"
	"path/filepath"

	"github.com/fairlens/leaseaudit/internal/config"
	"github.com/fairlens/leaseaudit/internal/jsonl"
)

// Request is one line of a batch request file, shaped for the OpenAI
// batch endpoint contract that both vLLM and the hosted submitter
// consume.
type Request struct {
	CustomID string `json:"custom_id"`
	Method   string `json:"method"`
	URL      string `json:"url"`
	Body     Body   `json:"body"`
}

type Body struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewRequest builds the request record for a task against one model.
func NewRequest(t Task, model string, gen config.Generate) Request {
	return Request{
		CustomID: t.CustomID(),
		Method:   "POST",
		URL:      "/v1/chat/completions",
		Body: Body{
			Model:       model,
			Messages:    []Message{{Role: "user", Content: Prompt(t, gen.PromptTemplate)}},
			MaxTokens:   gen.MaxTokens,
			Temperature: gen.Temperature,
		},
	}
}

// WriteRequests serializes one request per task into NDJSON files under
// dir, capped at gen.MaxRequestsPerFile records each. A single file is
// named <stem>.jsonl; overflow splits into <stem>-partNN.jsonl. Returns
// the written paths.
func WriteRequests(dir, model string, tasks []Task, gen config.Generate) ([]string, error) {
	stem := config.FileStem(model)
	ext := ".jsonl"
	if gen.Compress {
		ext = ".jsonl.gz"
	}

	parts := (len(tasks) + gen.MaxRequestsPerFile - 1) / gen.MaxRequestsPerFile
	if parts == 0 {
		return nil, fmt.Errorf("no tasks to write for model %s", model)
	}

	var paths []string
	for p := 0; p < parts; p++ {
		name := stem + ext
		if parts > 1 {
			name = fmt.Sprintf("%s-part%02d%s", stem, p+1, ext)
		}
		path := filepath.Join(dir, name)
		w, err := jsonl.NewWriter(path)
		if err != nil {
			return nil, fmt.Errorf("creating %s: %w", path, err)
		}
		lo := p * gen.MaxRequestsPerFile
		hi := min(lo+gen.MaxRequestsPerFile, len(tasks))
		for _, t := range tasks[lo:hi] {
			if err := w.Encode(NewRequest(t, model, gen)); err != nil {
				w.Close()
				return nil, fmt.Errorf("writing %s: %w", path, err)
			}
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("closing %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// WriteSeeds persists the seed table the merger later joins results
// against.
func WriteSeeds(path string, tasks []Task) error {
	w, err := jsonl.NewWriter(path)
	if err != nil {
		return fmt.Errorf("creating seeds file %s: %w", path, err)
	}
	for _, t := range tasks {
		if err := w.Encode(t); err != nil {
			w.Close()
			return fmt.Errorf("writing seeds file %s: %w", path, err)
		}
	}
	return w.Close()
}

// ReadSeeds loads the seed table keyed by custom id.
func ReadSeeds(path string) (map[string]Task, error) {
	byID := map[string]Task{}
	err := jsonl.Decode(path, func(t Task) error {
		byID[t.CustomID()] = t
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading seeds: %w", err)
	}
	if len(byID) == 0 {
		return nil, fmt.Errorf("seeds file %s is empty", path)
	}
	return byID, nil
}
