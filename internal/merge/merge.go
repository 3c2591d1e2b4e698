package merge

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/fairlens/leaseaudit/internal/config"
	"github.com/fairlens/leaseaudit/internal/parse"
	"github.com/fairlens/leaseaudit/internal/pricing"
	"github.com/fairlens/leaseaudit/internal/seeds"
)

// StatusMissing marks seed rows with no result when merging with
// AllowMissing; it distinguishes "never answered" from "refused".
const StatusMissing = "MISSING"

type MergedRow struct {
	CustomID     string
	Model        string
	Task         seeds.Task
	Amount       int64
	Status       string
	Refused      bool
	ContentLen   int
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

type Options struct {
	Config       *config.Config
	Logger       *zap.Logger
	Pricing      *pricing.Table
	AllowMissing bool
}

// Merge joins normalized result rows to the seed table, verifies the
// completeness invariant, and derives the numeric columns. The join is
// inner by default: result rows without a seed are dropped (and
// counted loudly), seeds without a result trip the invariant.
func Merge(opts *Options, rows []Row, seedsByID map[string]seeds.Task) ([]MergedRow, error) {
	cfg := opts.Config
	log := opts.Logger

	dropped := 0
	var merged []MergedRow
	modelSet := map[string]bool{}
	answered := map[string]bool{}

	for _, row := range rows {
		canonical := canonicalModel(cfg, row.Model)
		modelSet[canonical] = true

		task, ok := seedsByID[row.CustomID]
		if !ok {
			dropped++
			continue
		}
		answered[canonical+"|"+row.CustomID] = true

		m := derive(opts, row, canonical, task)
		merged = append(merged, m)
	}
	if dropped > 0 {
		log.Warn("dropped result rows with no matching seed", zap.Int("count", dropped))
	}
	if len(merged) == 0 {
		return nil, fmt.Errorf("no result rows matched the seed table")
	}

	// Completeness invariant: every seeded task answered by every
	// model, no duplicates, no gaps. Gaps are measured against the
	// seed table, so a task no model answered still counts.
	want := len(seedsByID) * len(modelSet)
	if len(merged) != want {
		if !opts.AllowMissing {
			return nil, fmt.Errorf("merge invariant violated: %d merged rows, expected %d (%d custom_ids x %d models); results are missing or duplicated",
				len(merged), want, len(seedsByID), len(modelSet))
		}
		log.Warn("merge invariant violated, retaining gaps as MISSING rows",
			zap.Int("rows", len(merged)),
			zap.Int("expected", want))
		for model := range modelSet {
			for id, task := range seedsByID {
				if answered[model+"|"+id] {
					continue
				}
				merged = append(merged, MergedRow{
					CustomID: id,
					Model:    model,
					Task:     task,
					Status:   StatusMissing,
				})
			}
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Model != merged[j].Model {
			return merged[i].Model < merged[j].Model
		}
		return merged[i].Task.RunID < merged[j].Task.RunID
	})
	return merged, nil
}

func derive(opts *Options, row Row, canonical string, task seeds.Task) MergedRow {
	m := MergedRow{
		CustomID:     row.CustomID,
		Model:        canonical,
		Task:         task,
		ContentLen:   len(row.Content),
		InputTokens:  row.InputTokens,
		OutputTokens: row.OutputTokens,
	}
	res := parse.DollarStrict(row.Content)
	m.Amount = res.Amount
	m.Status = string(res.Status)
	m.Refused = res.Refused()
	if res.Status == parse.StatusError {
		opts.Logger.Warn("numeric extraction failed",
			zap.String("custom_id", row.CustomID),
			zap.String("model", canonical))
	}
	if opts.Pricing != nil {
		if cm, ok := opts.Config.ModelByName(row.Model); ok && cm.IsHosted() {
			m.CostUSD = opts.Pricing.Cost(cm.Provider, config.FileStem(cm.Name), row.InputTokens, row.OutputTokens)
		}
	}
	return m
}

// canonicalModel maps hosted model identifiers to their
// provider-prefixed form and leaves self-hosted identifiers unchanged.
func canonicalModel(cfg *config.Config, model string) string {
	if m, ok := cfg.ModelByName(model); ok {
		return m.Canonical()
	}
	if m, ok := cfg.ModelByStem(config.FileStem(model)); ok {
		return m.Canonical()
	}
	return model
}
