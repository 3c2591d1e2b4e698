// Package report summarizes the processed dataset per model, with an
// optional grouping dimension for a quick look at treatment effects.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fairlens/leaseaudit/internal/merge"
	"github.com/fairlens/leaseaudit/internal/parse"
)

type Summary struct {
	Model          string  `json:"model"`
	Group          string  `json:"group,omitempty"`
	N              int     `json:"n"`
	RefusalRate    float64 `json:"refusal_rate"`
	MeanAmount     float64 `json:"mean_amount"`
	MedianAmount   float64 `json:"median_amount"`
	MeanContentLen float64 `json:"mean_content_len"`
	TotalCostUSD   float64 `json:"total_cost_usd"`
}

// Generate aggregates rows and writes the chosen format. by selects a
// second grouping dimension: race, gender, occupation, or living.
func Generate(rows []merge.MergedRow, by, format string, w io.Writer) error {
	groupFn, err := groupFunc(by)
	if err != nil {
		return err
	}
	summaries := aggregate(rows, groupFn)

	switch format {
	case "markdown":
		return writeMarkdown(summaries, w)
	case "json":
		return writeJSON(summaries, w)
	case "", "table":
		return writeTable(summaries, w)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func groupFunc(by string) (func(merge.MergedRow) string, error) {
	switch by {
	case "":
		return func(merge.MergedRow) string { return "" }, nil
	case "race":
		return func(r merge.MergedRow) string { return r.Task.Race }, nil
	case "gender":
		return func(r merge.MergedRow) string { return r.Task.Gender }, nil
	case "occupation":
		return func(r merge.MergedRow) string { return labelControl(r.Task.Occupation) }, nil
	case "living":
		return func(r merge.MergedRow) string { return labelControl(r.Task.LivingStatus) }, nil
	default:
		return nil, fmt.Errorf("unknown grouping %q", by)
	}
}

func labelControl(v string) string {
	if v == "" {
		return "(control)"
	}
	return v
}

func aggregate(rows []merge.MergedRow, groupFn func(merge.MergedRow) string) []Summary {
	type accum struct {
		n          int
		refused    int
		amounts    []int64
		contentLen int
		cost       float64
	}
	byKey := map[string]*accum{}

	for _, r := range rows {
		key := r.Model + "\x00" + groupFn(r)
		a, ok := byKey[key]
		if !ok {
			a = &accum{}
			byKey[key] = a
		}
		a.n++
		a.contentLen += r.ContentLen
		a.cost += r.CostUSD
		if r.Refused || r.Status == merge.StatusMissing {
			a.refused++
		}
		if r.Status == string(parse.StatusOK) {
			a.amounts = append(a.amounts, r.Amount)
		}
	}

	var summaries []Summary
	for key, a := range byKey {
		model, group, _ := strings.Cut(key, "\x00")
		s := Summary{
			Model:          model,
			Group:          group,
			N:              a.n,
			RefusalRate:    float64(a.refused) / float64(a.n),
			MeanContentLen: float64(a.contentLen) / float64(a.n),
			TotalCostUSD:   a.cost,
		}
		if len(a.amounts) > 0 {
			var sum int64
			for _, v := range a.amounts {
				sum += v
			}
			s.MeanAmount = float64(sum) / float64(len(a.amounts))
			s.MedianAmount = median(a.amounts)
		}
		summaries = append(summaries, s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Model != summaries[j].Model {
			return summaries[i].Model < summaries[j].Model
		}
		return summaries[i].Group < summaries[j].Group
	})
	return summaries
}

func median(values []int64) float64 {
	sorted := append([]int64{}, values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid])
	}
	return float64(sorted[mid-1]+sorted[mid]) / 2
}

func writeTable(summaries []Summary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tGROUP\tN\tREFUSAL\tMEAN $\tMEDIAN $\tMEAN LEN\tCOST")
	fmt.Fprintln(tw, strings.Repeat("-", 80))
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.1f%%\t%.0f\t%.0f\t%.0f\t$%.2f\n",
			s.Model, s.Group, s.N, s.RefusalRate*100, s.MeanAmount, s.MedianAmount, s.MeanContentLen, s.TotalCostUSD)
	}
	return tw.Flush()
}

func writeMarkdown(summaries []Summary, w io.Writer) error {
	fmt.Fprintln(w, "| Model | Group | N | Refusal | Mean $ | Median $ | Mean Len | Cost |")
	fmt.Fprintln(w, "|---|---|---|---|---|---|---|---|")
	for _, s := range summaries {
		fmt.Fprintf(w, "| %s | %s | %d | %.1f%% | %.0f | %.0f | %.0f | $%.2f |\n",
			s.Model, s.Group, s.N, s.RefusalRate*100, s.MeanAmount, s.MedianAmount, s.MeanContentLen, s.TotalCostUSD)
	}
	return nil
}

func writeJSON(summaries []Summary, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summaries)
}
