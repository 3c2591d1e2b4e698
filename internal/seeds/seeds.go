// Package seeds builds the balanced task set behind an audit run: the
// Cartesian product of applicant identity, occupation, living status,
// and replicate, each assigned a stable run id.
package seeds

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fairlens/leaseaudit/internal/names"
)

type Task struct {
	RunID        int    `json:"run_id"`
	Name         string `json:"name"`
	Gender       string `json:"gender"`
	Race         string `json:"race"`
	Occupation   string `json:"occupation"`
	LivingStatus string `json:"living_status"`
	Replicate    int    `json:"replicate"`
}

// CustomID is the request-correlation key carried through the request
// and result files.
func (t Task) CustomID() string {
	return fmt.Sprintf("task-%d", t.RunID)
}

// Build produces one task per (applicant × occupation × living ×
// replicate) combination with monotonically increasing run ids.
func Build(applicants []names.Applicant, occupations, livingStatuses []string, replicates int) []Task {
	var tasks []Task
	runID := 0
	for _, a := range applicants {
		for _, occ := range occupations {
			for _, living := range livingStatuses {
				for rep := 0; rep < replicates; rep++ {
					tasks = append(tasks, Task{
						RunID:        runID,
						Name:         a.FullName,
						Gender:       a.Gender,
						Race:         a.Race,
						Occupation:   occ,
						LivingStatus: living,
						Replicate:    rep,
					})
					runID++
				}
			}
		}
	}
	return tasks
}

// CheckBalance verifies the generation invariant: for each factor
// pair, every value combination must carry the same task count. A
// violation means malformed input data or a generation defect and
// aborts the run.
func CheckBalance(tasks []Task) error {
	if len(tasks) == 0 {
		return fmt.Errorf("no tasks generated")
	}
	pairs := []struct {
		name string
		key  func(Task) string
	}{
		{"gender x race", func(t Task) string { return t.Gender + "|" + t.Race }},
		{"race x occupation", func(t Task) string { return t.Race + "|" + t.Occupation }},
		{"occupation x living_status", func(t Task) string { return t.Occupation + "|" + t.LivingStatus }},
		{"gender x living_status", func(t Task) string { return t.Gender + "|" + t.LivingStatus }},
	}
	for _, p := range pairs {
		counts := map[string]int{}
		for _, t := range tasks {
			counts[p.key(t)]++
		}
		if err := uniform(counts); err != nil {
			return fmt.Errorf("unbalanced task counts for %s: %w", p.name, err)
		}
	}
	return nil
}

func uniform(counts map[string]int) error {
	want := -1
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if want == -1 {
			want = counts[k]
			continue
		}
		if counts[k] != want {
			return fmt.Errorf("group %q has %d tasks, expected %d", k, counts[k], want)
		}
	}
	return nil
}

// Prompt renders the natural-language prompt for a task. The template
// placeholders are {name}, {occupation}, and {living}; control values
// (empty strings) render as nothing so the no-treatment arm omits the
// clause entirely.
func Prompt(t Task, template string) string {
	occ := ""
	if t.Occupation != "" {
		occ = ", employed as a " + t.Occupation
	}
	living := ""
	if t.LivingStatus != "" {
		living = ", " + t.LivingStatus
	}
	r := strings.NewReplacer(
		"{name}", t.Name,
		"{occupation}", occ,
		"{living}", living,
	)
	return r.Replace(template)
}
