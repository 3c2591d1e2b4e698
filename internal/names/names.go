// Package names loads the applicant name source workbook and pairs
// first and last names within each race group.
package names

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

type First struct {
	Name   string
	Gender string
	Race   string
}

type Last struct {
	Name string
	Race string
}

type Applicant struct {
	FullName string
	Gender   string
	Race     string
}

// LoadWorkbook reads the two name sheets. The first-name sheet needs
// name/gender/race columns, the last-name sheet name/race. Header
// matching is case-insensitive.
func LoadWorkbook(path, firstSheet, lastSheet string) ([]First, []Last, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening workbook %s: %w", path, err)
	}
	defer f.Close()

	firstRows, err := f.GetRows(firstSheet)
	if err != nil {
		return nil, nil, fmt.Errorf("reading sheet %q: %w", firstSheet, err)
	}
	lastRows, err := f.GetRows(lastSheet)
	if err != nil {
		return nil, nil, fmt.Errorf("reading sheet %q: %w", lastSheet, err)
	}

	firsts, err := parseFirsts(firstRows, firstSheet)
	if err != nil {
		return nil, nil, err
	}
	lasts, err := parseLasts(lastRows, lastSheet)
	if err != nil {
		return nil, nil, err
	}
	return firsts, lasts, nil
}

func parseFirsts(rows [][]string, sheet string) ([]First, error) {
	cols, err := headerIndex(rows, sheet, "name", "gender", "race")
	if err != nil {
		return nil, err
	}
	var firsts []First
	for i, row := range rows[1:] {
		name := cell(row, cols["name"])
		if name == "" {
			continue
		}
		gender := cell(row, cols["gender"])
		race := cell(row, cols["race"])
		if gender == "" || race == "" {
			return nil, fmt.Errorf("sheet %q row %d: missing gender or race for %q", sheet, i+2, name)
		}
		firsts = append(firsts, First{Name: name, Gender: gender, Race: race})
	}
	if len(firsts) == 0 {
		return nil, fmt.Errorf("sheet %q: no first names", sheet)
	}
	return firsts, nil
}

func parseLasts(rows [][]string, sheet string) ([]Last, error) {
	cols, err := headerIndex(rows, sheet, "name", "race")
	if err != nil {
		return nil, err
	}
	var lasts []Last
	for i, row := range rows[1:] {
		name := cell(row, cols["name"])
		if name == "" {
			continue
		}
		race := cell(row, cols["race"])
		if race == "" {
			return nil, fmt.Errorf("sheet %q row %d: missing race for %q", sheet, i+2, name)
		}
		lasts = append(lasts, Last{Name: name, Race: race})
	}
	if len(lasts) == 0 {
		return nil, fmt.Errorf("sheet %q: no last names", sheet)
	}
	return lasts, nil
}

func headerIndex(rows [][]string, sheet string, want ...string) (map[string]int, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("sheet %q: missing header or data rows", sheet)
	}
	cols := map[string]int{}
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, w := range want {
		if _, ok := cols[w]; !ok {
			return nil, fmt.Errorf("sheet %q: missing column %q", sheet, w)
		}
	}
	return cols, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Pair builds applicants by pairing every first name with exactly
// perFirst last names drawn from the same race group. Pairings cycle
// through the race group in sheet order so repeated runs are stable,
// and name-count growth stays at O(firsts × perFirst) instead of the
// full cross product.
func Pair(firsts []First, lasts []Last, perFirst int) ([]Applicant, error) {
	if perFirst < 1 {
		return nil, fmt.Errorf("perFirst must be at least 1, got %d", perFirst)
	}
	byRace := map[string][]Last{}
	for _, l := range lasts {
		byRace[l.Race] = append(byRace[l.Race], l)
	}

	cursor := map[string]int{}
	var applicants []Applicant
	for _, f := range firsts {
		group := byRace[f.Race]
		if len(group) == 0 {
			return nil, fmt.Errorf("no last names for race %q (first name %q)", f.Race, f.Name)
		}
		// A group smaller than perFirst would pair the same last name
		// with one first twice, silently duplicating applicants.
		if len(group) < perFirst {
			return nil, fmt.Errorf("race %q has %d last names, need at least %d (first name %q)",
				f.Race, len(group), perFirst, f.Name)
		}
		for k := 0; k < perFirst; k++ {
			l := group[cursor[f.Race]%len(group)]
			cursor[f.Race]++
			applicants = append(applicants, Applicant{
				FullName: f.Name + " " + l.Name,
				Gender:   f.Gender,
				Race:     f.Race,
			})
		}
	}
	return applicants, nil
}
