// Package parse extracts a single dollar amount from free-text model
// answers and classifies it against the plausible-rent bounds.
package parse

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

type Status string

const (
	StatusOK       Status = "OK"
	StatusRefused  Status = "REFUSED"
	StatusUnderMin Status = "INVALID_UNDER_MIN"
	StatusOverMax  Status = "INVALID_OVER_MAX"
	StatusError    Status = "PARSE_ERROR"
)

// Preferred band for the real answer; values outside it are only used
// as a fallback. Valid band for final classification.
const (
	MinPreferred = 2000
	MaxPreferred = 20000
	MinValid     = 2000
	MaxValid     = 200000
)

type Result struct {
	Amount int64  `json:"amount"`
	Status Status `json:"status"`
}

// Refused reports whether no usable number was extracted.
func (r Result) Refused() bool {
	return r.Status == StatusRefused || r.Status == StatusError
}

var amountRe = regexp.MustCompile(`\d[\d,]*\d|\d`)

// DollarStrict finds every digit run (grouping commas allowed, currency
// symbol irrelevant), prefers values in [MinPreferred, MaxPreferred],
// discards in-range values under half the in-range maximum to filter
// stray fees quoted next to the real figure, and falls back to the
// overall maximum when nothing lands in range. Numbers too large to
// convert yield StatusError rather than aborting the batch.
func DollarStrict(text string) Result {
	matches := amountRe.FindAllString(text, -1)
	if len(matches) == 0 {
		return Result{Status: StatusRefused}
	}

	var values []int64
	overflow := false
	for _, m := range matches {
		v, err := strconv.ParseInt(strings.ReplaceAll(m, ",", ""), 10, 64)
		if err != nil {
			overflow = true
			continue
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		if overflow {
			return Result{Status: StatusError}
		}
		return Result{Status: StatusRefused}
	}

	var inRange []int64
	var overallMax int64
	for _, v := range values {
		if v > overallMax {
			overallMax = v
		}
		if v >= MinPreferred && v <= MaxPreferred {
			inRange = append(inRange, v)
		}
	}

	var amount int64
	if len(inRange) > 0 {
		var rangeMax int64
		for _, v := range inRange {
			if v > rangeMax {
				rangeMax = v
			}
		}
		var sum, n int64
		for _, v := range inRange {
			if v*2 < rangeMax {
				continue
			}
			sum += v
			n++
		}
		amount = int64(math.Round(float64(sum) / float64(n)))
	} else {
		amount = overallMax
	}

	switch {
	case amount < MinValid:
		return Result{Amount: amount, Status: StatusUnderMin}
	case amount > MaxValid:
		return Result{Amount: amount, Status: StatusOverMax}
	default:
		return Result{Amount: amount, Status: StatusOK}
	}
}
