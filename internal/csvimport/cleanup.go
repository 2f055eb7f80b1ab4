package csvimport

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"budgeteer/internal/core"
)

// CleanRow is a fully resolved import row: category, numeric amount,
// concrete date, name.
type CleanRow struct {
	Category core.Category
	Amount   float64
	Date     time.Time
	Name     string
}

// Target is the month and year bare day numbers are combined with.
type Target struct {
	Month int
	Year  int
}

var ErrTargetRequired = errors.New("target month and year required to resolve day-of-month values")

// IsBareDay reports whether s is a bare day-of-month number: an
// integer in [1,31] written with at most two characters. Two-digit
// years can be misclassified by this rule; that is an accepted
// limitation of the heuristic.
func IsBareDay(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) > 2 {
		return false
	}
	n, err := strconv.Atoi(s)
	return err == nil && n >= 1 && n <= 31
}

// NeedsTarget reports whether any row's date value is a bare day
// number, in which case Apply requires a Target.
func NeedsTarget(rows []CategorizedRow) bool {
	for _, row := range rows {
		if IsBareDay(row.Date) {
			return true
		}
	}
	return false
}

// Apply turns categorized rows into clean rows. Bare day numbers are
// combined with the target month and year; day 31 in a 30-day month
// rolls forward, which is accepted. Full dates pass through re-parsed
// as-is.
func Apply(rows []CategorizedRow, target *Target) ([]CleanRow, error) {
	if NeedsTarget(rows) && target == nil {
		return nil, ErrTargetRequired
	}

	clean := make([]CleanRow, 0, len(rows))
	for i, row := range rows {
		var date time.Time
		if IsBareDay(row.Date) {
			day, _ := strconv.Atoi(strings.TrimSpace(row.Date))
			date = time.Date(target.Year, time.Month(target.Month), day, 0, 0, 0, 0, time.UTC)
		} else {
			parsed, ok := parseDate(row.Date)
			if !ok {
				return nil, fmt.Errorf("row %d: invalid date %q", i+1, row.Date)
			}
			date = parsed
		}
		clean = append(clean, CleanRow{
			Category: row.Category,
			Amount:   row.Amount,
			Date:     date,
			Name:     row.Name,
		})
	}
	return clean, nil
}

var (
	yearFirstPattern  = regexp.MustCompile(`(\d{4})[-_](\d{1,2})`)
	yearSecondPattern = regexp.MustCompile(`(\d{1,2})[-_](\d{4})`)
	monthNamePattern  = regexp.MustCompile(`(january|jan|february|feb|march|mar|april|apr|may|june|jun|july|jul|august|aug|september|sep|october|oct|november|nov|december|dec)[-_](\d{4})`)
	nameSecondPattern = regexp.MustCompile(`(\d{4})[-_](january|jan|february|feb|march|mar|april|apr|may|june|jun|july|jul|august|aug|september|sep|october|oct|november|nov|december|dec)`)
)

var monthNames = map[string]int{
	"january": 1, "jan": 1,
	"february": 2, "feb": 2,
	"march": 3, "mar": 3,
	"april": 4, "apr": 4,
	"may":  5,
	"june": 6, "jun": 6,
	"july": 7, "jul": 7,
	"august": 8, "aug": 8,
	"september": 9, "sep": 9,
	"october": 10, "oct": 10,
	"november": 11, "nov": 11,
	"december": 12, "dec": 12,
}

// InferTarget pre-fills the cleanup target by pattern-matching the
// uploaded file name: "2025-03", "03-2025", "march-2025",
// "2025_march" and the underscore variants all work. When both
// numeric parts could be a month, the first is taken as the month;
// a part greater than 12 is taken as the year.
func InferTarget(filename string) (Target, bool) {
	name := strings.ToLower(filename)

	if m := monthNamePattern.FindStringSubmatch(name); m != nil {
		return checkTarget(monthNames[m[1]], atoi(m[2]))
	}
	if m := nameSecondPattern.FindStringSubmatch(name); m != nil {
		return checkTarget(monthNames[m[2]], atoi(m[1]))
	}
	if m := yearFirstPattern.FindStringSubmatch(name); m != nil {
		first, second := atoi(m[1]), atoi(m[2])
		if first > 12 {
			return checkTarget(second, first)
		}
		return checkTarget(first, second)
	}
	if m := yearSecondPattern.FindStringSubmatch(name); m != nil {
		first, second := atoi(m[1]), atoi(m[2])
		if second > 12 {
			return checkTarget(first, second)
		}
		return checkTarget(second, first)
	}
	return Target{}, false
}

func checkTarget(month, year int) (Target, bool) {
	if core.ValidMonth(month) && core.ValidYear(year) {
		return Target{Month: month, Year: year}, true
	}
	return Target{}, false
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
