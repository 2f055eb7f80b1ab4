package csvimport

import (
	"strconv"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"budgeteer/internal/core"
)

// Field is one of the four logical transaction fields a CSV column
// can be mapped to.
type Field string

const (
	FieldCategory Field = "category"
	FieldAmount   Field = "amount"
	FieldDate     Field = "date"
	FieldName     Field = "name"
)

// Fields lists the logical fields in the order the mapping form shows
// them.
var Fields = []Field{FieldCategory, FieldAmount, FieldDate, FieldName}

// Mapping assigns one CSV header to each logical field. An empty
// string means unassigned.
type Mapping struct {
	Category string
	Amount   string
	Date     string
	Name     string
}

// Get returns the header assigned to f.
func (m Mapping) Get(f Field) string {
	switch f {
	case FieldCategory:
		return m.Category
	case FieldAmount:
		return m.Amount
	case FieldDate:
		return m.Date
	case FieldName:
		return m.Name
	}
	return ""
}

// Assign sets the header for f, overriding any auto-match.
func (m *Mapping) Assign(f Field, header string) {
	switch f {
	case FieldCategory:
		m.Category = header
	case FieldAmount:
		m.Amount = header
	case FieldDate:
		m.Date = header
	case FieldName:
		m.Name = header
	}
}

// Complete reports whether every logical field has an assigned
// header. Per-field validity is advisory; completeness is what gates
// the step forward.
func (m Mapping) Complete() bool {
	return m.Category != "" && m.Amount != "" && m.Date != "" && m.Name != ""
}

// synonyms are exact (case-insensitive) header names per field, tried
// first.
var synonyms = map[Field][]string{
	FieldCategory: {"category", "type", "group"},
	FieldAmount:   {"amount", "value", "sum", "price"},
	FieldDate:     {"date", "day", "when"},
	FieldName:     {"name", "description", "store", "merchant", "payee"},
}

// substrings are matched anywhere in the header name when no exact
// synonym hits.
var substrings = map[Field][]string{
	FieldCategory: {"categ", "type"},
	FieldAmount:   {"amount", "cost", "total", "value"},
	FieldDate:     {"date", "day"},
	FieldName:     {"name", "desc", "store", "merchant"},
}

// maxEditDistance bounds the final fuzzy pass so "amuont" still finds
// the amount field without "note" matching "name".
const maxEditDistance = 2

// AutoMatch proposes a mapping for the given headers. Three passes
// per field: exact synonym, substring, then bounded edit distance.
// Each header is used at most once; the user may override any
// proposal afterwards.
func AutoMatch(headers []string) Mapping {
	var m Mapping
	used := make(map[string]bool)

	claim := func(f Field, header string) {
		m.Assign(f, header)
		used[header] = true
	}

	for _, f := range Fields {
		for _, h := range headers {
			if used[h] {
				continue
			}
			if containsFold(synonyms[f], h) {
				claim(f, h)
				break
			}
		}
	}

	for _, f := range Fields {
		if m.Get(f) != "" {
			continue
		}
		for _, h := range headers {
			if used[h] {
				continue
			}
			if matchesSubstring(substrings[f], h) {
				claim(f, h)
				break
			}
		}
	}

	for _, f := range Fields {
		if m.Get(f) != "" {
			continue
		}
		for _, h := range headers {
			if used[h] {
				continue
			}
			if withinEditDistance(synonyms[f], h) {
				claim(f, h)
				break
			}
		}
	}

	return m
}

func containsFold(candidates []string, header string) bool {
	for _, c := range candidates {
		if strings.EqualFold(c, header) {
			return true
		}
	}
	return false
}

func matchesSubstring(candidates []string, header string) bool {
	lower := strings.ToLower(header)
	for _, c := range candidates {
		if strings.Contains(lower, c) {
			return true
		}
	}
	return false
}

func withinEditDistance(candidates []string, header string) bool {
	lower := strings.ToLower(header)
	for _, c := range candidates {
		if levenshtein.ComputeDistance(c, lower) <= maxEditDistance {
			return true
		}
	}
	return false
}

// ValidateColumn checks whether every row's value in the column
// assigned to f satisfies that field's rules. The category and name
// columns only need a value present; the amount column needs every
// cleaned value to be a positive number; the date column needs every
// value to parse as a calendar date or be a bare day-of-month.
func ValidateColumn(d *Data, f Field, header string) bool {
	idx := headerIndex(d.Headers, header)
	if idx < 0 {
		return false
	}

	for _, row := range d.Rows {
		if idx >= len(row) {
			return false
		}
		v := row[idx]
		switch f {
		case FieldAmount:
			if !core.ValidAmount(core.CleanAmount(v)) {
				return false
			}
		case FieldDate:
			if _, ok := parseDate(v); !ok && !isDayNumber(v) {
				return false
			}
		}
	}
	return true
}

func headerIndex(headers []string, header string) int {
	for i, h := range headers {
		if h == header {
			return i
		}
	}
	return -1
}

// dateLayouts are the formats a full calendar date may arrive in.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02-01-2006",
	time.RFC3339,
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// isDayNumber reports whether s is an integer strictly between 0 and
// 32, i.e. a bare day-of-month deferred to the cleanup step.
func isDayNumber(s string) bool {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	return err == nil && n > 0 && n < 32
}
