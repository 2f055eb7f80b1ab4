package csvimport

import (
	"time"

	"budgeteer/internal/core"
)

// previewSize bounds the row preview shown on the review step.
const previewSize = 10

// Summary is what the review step shows before commit.
type Summary struct {
	Count         int
	CreditTotal   float64
	DebitTotal    float64
	CategoryCount int
	MinDate       time.Time
	MaxDate       time.Time
	Preview       []CleanRow
}

// Summarize computes the review statistics over the fully resolved
// rows.
func Summarize(rows []CleanRow) Summary {
	s := Summary{Count: len(rows)}
	if len(rows) == 0 {
		return s
	}

	categories := make(map[string]bool)
	s.MinDate = rows[0].Date
	s.MaxDate = rows[0].Date

	for _, row := range rows {
		switch row.Category.Type {
		case core.Credit:
			s.CreditTotal += row.Amount
		case core.Debit:
			s.DebitTotal += row.Amount
		}
		categories[row.Category.Name] = true
		if row.Date.Before(s.MinDate) {
			s.MinDate = row.Date
		}
		if row.Date.After(s.MaxDate) {
			s.MaxDate = row.Date
		}
	}
	s.CategoryCount = len(categories)

	n := len(rows)
	if n > previewSize {
		n = previewSize
	}
	s.Preview = rows[:n]

	return s
}
