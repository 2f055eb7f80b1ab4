package core

import "time"

// MonthWindow returns the first and last instants of the given
// calendar month in UTC. Budgets always span exactly one such window,
// and lookups are done by interval overlap against it.
func MonthWindow(year, month int) (start, end time.Time) {
	start = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end
}

// PreviousMonth returns the (year, month) pair immediately before the
// given one.
func PreviousMonth(year, month int) (int, int) {
	t := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return t.Year(), int(t.Month())
}

// MonthName formats a (year, month) pair as its display name, which
// is also the name budgets are created with, e.g. "March 2025".
func MonthName(year, month int) string {
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format("January 2006")
}

// ValidMonth reports whether month is a calendar month number.
func ValidMonth(month int) bool {
	return month >= 1 && month <= 12
}

// ValidYear bounds years to the range the importer and budget pages
// accept.
func ValidYear(year int) bool {
	return year >= 1900 && year <= 2100
}
