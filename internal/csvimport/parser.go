// Package csvimport implements the CSV import pipeline: parse,
// header mapping, categorization, date cleanup, and review. The
// stages are driven by the Wizard state machine; the CLI importer
// uses the fixed-format entry point in fixed.go instead.
package csvimport

import (
	"errors"
	"fmt"
	"strings"
)

// Data is a parsed CSV grid: one header row and zero or more data
// rows.
type Data struct {
	Headers []string
	Rows    [][]string
}

var ErrEmptyFile = errors.New("csv file is empty")

// Parse splits raw CSV text into headers and rows.
//
// Fields are comma-separated; a field may be wrapped in double
// quotes, inside which commas are literal. This is a quote-toggle
// scanner, not RFC 4180: escaped quotes inside quoted fields are not
// handled. Values are trimmed and empty trimmed values are dropped.
// The whole file is rejected when any row's field count differs from
// the header count.
func Parse(text string) (*Data, error) {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, ErrEmptyFile
	}

	headers := parseLine(lines[0])
	rows := make([][]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		rows = append(rows, parseLine(line))
	}

	for i, row := range rows {
		if len(row) != len(headers) {
			return nil, fmt.Errorf("row %d has %d fields but the header has %d: all rows must have the same number of columns", i+2, len(row), len(headers))
		}
	}

	return &Data{Headers: headers, Rows: rows}, nil
}

// parseLine splits one line on commas outside double quotes. Each
// field is trimmed; fields that trim to the empty string are dropped.
func parseLine(line string) []string {
	var values []string
	var current strings.Builder
	inQuotes := false

	add := func() {
		v := strings.TrimSpace(current.String())
		if v != "" {
			values = append(values, v)
		}
		current.Reset()
	}

	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			add()
		default:
			current.WriteRune(r)
		}
	}
	add()
	return values
}
