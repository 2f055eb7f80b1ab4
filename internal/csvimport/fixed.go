package csvimport

import (
	"fmt"
	"strings"
)

// FixedRow is one data row of the fixed-shape CSV the CLI importer
// accepts: Type,Amount,Day,Store.
type FixedRow struct {
	Type   string
	Amount string
	Day    string
	Store  string
}

// fixedHeaders is the required header set, matched case-insensitively.
var fixedHeaders = []string{"Type", "Amount", "Day", "Store"}

// ParseFixed parses the CLI importer's CSV format. Unlike the
// interactive parser, fields are split on every comma (no quoting)
// and each data row must have exactly 4 fields; a fifth empty
// trailing field from a dangling comma is tolerated. Shape errors
// name the offending row.
func ParseFixed(text string) ([]FixedRow, error) {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, ErrEmptyFile
	}

	headers := splitTrim(lines[0])
	for _, want := range fixedHeaders {
		if !containsFold(headers, want) {
			return nil, fmt.Errorf("invalid csv headers, expected: %s", strings.Join(fixedHeaders, ", "))
		}
	}

	rows := make([]FixedRow, 0, len(lines)-1)
	for i, line := range lines[1:] {
		values := splitTrim(line)
		rowNum := i + 2
		// Only a dangling comma is tolerated past the 4 fields.
		if len(values) != 4 && !(len(values) == 5 && values[4] == "") {
			return nil, fmt.Errorf("row %d has %d values but expected exactly 4: %s", rowNum, len(values), strings.Join(values, ", "))
		}
		rows = append(rows, FixedRow{
			Type:   values[0],
			Amount: values[1],
			Day:    values[2],
			Store:  values[3],
		})
	}

	return rows, nil
}

func splitTrim(line string) []string {
	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
