// Package core holds the domain entities shared by the web server,
// the import pipeline, and the CLI importer.
//
// This file contains amount parsing and validation. Amounts are
// float64 throughout; NaN is the "could not parse" sentinel, and is
// rejected anywhere an amount is actually used.
package core

import (
	"math"
	"strconv"
	"strings"
)

// CleanAmount strips everything except digits, commas, and periods
// from s and parses the remainder as a floating-point number. Commas
// are treated as thousands separators and removed. A string with no
// numeric content yields NaN.
//
// Examples:
//
//	CleanAmount("$1,234.56") -> 1234.56
//	CleanAmount("10.50")     -> 10.5
//	CleanAmount("abc")       -> NaN
func CleanAmount(s string) float64 {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' {
			return r
		}
		return -1
	}, s)
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// validAmount reports whether f is usable as a transaction or budget
// amount. NaN and infinities come from failed parses and are never
// valid; zero and negative amounts are rejected too.
func validAmount(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f > 0
}

// ValidAmount is the exported form of validAmount for callers that
// validate amounts outside an entity, e.g. column validators.
func ValidAmount(f float64) bool {
	return validAmount(f)
}
