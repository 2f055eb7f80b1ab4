// Package validate checks untyped payloads (decoded JSON, form data)
// against the shapes the services expect.
//
// Checks accumulate into a Result carrying every violation found, so
// callers can report all problems at once. The default policy,
// matching the rest of the system, is single-first-error: Err()
// surfaces only the first violation.
package validate

import (
	"fmt"
	"math"
	"time"
)

// Violation describes a single failed check.
type Violation struct {
	Field   string
	Rule    string
	Message string
}

func (v Violation) Error() string {
	return v.Message
}

// Result is the outcome of validating one payload.
type Result struct {
	violations []Violation
}

// Add records a violation.
func (r *Result) Add(field, rule, message string) {
	r.violations = append(r.violations, Violation{Field: field, Rule: rule, Message: message})
}

// OK reports whether no violations were recorded.
func (r *Result) OK() bool {
	return len(r.violations) == 0
}

// Err returns the first violation as an error, or nil. This is the
// default single-error policy.
func (r *Result) Err() error {
	if len(r.violations) == 0 {
		return nil
	}
	return r.violations[0]
}

// Violations returns every recorded violation for multi-error
// reporting.
func (r *Result) Violations() []Violation {
	return r.violations
}

// Object asserts that v is a JSON object. On failure it records the
// given message and returns ok=false.
func Object(v any, r *Result, message string) (map[string]any, bool) {
	obj, ok := v.(map[string]any)
	if !ok || obj == nil {
		r.Add("", "object", message)
		return nil, false
	}
	return obj, true
}

// Require checks that every named field is present on obj. A single
// violation with the given message is recorded when any is absent,
// matching the one-message-per-operation contract.
func Require(obj map[string]any, r *Result, message string, fields ...string) bool {
	for _, f := range fields {
		if _, ok := obj[f]; !ok {
			r.Add(f, "required", message)
			return false
		}
	}
	return true
}

// Number extracts a numeric field. JSON numbers decode to float64;
// int variants are accepted for typed callers. NaN is never a number.
func Number(obj map[string]any, field, message string, r *Result) (float64, bool) {
	f, ok := asNumber(obj[field])
	if !ok {
		r.Add(field, "number", message)
		return 0, false
	}
	return f, true
}

// ID extracts a numeric field as an integer identifier.
func ID(obj map[string]any, field, message string, r *Result) (int64, bool) {
	f, ok := Number(obj, field, message, r)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// String extracts a string field.
func String(obj map[string]any, field, message string, r *Result) (string, bool) {
	s, ok := obj[field].(string)
	if !ok {
		r.Add(field, "string", message)
		return "", false
	}
	return s, true
}

// Date extracts a date field. Typed callers pass time.Time; JSON
// payloads carry RFC 3339 or plain YYYY-MM-DD strings.
func Date(obj map[string]any, field, message string, r *Result) (time.Time, bool) {
	switch v := obj[field].(type) {
	case time.Time:
		if v.IsZero() {
			break
		}
		return v, true
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}
	}
	r.Add(field, "date", message)
	return time.Time{}, false
}

// Array asserts that v is a JSON array.
func Array(v any, r *Result, message string) ([]any, bool) {
	arr, ok := v.([]any)
	if !ok {
		r.Add("", "array", message)
		return nil, false
	}
	return arr, true
}

// FieldMessage builds the standard "<field> must be a <kind>" message.
func FieldMessage(field, kind string) string {
	return fmt.Sprintf("%s must be a %s", field, kind)
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), !math.IsNaN(float64(n))
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
