// Package models defines source records, suggestions, and the input keys shared across lmsearch.
package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Record is a source-provided result: an open mapping of attribute name to value.
// Its shape depends on configuration (display name, geometry as text, layer/type tag,
// foreign id, title, HTML content).
type Record map[string]interface{}

// String returns the attribute named key as a string. Missing or nil attributes yield "".
// Whole floats are formatted without a fraction so JSON ids like 1234 stay "1234".
func (r Record) String(key string) string {
	if r == nil || key == "" {
		return ""
	}
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
}

// Has reports whether key is present with a non-blank value.
func (r Record) Has(key string) bool {
	return strings.TrimSpace(r.String(key)) != ""
}

// Float returns the attribute as a float64, parsing strings when needed.
func (r Record) Float(key string) (float64, bool) {
	if r == nil {
		return 0, false
	}
	switch x := r[key].(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
