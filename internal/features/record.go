package features

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Record is one raw loan application as received from a CSV row or a JSON body.
// Values are scalars of mixed type; accessors coerce them on read.
type Record map[string]any

// String returns the field as trimmed text, or "" when absent.
func (r Record) String(field string) string {
	switch v := r[field].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Float coerces the field to a number. Missing, unparsable or infinite values
// are NaN. Booleans map to 1/0 and a trailing percent sign is ignored
// ("13.5%" -> 13.5).
func (r Record) Float(field string) float64 {
	f := r.rawFloat(field)
	if math.IsInf(f, 0) {
		return math.NaN()
	}
	return f
}

func (r Record) rawFloat(field string) float64 {
	switch v := r[field].(type) {
	case nil:
		return math.NaN()
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		return parseNumber(v)
	default:
		return math.NaN()
	}
}

func parseNumber(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	if s == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// RecordFromRow builds a Record from a CSV header and row. Empty cells are
// treated as missing.
func RecordFromRow(header, row []string) Record {
	r := make(Record, len(header))
	for i, name := range header {
		if i >= len(row) {
			r[name] = nil
			continue
		}
		if row[i] == "" {
			r[name] = nil
			continue
		}
		r[name] = row[i]
	}
	return r
}
