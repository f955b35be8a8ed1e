package features

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var leadingInt = regexp.MustCompile(`\d+`)

var dateLayouts = []string{
	"Jan-2006",
	"2006-01-02",
	"2006-01",
	"01/02/2006",
	"Jan 2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// ParseTerm extracts the first integer of a duration string ("36 months" -> 36).
// Strings without digits give NaN.
func ParseTerm(s string) float64 {
	m := leadingInt.FindString(s)
	if m == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// ParseEmpLength converts an employment length to years. With stripUnits set
// (training), "10+ years" and "< 1 year" are normalised first. Anything that
// does not parse is 0.
func ParseEmpLength(s string, stripUnits bool) float64 {
	if stripUnits {
		s = strings.ReplaceAll(s, " years", "")
		s = strings.ReplaceAll(s, " year", "")
		s = strings.ReplaceAll(s, "+", "")
		s = strings.ReplaceAll(s, "< 1", "0")
	}
	v := parseNumber(s)
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// ParseDate tries the layouts seen in loan data exports.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// CreditHistoryDays is the whole number of days between the earliest credit
// line and the issue date, NaN if either date does not parse.
func CreditHistoryDays(issue, earliest string) float64 {
	it, ok := ParseDate(issue)
	if !ok {
		return math.NaN()
	}
	et, ok := ParseDate(earliest)
	if !ok {
		return math.NaN()
	}
	return math.Floor(it.Sub(et).Hours() / 24)
}

// Median of the non-NaN values, NaN when there are none.
func Median(values []float64) float64 {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return math.NaN()
	}
	sort.Float64s(clean)
	mid := len(clean) / 2
	if len(clean)%2 == 1 {
		return clean[mid]
	}
	return (clean[mid-1] + clean[mid]) / 2
}
