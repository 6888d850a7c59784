package common

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Value coercion for heterogeneous upstream fields. The financial summary
// endpoint returns numbers as JSON numbers, numeric strings with thousands
// separators, empty strings, or a full-width dash used as a "no data" marker.
// Every function here is total: malformed input yields nil/zero, never a panic.

// ToFloat converts an arbitrary upstream value to a float pointer.
// Returns nil for nil, NaN, empty strings, and anything non-numeric.
func ToFloat(value any) *float64 {
	switch v := value.(type) {
	case nil:
		return nil
	case float64:
		return floatPtr(v)
	case float32:
		return floatPtr(float64(v))
	case int:
		return floatPtr(float64(v))
	case int64:
		return floatPtr(float64(v))
	case json.Number:
		return parseFloatString(v.String())
	case string:
		return parseFloatString(v)
	}
	return nil
}

func parseFloatString(s string) *float64 {
	// Commas are thousands separators; the full-width dash marks missing data.
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "－", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return floatPtr(f)
}

func floatPtr(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// ToInt converts an arbitrary upstream value to an int pointer, truncating
// fractional values. Returns nil on any failure.
func ToInt(value any) *int64 {
	f := ToFloat(value)
	if f == nil {
		return nil
	}
	i := int64(*f)
	return &i
}

// IsValidValue reports whether a coerced financial value carries data.
// Zero is treated as "no data", not a legitimate reported value.
func IsValidValue(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && *v != 0
}

// Float returns the dereferenced value or 0 when nil.
func Float(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

var dateLayouts = []string{
	"2006-01-02",
	"20060102",
	"2006/01/02",
}

// ParseDate parses a date in YYYYMMDD, YYYY-MM-DD, or YYYY/MM/DD form.
// Longer ISO strings (timestamps) are truncated to the date portion.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if len(s) > 10 {
		s = s[:10]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeDate returns the canonical YYYY-MM-DD form, or "" when unparseable.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) == 10 && s[4] == '-' && s[7] == '-' {
		return s
	}
	if len(s) == 8 && isDigits(s) {
		return s[:4] + "-" + s[4:6] + "-" + s[6:8]
	}
	if t, ok := ParseDate(s); ok {
		return t.Format("2006-01-02")
	}
	return ""
}

// CompactDate returns the YYYYMMDD form, or "" when unparseable.
func CompactDate(s string) string {
	n := NormalizeDate(s)
	if n == "" {
		return ""
	}
	return strings.ReplaceAll(n, "-", "")
}

// ExtractYearMonth pulls (year, month) out of a date string in either
// supported format.
func ExtractYearMonth(s string) (int, int, bool) {
	t, ok := ParseDate(s)
	if !ok {
		return 0, 0, false
	}
	return t.Year(), int(t.Month()), true
}

// IsFutureDate reports whether the date string parses to a moment strictly
// after the reference time.
func IsFutureDate(s string, reference time.Time) bool {
	t, ok := ParseDate(s)
	if !ok {
		return false
	}
	return t.After(reference)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
