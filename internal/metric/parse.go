package metric

import (
	"strconv"
	"strings"
)

// suffix multipliers accepted by ParseNumber. Indian conventions (crore,
// lakh) appear alongside the western K/M/B/T because exchange payloads and
// scraped filings from NSE/BSE report magnitudes that way.
var magnitudes = map[string]float64{
	"k":     1e3,
	"m":     1e6,
	"mm":    1e6,
	"mn":    1e6,
	"b":     1e9,
	"bn":    1e9,
	"t":     1e12,
	"tn":    1e12,
	"l":     1e5,
	"lakh":  1e5,
	"lakhs": 1e5,
	"cr":    1e7,
	"crore": 1e7,
}

// ParseNumber extracts a float from a raw provider value. It accepts native
// numbers, and strings carrying currency symbols, thousands separators,
// percent signs, magnitude suffixes ("1.2B", "450Cr") or accounting-style
// parenthesised negatives. Unparseable input returns ok=false; it never
// panics and never returns an error, so a single bad field cannot take a
// whole payload down with it.
func ParseNumber(raw any) (float64, bool) {
	switch v := raw.(type) {
	case nil:
		return 0, false
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		return parseNumericString(v)
	default:
		return 0, false
	}
}

func parseNumericString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	switch strings.ToLower(s) {
	case "n/a", "na", "none", "null", "nil", "-", "--":
		return 0, false
	}

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}

	s = strings.TrimSpace(strings.Trim(s, "%"))
	for _, sym := range []string{"$", "₹", "€", "£", "¥", "Rs.", "Rs", "USD", "INR", "EUR"} {
		s = strings.TrimSpace(strings.TrimPrefix(s, sym))
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, false
	}

	mult := 1.0
	lower := strings.ToLower(s)
	for suffix, m := range magnitudes {
		if strings.HasSuffix(lower, suffix) {
			head := s[:len(s)-len(suffix)]
			if _, err := strconv.ParseFloat(head, 64); err == nil {
				mult = m
				s = head
				break
			}
		}
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		f = -f
	}
	return f * mult, true
}
