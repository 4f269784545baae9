// Package normalize converts free-text lead quantities into canonical values.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	leadingNumber = regexp.MustCompile(`\d+\.?\d*`)
	currencyCode  = regexp.MustCompile(`\b(EGP|USD|EUR|GBP|AED|SAR|LE)\b`)
	stripChars    = strings.NewReplacer(",", "", "$", "", "£", "", "€", "", " ", "", "\t", "")
)

// Budget parses amounts such as "8M", "5.5 million", "750k", "EGP 1,200,000"
// or "3500000.75" into whole currency units. Unparseable input yields 0.
func Budget(raw string) int64 {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return 0
	}
	s = currencyCode.ReplaceAllString(s, "")
	s = stripChars.Replace(s)

	multiplier := 1.0
	switch {
	case strings.Contains(s, "MILLION"), strings.Contains(s, "M"):
		multiplier = 1_000_000
	case strings.Contains(s, "THOUSAND"), strings.Contains(s, "K"):
		multiplier = 1_000
	}

	if multiplier == 1 {
		return plain(s)
	}

	num := leadingNumber.FindString(s)
	if num == "" {
		return 0
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	return clamp(math.Round(f * multiplier))
}

// plain keeps digits and the first decimal point, then truncates.
func plain(s string) int64 {
	var b strings.Builder
	seenDot := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' && !seenDot:
			seenDot = true
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0
	}
	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	return clamp(math.Trunc(f))
}

func clamp(f float64) int64 {
	if f <= 0 || math.IsNaN(f) {
		return 0
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(f)
}

// BudgetValue normalizes a decoded JSON value (string or number).
func BudgetValue(v interface{}) int64 {
	switch val := v.(type) {
	case nil:
		return 0
	case string:
		return Budget(val)
	case float64:
		return clamp(math.Trunc(val))
	case float32:
		return clamp(math.Trunc(float64(val)))
	case int:
		return clamp(float64(val))
	case int64:
		if val < 0 {
			return 0
		}
		return val
	case int32:
		return clamp(float64(val))
	case interface{ String() string }:
		return Budget(val.String())
	default:
		return 0
	}
}
