package normalize

import (
	"strconv"
	"strings"
)

var bedroomWords = map[string]string{
	"one":   "1",
	"two":   "2",
	"three": "3",
	"four":  "4",
	"five":  "5",
	"six":   "6",
	"seven": "7",
	"eight": "8",
}

// Bedrooms maps number words to digits. Other values are returned trimmed
// and lower-cased.
func Bedrooms(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if digit, ok := bedroomWords[s]; ok {
		return digit
	}
	return s
}

// BedroomsValue normalizes a decoded JSON value (string or number).
func BedroomsValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return Bedrooms(val)
	case float64:
		return strconv.FormatInt(int64(val), 10)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case interface{ String() string }:
		return Bedrooms(val.String())
	default:
		return ""
	}
}

// BedroomCount returns the bedroom count as a positive integer, or 0 when the
// value is not numeric.
func BedroomCount(bedrooms string) int {
	n, err := strconv.Atoi(Bedrooms(bedrooms))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
