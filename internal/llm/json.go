package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

var ErrNoJSONObject = errors.New("no JSON object in model output")

// ExtractJSON pulls a JSON object out of free-form model output. Code
// fences are stripped, then the span from the first '{' to the last '}' is
// tried, then the first balanced object.
func ExtractJSON(raw string) (string, error) {
	s := stripFences(strings.TrimSpace(raw))

	first := strings.Index(s, "{")
	last := strings.LastIndex(s, "}")
	if first < 0 || last <= first {
		return "", ErrNoJSONObject
	}
	if candidate := s[first : last+1]; json.Valid([]byte(candidate)) {
		return candidate, nil
	}

	for start := first; start >= 0; {
		if obj, ok := balancedFrom(s, start); ok && json.Valid([]byte(obj)) {
			return obj, nil
		}
		next := strings.Index(s[start+1:], "{")
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", ErrNoJSONObject
}

// DecodeJSON extracts an object from raw and unmarshals it into v.
func DecodeJSON(raw string, v interface{}) error {
	obj, err := ExtractJSON(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(obj), v)
}

func stripFences(s string) string {
	if !strings.Contains(s, "```") {
		return s
	}
	var b strings.Builder
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}

// balancedFrom returns the object starting at s[start] whose braces balance,
// skipping braces inside string literals.
func balancedFrom(s string, start int) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
