package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// tried in order; Parse accepts a trailing fraction after the seconds field
var dateLayouts = []string{
	"2006:002:15:04:05",
	"2006-01-02",
}

// CoerceValue trims strings and turns them into numbers or dates when the whole
// string parses as one. Other values pass through with JSON numbers as float64.
func CoerceValue(v any) any {
	s, ok := v.(string)
	if !ok {
		return plain(v)
	}
	s = strings.TrimSpace(s)
	if n, ok := parseNumber(s); ok {
		return n
	}
	if d, ok := parseDate(s); ok {
		return d
	}
	return s
}

// CoerceDate is CoerceValue without the numeric step.
func CoerceDate(v any) any {
	s, ok := v.(string)
	if !ok {
		return plain(v)
	}
	s = strings.TrimSpace(s)
	if d, ok := parseDate(s); ok {
		return d
	}
	return s
}

// CoerceID renders any identifier value as a trimmed string, digits exactly as sent.
func CoerceID(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return strings.TrimSpace(t.String())
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func parseNumber(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseDate(s string) (time.Time, bool) {
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

// plain converts json.Number leaves to float64 (or their string form when out of range).
func plain(v any) any {
	switch t := v.(type) {
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = plain(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	default:
		return v
	}
}
