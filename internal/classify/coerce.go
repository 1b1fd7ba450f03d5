package classify

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// number coerces a decoded JSON value to a finite float64.
// Numeric strings are accepted since legacy producers often send "12".
func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// numberField reads raw[key] as a number. present is false when the key is absent or null.
func numberField(raw map[string]any, key string) (value float64, present bool, ok bool) {
	v, exists := raw[key]
	if !exists || v == nil {
		return 0, false, true
	}
	f, ok := number(v)
	return f, true, ok
}

// stringField reads raw[key] as a string, falling back to def when absent or not a string.
func stringField(raw map[string]any, key, def string) string {
	if s, ok := raw[key].(string); ok {
		return s
	}
	return def
}
