package bling

import (
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"bling-mirror/internal/model"
)

// Flatten turns nested objects into a single level, joining keys with sep:
// {"contato": {"id": 1}} becomes {"contato.id": 1}. Arrays are kept as values.
func Flatten(obj map[string]any, sep string) model.Row {
	out := make(model.Row, len(obj))
	flattenInto(out, "", obj, sep)
	return out
}

func flattenInto(out model.Row, prefix string, obj map[string]any, sep string) {
	for k, v := range obj {
		key := k
		if prefix != "" {
			key = prefix + sep + k
		}
		if nested, ok := v.(map[string]any); ok && len(nested) > 0 {
			flattenInto(out, key, nested, sep)
			continue
		}
		out[key] = v
	}
}

// AsInt64 converts an id-like value (json.Number, float, int or numeric string)
// to int64.
func AsInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	case float64:
		return floatToInt(n)
	case int:
		return int64(n), true
	case int64:
		return n, true
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	default:
		return 0, false
	}
}

// floatToInt accepts whole floats inside the int64 range. 2^63 itself is
// exactly representable as a float64 but not as an int64.
func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= -math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// AsString renders a scalar value as text; nil yields "".
func AsString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(s, 10)
	case int:
		return strconv.Itoa(s)
	default:
		b, err := json.Marshal(s)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
