// Package sizemath coerces untrusted numeric metadata. Every function accepts
// values of any type, including nil and malformed strings, and falls back to
// a caller-supplied default instead of failing.
package sizemath

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// UnknownSize is returned by FormatFileSize for missing or non-positive sizes
const UnknownSize = "Unknown size"

// Logger receives warnings for failed comparisons. It may be replaced at startup.
var Logger = slog.Default()

// ToFloat converts value to float64 or returns def
func ToFloat(value any, def float64) float64 {
	f, ok := parseFloat(value)
	if !ok {
		return def
	}
	return f
}

// ToInt converts value to int64 or returns def. Fractional values are truncated.
func ToInt(value any, def int64) int64 {
	f, ok := parseFloat(value)
	if !ok || f > math.MaxInt64 || f < math.MinInt64 {
		return def
	}
	return int64(f)
}

// GreaterThan reports a > b after coercing both sides to float64. Values that
// cannot be coerced count as 0 and are logged at warning level.
func GreaterThan(a, b any) bool {
	return coerce(a, "a") > coerce(b, "b")
}

// GreaterOrEqual reports a >= b with the same coercion rules as GreaterThan
func GreaterOrEqual(a, b any) bool {
	return coerce(a, "a") >= coerce(b, "b")
}

func coerce(v any, side string) float64 {
	f, ok := parseFloat(v)
	if !ok {
		if v != nil {
			Logger.Warn("size comparison coercion failed", "side", side, "value", fmt.Sprint(v))
		}
		return 0
	}
	return f
}

func parseFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return finite(f)
	case *int64:
		if v == nil {
			return 0, false
		}
		return float64(*v), true
	case *float64:
		if v == nil {
			return 0, false
		}
		return finite(*v)
	case *int:
		if v == nil {
			return 0, false
		}
		return float64(*v), true
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return finite(f)
	case bool:
		return 0, false
	}
	return 0, false
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// FormatFileSize renders bytes as KB/MB/GB with one decimal place
func FormatFileSize(value any) string {
	size := ToFloat(value, 0)
	if size <= 0 {
		return UnknownSize
	}

	sizeMB := size / (1024 * 1024)
	switch {
	case sizeMB < 1:
		return fmt.Sprintf("%.1f KB", size/1024)
	case sizeMB < 1024:
		return fmt.Sprintf("%.1f MB", sizeMB)
	default:
		return fmt.Sprintf("%.1f GB", sizeMB/1024)
	}
}

// Numeric fields of a raw format entry and the type they are coerced to
var (
	intFields   = []string{"width", "height", "fps", "view_count", "like_count", "dislike_count"}
	floatFields = []string{"filesize", "filesize_approx", "tbr", "abr", "vbr", "duration", "average_rating"}
)

// SanitizeNumeric returns a copy of entry where every known numeric field that
// is present holds an int64 or float64, defaulting to 0.
func SanitizeNumeric(entry map[string]any) map[string]any {
	if entry == nil {
		return nil
	}
	out := make(map[string]any, len(entry))
	for k, v := range entry {
		out[k] = v
	}
	for _, field := range intFields {
		if v, ok := out[field]; ok {
			out[field] = ToInt(v, 0)
		}
	}
	for _, field := range floatFields {
		if v, ok := out[field]; ok {
			out[field] = ToFloat(v, 0)
		}
	}
	return out
}
