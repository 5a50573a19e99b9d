package model

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

var textFields = []string{"message", "response", "text"}

// CoerceText turns an arbitrary payload value into display text. Strings and
// numbers are rendered directly; objects yield their first text-bearing field
// or, failing that, their JSON encoding. Anything unrenderable becomes "".
func CoerceText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case map[string]any:
		for _, key := range textFields {
			if s, ok := t[key].(string); ok {
				return s
			}
		}
		return marshalText(t)
	case Metadata:
		return CoerceText(map[string]any(t))
	case []any:
		return marshalText(t)
	default:
		return ""
	}
}

func marshalText(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// NormalizeMetadata always returns a usable map: JSON strings are decoded,
// bare lists are wrapped under "items" and anything else becomes empty.
func NormalizeMetadata(v any) Metadata {
	switch t := v.(type) {
	case Metadata:
		if t == nil {
			return Metadata{}
		}
		return t
	case map[string]any:
		if t == nil {
			return Metadata{}
		}
		return Metadata(t)
	case []any:
		return Metadata{"items": t}
	case string:
		return decodeMetadata([]byte(t))
	case []byte:
		return decodeMetadata(t)
	case json.RawMessage:
		return decodeMetadata(t)
	default:
		return Metadata{}
	}
}

func decodeMetadata(b []byte) Metadata {
	if len(strings.TrimSpace(string(b))) == 0 {
		return Metadata{}
	}
	var parsed any
	if err := json.Unmarshal(b, &parsed); err != nil {
		return Metadata{}
	}
	switch p := parsed.(type) {
	case map[string]any:
		return Metadata(p)
	case []any:
		return Metadata{"items": p}
	default:
		return Metadata{}
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp reads ISO-8601 strings, time values and unix milliseconds.
// Unrecognized input yields the zero time, which orders as the oldest value.
func ParseTimestamp(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case *time.Time:
		if t == nil {
			return time.Time{}
		}
		return *t
	case float64:
		return time.UnixMilli(int64(t)).UTC()
	case int64:
		return time.UnixMilli(t).UTC()
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return time.UnixMilli(n).UTC()
		}
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}
		}
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC()
			}
		}
	}
	return time.Time{}
}
