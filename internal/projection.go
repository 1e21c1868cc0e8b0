package internal

import (
	"fmt"
	"time"

	"github.com/seaborne-data/restmed"
)

// pickItem returns a new item holding only the allowed fields, skipping
// fields the source does not carry. All write paths build their result
// payloads through this projection.
func pickItem(item restmed.Item, allow ...string) restmed.Item {
	result := make(restmed.Item, len(allow))
	for _, field := range allow {
		if value, ok := item[field]; ok {
			result[field] = value
		}
	}
	return result
}

// stripItem returns a copy of item without the denied fields. The source is
// never mutated; callers keep the original payload intact for error context.
func stripItem(item restmed.Item, deny ...string) restmed.Item {
	result := make(restmed.Item, len(item))
	for field, value := range item {
		result[field] = value
	}
	for _, field := range deny {
		delete(result, field)
	}
	return result
}

// isSystemField reports whether the field is storage-owned.
func isSystemField(name string) bool {
	for _, field := range restmed.SystemFields {
		if field == name {
			return true
		}
	}
	return false
}

// itemKeys returns the field names of an item. Order is non-deterministic.
func itemKeys(item restmed.Item) []string {
	keys := make([]string, 0, len(item))
	for key := range item {
		keys = append(keys, key)
	}
	return keys
}

// toFilterString renders an equality-filter value the way it would have
// arrived on a query string.
func toFilterString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// coerceTime interprets a loosely-typed timestamp value. JSON payloads carry
// RFC 3339 strings, stored rows carry time.Time, and callers occasionally
// hand over unix milliseconds.
func coerceTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return *v, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05.999999999 -0700 MST"} {
			if parsed, err := time.Parse(layout, v); err == nil {
				return parsed, true
			}
		}
		return time.Time{}, false
	case int64:
		return time.UnixMilli(v), true
	case float64:
		return time.UnixMilli(int64(v)), true
	default:
		return time.Time{}, false
	}
}
