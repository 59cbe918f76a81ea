package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// NormalizeValue maps a metadata value onto the types every store and the
// JSONL codec return: int64, float64, string and bool. Integers of any width
// become int64 (unsigned values above MaxInt64 become float64), times become
// RFC 3339 strings in UTC.
func NormalizeValue(v any) (any, error) {
	switch n := v.(type) {
	case string, bool, int64, float64:
		return v, nil
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint:
		return unsigned(uint64(n)), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return unsigned(n), nil
	case float32:
		return float64(n), nil
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		if f, err := n.Float64(); err == nil {
			return f, nil
		}
		return n.String(), nil
	case time.Time:
		return n.UTC().Format(time.RFC3339Nano), nil
	}
	return nil, fmt.Errorf("unsupported metadata type %T", v)
}

func unsigned(n uint64) any {
	if n > math.MaxInt64 {
		return float64(n)
	}
	return int64(n)
}

// NormalizeMetadata returns a normalized copy. Nil values are dropped.
func NormalizeMetadata(metadata map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		if v == nil {
			continue
		}
		nv, err := NormalizeValue(v)
		if err != nil {
			return nil, fmt.Errorf("metadata %q: %w", k, err)
		}
		out[k] = nv
	}
	return out, nil
}
