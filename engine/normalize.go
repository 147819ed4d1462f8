package engine

import (
	"fmt"
	"math/big"
	"time"
)

// normalizeValue folds a driver scalar into the portable value set:
// nil, string, int64, float64, bool, or RFC 3339 text for times.
// Anything outside the set is rendered as text rather than dropped.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return x
	case int64:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case int8:
		return int64(x)
	case uint64:
		if x > 1<<63-1 {
			return new(big.Int).SetUint64(x).String()
		}
		return int64(x)
	case uint32:
		return int64(x)
	case float64:
		return x
	case float32:
		return float64(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}

func normalizeRow(row []any) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = normalizeValue(v)
	}
	return out
}
