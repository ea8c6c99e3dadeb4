package utils

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
)

var ErrNotInteger = errors.New("value is not an integer")

// ToStringSlice keeps the string members of a decoded JSON array.
func ToStringSlice(slice []any) []string {
	stringSlice := make([]string, 0, len(slice))
	for _, v := range slice {
		if s, ok := v.(string); ok {
			stringSlice = append(stringSlice, s)
		}
	}
	return stringSlice
}

// ToInt64 converts a decoded JSON value to an int64. Numbers must be whole and
// within int64 range, and strings must be base-10 integers.
func ToInt64(v any) (int64, error) {
	switch n := v.(type) {
	case float64:
		// float64(math.MaxInt64) rounds up to 2^63, which is already out of range.
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, ErrNotInteger
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(n, 10, 64)
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	default:
		return 0, ErrNotInteger
	}
}
