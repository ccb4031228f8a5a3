package transformations

import (
	"fmt"
	"strings"
)

// Subtree walks nested maps along path and returns the map found there
func Subtree(data interface{}, path ...string) (map[string]interface{}, error) {
	current, ok := data.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("expected a mapping at the root, got %T", data)
	}

	for i, key := range path {
		next, exists := current[key]
		if !exists {
			return nil, fmt.Errorf("missing key %q", strings.Join(path[:i+1], "."))
		}
		m, ok := next.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("expected a mapping at %q, got %T", strings.Join(path[:i+1], "."), next)
		}
		current = m
	}

	return current, nil
}

// Number converts a JSON-ish numeric value to float64
func Number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
