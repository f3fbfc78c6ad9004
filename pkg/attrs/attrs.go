// Package attrs works with flat key-value attribute slices of the form
// [key1, value1, key2, value2, ...], the shape audit emitters pass alongside
// events. Keys must be strings; values may be any type.
package attrs

// ExtractString extracts a string value from a key-value attribute slice.
// Returns empty string if the key is not found or the value is not a string.
func ExtractString(attrs []any, key string) string {
	for i := 0; i < len(attrs)-1; i += 2 {
		k, ok := attrs[i].(string)
		if !ok {
			continue
		}
		if k == key {
			if v, ok := attrs[i+1].(string); ok {
				return v
			}
		}
	}
	return ""
}

// Fold converts a key-value attribute slice into a map. Pairs with non-string
// keys are skipped; a trailing key without a value is dropped. Later values
// win on duplicate keys. Returns nil for an empty slice so callers can store
// the result directly without allocating empty maps.
func Fold(attrs []any) map[string]any {
	if len(attrs) < 2 {
		return nil
	}
	out := make(map[string]any, len(attrs)/2)
	for i := 0; i < len(attrs)-1; i += 2 {
		k, ok := attrs[i].(string)
		if !ok {
			continue
		}
		out[k] = attrs[i+1]
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
