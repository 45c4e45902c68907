package types

// Action.Inputs and Action.Data round-trip through pkg/storage as JSON
// (every handler invocation reloads the action via GetAction): a number
// comes back as float64 and a string slice comes back as []interface{},
// never as the Go-native int/[]string a caller first stored. IntInput and
// StringSliceInput accept both shapes so verb handlers read inputs
// correctly whether the action was just constructed in-process or reloaded
// from the store.

// IntInput reads key from m as an int, accepting both a native int (an
// action built and used without a store round-trip, e.g. in tests) and a
// float64 (every value once it has passed through JSON).
func IntInput(m map[string]interface{}, key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

// StringSliceInput reads key from m as a []string, accepting both a
// native []string and the []interface{} JSON decodes a string array into.
func StringSliceInput(m map[string]interface{}, key string) ([]string, bool) {
	switch v := m[key].(type) {
	case []string:
		return v, true
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
