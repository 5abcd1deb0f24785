package protocol

// Lookup resolves the extension payload stored under key and normalizes it to
// a list of records. A bare object, an array of objects and a wrapper object
// whose only array field holds objects all produce the same list. Anything
// else, including a missing key, yields nil.
func Lookup(meta map[string]any, key string) []map[string]any {
	if meta == nil || key == "" {
		return nil
	}
	raw, ok := meta[key]
	if !ok || raw == nil {
		return nil
	}

	switch v := raw.(type) {
	case []any:
		return objects(v)
	case []map[string]any:
		return v
	case map[string]any:
		if list, ok := wrappedList(v); ok {
			return list
		}
		return []map[string]any{v}
	default:
		return nil
	}
}

// LookupOne returns the first record stored under key, or nil.
func LookupOne(meta map[string]any, key string) map[string]any {
	records := Lookup(meta, key)
	if len(records) == 0 {
		return nil
	}
	return records[0]
}

// wrappedList detects a container object: its only field is an array
// holding objects. An object with any sibling field is a record.
func wrappedList(m map[string]any) ([]map[string]any, bool) {
	if len(m) != 1 {
		return nil, false
	}
	for _, v := range m {
		if arr, ok := v.([]any); ok {
			list := objects(arr)
			return list, len(list) > 0
		}
	}
	return nil, false
}

func objects(items []any) []map[string]any {
	var out []map[string]any
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
