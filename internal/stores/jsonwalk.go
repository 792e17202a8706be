package stores

import (
	"sort"
	"strings"
)

// maxWalkDepth bounds the recursive store-key search so malformed or
// attacker-shaped payloads cannot recurse unboundedly.
const maxWalkDepth = 8

// NamesFromValue applies the per-element name rule to a decoded JSON value.
// Arrays are scanned element by element: strings are taken as-is, objects
// yield the first present of storeName/name/store/location, or failing that
// any plausible string-valued field. Objects are searched recursively for
// store-keyed arrays.
func NamesFromValue(v interface{}) []string {
	switch t := v.(type) {
	case []interface{}:
		var out []string
		for _, el := range t {
			if name := nameFromElement(el); name != "" {
				out = append(out, name)
			}
		}
		return out
	case map[string]interface{}:
		return namesFromStoreKeys(t, 0)
	default:
		return nil
	}
}

// namesFromStoreKeys walks a decoded JSON tree looking for any key that
// contains "store" whose value is an array, and resolves each element
// through the name rule. Depth is capped.
func namesFromStoreKeys(v interface{}, depth int) []string {
	if depth > maxWalkDepth {
		return nil
	}
	var out []string
	switch t := v.(type) {
	case map[string]interface{}:
		for key, val := range t {
			if arr, ok := val.([]interface{}); ok && strings.Contains(strings.ToLower(key), "store") {
				for _, el := range arr {
					if name := nameFromElement(el); name != "" {
						out = append(out, name)
					}
				}
				continue
			}
			out = append(out, namesFromStoreKeys(val, depth+1)...)
		}
	case []interface{}:
		for _, el := range t {
			out = append(out, namesFromStoreKeys(el, depth+1)...)
		}
	}
	return out
}

var elementNameKeys = []string{"storeName", "name", "store", "location"}

func nameFromElement(el interface{}) string {
	switch t := el.(type) {
	case string:
		if plausibleName(t) {
			return strings.TrimSpace(t)
		}
	case map[string]interface{}:
		for _, key := range elementNameKeys {
			if s, ok := t[key].(string); ok && plausibleName(s) {
				return strings.TrimSpace(s)
			}
		}
		// Fall back to any string field in the plausible length range.
		// Keys are visited in sorted order so the pick is deterministic.
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if s, ok := t[k].(string); ok && plausibleName(s) && !numericOnly(s) {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}
