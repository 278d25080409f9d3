package rules

import (
	"strings"
)

// pathValue navigates a document by a dot-separated key, returning nil if
// any segment is absent or the path descends into a non-object.
func pathValue(obj interface{}, key string) interface{} {
	if obj == nil {
		return nil
	}
	if key == "" {
		return obj
	}
	m, ok := obj.(map[string]interface{})
	if !ok {
		return nil
	}
	head, rest, _ := strings.Cut(key, ".")
	return pathValue(m[head], rest)
}

// pathValues collects the candidate values for a key: the value at the
// key itself plus, if a sibling "<key>Array" holds a sequence, each of
// its elements. Providers report remittance text either as a scalar or
// as such an array; this lets one rule match both shapes. Empty values
// are dropped.
func pathValues(doc map[string]interface{}, key string) []interface{} {
	values := []interface{}{}

	if v := pathValue(doc, key); v != nil && v != "" {
		values = append(values, v)
	}

	if arr, ok := pathValue(doc, key+"Array").([]interface{}); ok {
		for _, v := range arr {
			if v != nil && v != "" {
				values = append(values, v)
			}
		}
	}

	return values
}
