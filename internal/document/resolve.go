package document

import (
	"fmt"
	"strings"
)

// Resolve returns the value addressed by a dotted path. When the walk reaches a list, the remaining path is
// resolved against every element and the matches are flattened one level. Missing keys yield nil.
func Resolve(doc any, path string) any {
	if path == "" {
		return nil
	}
	return resolve(doc, strings.Split(path, "."))
}

func resolve(current any, keys []string) any {
	if len(keys) == 0 {
		return current
	}

	switch v := current.(type) {
	case []any:
		return fanOut(v, keys)
	case []map[string]any:
		items := make([]any, len(v))
		for i := range v {
			items[i] = v[i]
		}
		return fanOut(items, keys)
	case map[string]any:
		next, ok := v[keys[0]]
		if !ok {
			return nil
		}
		return resolve(next, keys[1:])
	default:
		return nil
	}
}

func fanOut(items []any, keys []string) any {
	var results []any
	for _, item := range items {
		res := resolve(item, keys)
		if res == nil {
			continue
		}
		if nested, ok := asList(res); ok {
			results = append(results, nested...)
			continue
		}
		results = append(results, res)
	}
	if len(results) == 0 {
		return nil
	}
	return results
}

// ResolveList resolves the path and returns it as a list of rows. A single table is treated as a one-row list.
func ResolveList(doc any, path string) ([]any, error) {
	v := Resolve(doc, path)
	if v == nil {
		return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
	}
	if list, ok := asList(v); ok {
		return list, nil
	}
	if table, ok := v.(map[string]any); ok {
		return []any{table}, nil
	}
	return nil, fmt.Errorf("%w: %s holds %T", ErrNotAList, path, v)
}

// FlattenKeys lists the dotted paths of every leaf in obj. Nested tables are descended into; arrays are leaves.
func FlattenKeys(obj map[string]any) []string {
	return flattenKeys(obj, "")
}

func flattenKeys(obj map[string]any, prefix string) []string {
	var keys []string
	for _, key := range sortedKeys(obj) {
		path := joinPath(prefix, key)
		if nested, ok := obj[key].(map[string]any); ok {
			keys = append(keys, flattenKeys(nested, path)...)
			continue
		}
		keys = append(keys, path)
	}
	return keys
}

func asList(v any) ([]any, bool) {
	switch list := v.(type) {
	case []any:
		return list, true
	case []map[string]any:
		out := make([]any, len(list))
		for i := range list {
			out[i] = list[i]
		}
		return out, true
	}
	return nil, false
}
