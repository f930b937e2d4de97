package option

import (
	"fmt"
	"math"
	"reflect"
	"sort"
)

// Normalize converts a decoded value into the canonical representation for t:
//
//	string, path, recipe  string
//	int                   int64
//	float                 float64
//	bool                  bool
//	list<s>               []any of s, order kept
//	set<s>                []any of s, sorted and deduplicated
//	map<s>                map[string]any of s
func Normalize(t Type, v any) (any, error) {
	switch t.Kind {
	case KindScalar:
		return normalizeScalar(t.Elem, v)
	case KindList, KindSet:
		items, ok := asSlice(v)
		if !ok {
			return nil, fmt.Errorf("expected %s, got %s", t, describe(v))
		}
		out := make([]any, 0, len(items))
		for i, item := range items {
			n, err := normalizeScalar(t.Elem, item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out = append(out, n)
		}
		if t.Kind == KindSet {
			out = SortedSet(out)
		}
		return out, nil
	case KindMap:
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected %s, got %s", t, describe(v))
		}
		out := make(map[string]any, len(m))
		for k, item := range m {
			n, err := normalizeScalar(t.Elem, item)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = n
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown kind for type %s", t)
}

func normalizeScalar(s Scalar, v any) (any, error) {
	switch s {
	case String, Path, Recipe:
		if str, ok := v.(string); ok {
			return str, nil
		}
	case Bool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case Int:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		case int32:
			return int64(n), nil
		case uint64:
			if n <= math.MaxInt64 {
				return int64(n), nil
			}
		case float64:
			if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
				return int64(n), nil
			}
		}
	case Float:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
	}
	return nil, fmt.Errorf("expected %s, got %s", s, describe(v))
}

func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out, true
	}
	return nil, false
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case int, int32, int64, uint64:
		return "int"
	case float32, float64:
		return "float"
	case []any, []string:
		return "list"
	case map[string]any:
		return "mapping"
	}
	return fmt.Sprintf("%T", v)
}

// Equal compares two normalized values.
func Equal(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// SortedSet returns the deduplicated members of items in canonical order.
func SortedSet(items []any) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		dup := false
		for _, seen := range out {
			if Equal(seen, item) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return compareScalar(out[i], out[j]) < 0
	})
	return out
}

func compareScalar(a, b any) int {
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case int64:
		if y, ok := b.(int64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case float64:
		if y, ok := b.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			}
			return 1
		}
	}
	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}

// RecipeRefs returns every recipe name referenced by a normalized value of
// type t, in value order. Empty names are skipped.
func RecipeRefs(t Type, v any) []string {
	if t.Elem != Recipe {
		return nil
	}
	var refs []string
	add := func(x any) {
		if s, ok := x.(string); ok && s != "" {
			refs = append(refs, s)
		}
	}
	switch t.Kind {
	case KindScalar:
		add(v)
	case KindList, KindSet:
		items, _ := v.([]any)
		for _, item := range items {
			add(item)
		}
	case KindMap:
		m, _ := v.(map[string]any)
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			add(m[k])
		}
	}
	return refs
}
