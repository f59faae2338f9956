package expr

import (
	"bytes"
	"reflect"
	"strings"
)

// Match evaluates e against logical attribute values on the client. It is
// used where a predicate could not be sent to DynamoDB, e.g. after a
// GetItem or when a partition is fetched whole. A nil expression matches.
func Match(e Expression, values map[string]any) bool {
	switch n := e.(type) {
	case nil:
		return true
	case Logical:
		if n.Op == OpOr {
			for _, c := range n.Children {
				if Match(c, values) {
					return true
				}
			}
			return len(n.Children) == 0
		}
		for _, c := range n.Children {
			if !Match(c, values) {
				return false
			}
		}
		return true
	case Binary:
		v, ok := lookupValue(values, n.Attribute)
		if !ok {
			return n.Op == OpNe
		}
		return matchBinary(n, v)
	case Function:
		v, ok := lookupValue(values, n.Attribute)
		switch n.Op {
		case FuncAttributeExists:
			return ok
		case FuncAttributeNotExists:
			return !ok
		case FuncBeginsWith:
			s, isStr := v.(string)
			prefix, _ := n.Value.(string)
			return ok && isStr && strings.HasPrefix(s, prefix)
		case FuncContains:
			return ok && contains(v, n.Value)
		}
	}
	return false
}

func lookupValue(values map[string]any, path string) (any, bool) {
	if v, ok := values[path]; ok {
		return v, v != nil
	}
	var cur any = values
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[seg]; !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

func matchBinary(n Binary, v any) bool {
	switch n.Op {
	case OpEq:
		return equal(v, n.Value)
	case OpNe:
		return !equal(v, n.Value)
	case OpLt:
		c, ok := compare(v, n.Value)
		return ok && c < 0
	case OpLte:
		c, ok := compare(v, n.Value)
		return ok && c <= 0
	case OpGt:
		c, ok := compare(v, n.Value)
		return ok && c > 0
	case OpGte:
		c, ok := compare(v, n.Value)
		return ok && c >= 0
	case OpBetween:
		bounds, ok := n.Value.([2]any)
		if !ok {
			return false
		}
		lo, okLo := compare(v, bounds[0])
		hi, okHi := compare(v, bounds[1])
		return okLo && okHi && lo >= 0 && hi <= 0
	case OpIn:
		candidates, _ := n.Value.([]any)
		for _, c := range candidates {
			if equal(v, c) {
				return true
			}
		}
	}
	return false
}

func equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	if ba, ok := a.([]byte); ok {
		bb, ok := b.([]byte)
		return ok && bytes.Equal(ba, bb)
	}
	return reflect.DeepEqual(a, b)
}

// compare orders numbers, strings and binary values. Mixed kinds are not comparable.
func compare(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(sa, sb), true
	}
	if ba, ok := a.([]byte); ok {
		bb, ok := b.([]byte)
		if !ok {
			return 0, false
		}
		return bytes.Compare(ba, bb), true
	}
	return 0, false
}

func contains(haystack, needle any) bool {
	switch h := haystack.(type) {
	case string:
		s, ok := needle.(string)
		return ok && strings.Contains(h, s)
	case []byte:
		b, ok := needle.([]byte)
		return ok && bytes.Contains(h, b)
	}
	rv := reflect.ValueOf(haystack)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if equal(rv.Index(i).Interface(), needle) {
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
