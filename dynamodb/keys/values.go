package keys

import (
	"fmt"
	"strconv"
	"strings"
)

// lookup finds an attribute value and renders it as a key fragment.
// Dotted names walk nested maps: "user.id" reads values["user"]["id"].
func lookup(values map[string]any, attr string) (string, bool) {
	v, ok := values[attr]
	if !ok && strings.Contains(attr, ".") {
		v, ok = lookupPath(values, strings.Split(attr, "."))
	}
	if !ok || v == nil {
		return "", false
	}
	return ToString(v)
}

func lookupPath(values map[string]any, path []string) (any, bool) {
	var cur any = values
	for _, p := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// ToString renders a scalar attribute value the way it appears inside a key.
// Returns false for nil and for values that have no key representation.
func ToString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case *string:
		if t == nil {
			return "", false
		}
		return *t, true
	case []byte:
		return string(t), true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(t), true
	case fmt.Stringer:
		return t.String(), true
	default:
		return "", false
	}
}
