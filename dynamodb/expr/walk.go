package expr

import "sort"

// Equalities collects attribute = value bindings that hold for every match of
// e. Only equalities reachable through AND nodes contribute; anything under
// an OR, and every other operator, is ignored so that a key derived from the
// result can never widen or narrow the match.
func Equalities(e Expression) map[string]any {
	out := make(map[string]any)
	collectEqualities(e, out)
	return out
}

func collectEqualities(e Expression, out map[string]any) {
	switch n := e.(type) {
	case Binary:
		if n.Op == OpEq {
			if _, seen := out[n.Attribute]; !seen {
				out[n.Attribute] = n.Value
			}
		}
	case Logical:
		if n.Op != OpAnd {
			return
		}
		for _, c := range n.Children {
			collectEqualities(c, out)
		}
	}
}

// Attributes returns every attribute referenced by e, sorted and deduplicated.
func Attributes(e Expression) []string {
	seen := make(map[string]bool)
	var walk func(Expression)
	walk = func(e Expression) {
		switch n := e.(type) {
		case Binary:
			seen[n.Attribute] = true
		case Function:
			seen[n.Attribute] = true
		case Logical:
			for _, c := range n.Children {
				walk(c)
			}
		}
	}
	walk(e)
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Rename returns a copy of e with every attribute mapped through fn.
func Rename(e Expression, fn func(string) string) Expression {
	switch n := e.(type) {
	case Binary:
		n.Attribute = fn(n.Attribute)
		return n
	case Function:
		n.Attribute = fn(n.Attribute)
		return n
	case Logical:
		children := make([]Expression, len(n.Children))
		for i, c := range n.Children {
			children[i] = Rename(c, fn)
		}
		return Logical{Op: n.Op, Children: children}
	default:
		return e
	}
}

// Without returns e with every node on one of the excluded attributes
// removed, or nil when nothing remains. It mirrors what Compile drops.
func Without(e Expression, excluded map[string]bool) Expression {
	switch n := e.(type) {
	case Binary:
		if excluded[n.Attribute] {
			return nil
		}
		return n
	case Function:
		if excluded[n.Attribute] {
			return nil
		}
		return n
	case Logical:
		var kept []Expression
		for _, c := range n.Children {
			if k := Without(c, excluded); k != nil {
				kept = append(kept, k)
			}
		}
		switch len(kept) {
		case 0:
			return nil
		case 1:
			return kept[0]
		}
		return Logical{Op: n.Op, Children: kept}
	default:
		return nil
	}
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
