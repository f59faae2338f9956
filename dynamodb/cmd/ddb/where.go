package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/acksell/dynaplan/dynamodb/expr"
	"github.com/acksell/dynaplan/dynamodb/relational"
)

// operators in match order; two-character operators first.
var operators = []string{">=", "<=", "!=", "^=", "=", ">", "<"}

// parseWhere ANDs conditions written as attr<op>value. Operators are
// = != < <= > >= and ^= (begins_with).
func parseWhere(conds []string) (expr.Expression, error) {
	if len(conds) == 0 {
		return nil, nil
	}
	parts := make([]expr.Expression, 0, len(conds))
	for _, c := range conds {
		e, err := parseCondition(c)
		if err != nil {
			return nil, err
		}
		parts = append(parts, e)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return expr.And(parts...), nil
}

func parseCondition(s string) (expr.Expression, error) {
	for _, op := range operators {
		i := strings.Index(s, op)
		if i <= 0 {
			continue
		}
		attr := strings.TrimSpace(s[:i])
		raw := strings.TrimSpace(s[i+len(op):])
		if op == "^=" {
			return expr.BeginsWith(attr, unquote(raw)), nil
		}
		v := literal(raw)
		switch op {
		case "=":
			return expr.Eq(attr, v), nil
		case "!=":
			return expr.Ne(attr, v), nil
		}
		return ordered(attr, op, v)
	}
	return nil, fmt.Errorf("condition %q: expected attr<op>value with one of %s", s, strings.Join(operators, " "))
}

func ordered(attr, op string, v any) (expr.Expression, error) {
	switch t := v.(type) {
	case int64:
		return orderedOf(attr, op, t), nil
	case float64:
		return orderedOf(attr, op, t), nil
	case string:
		return orderedOf(attr, op, t), nil
	}
	return nil, fmt.Errorf("condition on %q: %v cannot be ordered", attr, v)
}

func orderedOf[T int64 | float64 | string](attr, op string, v T) expr.Expression {
	switch op {
	case "<":
		return expr.Lt(attr, v)
	case "<=":
		return expr.Lte(attr, v)
	case ">":
		return expr.Gt(attr, v)
	default:
		return expr.Gte(attr, v)
	}
}

// literal reads numbers and booleans as such; anything else, or a quoted
// value, is a string.
func literal(raw string) any {
	if q := unquote(raw); q != raw {
		return q
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

func unquote(raw string) string {
	if len(raw) >= 2 && (raw[0] == '\'' || raw[0] == '"') && raw[len(raw)-1] == raw[0] {
		return raw[1 : len(raw)-1]
	}
	return raw
}

// parseValues reads key=value pairs for FindOptions.Values.
func parseValues(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("value %q: expected name=value", p)
		}
		out[k] = literal(v)
	}
	return out, nil
}

// parseWith turns dotted relation paths into nested includes:
// "posts.author" loads posts and each post's author.
func parseWith(paths []string) map[string]*relational.Include {
	if len(paths) == 0 {
		return nil
	}
	root := make(map[string]*relational.Include)
	for _, p := range paths {
		level := root
		for _, name := range strings.Split(p, ".") {
			if name == "" {
				continue
			}
			inc, ok := level[name]
			if !ok || inc == nil {
				inc = &relational.Include{}
				level[name] = inc
			}
			if inc.With == nil {
				inc.With = make(map[string]*relational.Include)
			}
			level = inc.With
		}
	}
	prune(root)
	return root
}

// prune drops empty With maps so leaves do not count as nested includes.
func prune(with map[string]*relational.Include) {
	for _, inc := range with {
		if len(inc.With) == 0 {
			inc.With = nil
			continue
		}
		prune(inc.With)
	}
}
