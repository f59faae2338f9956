package expr

import (
	"fmt"
	"strings"
)

// Compile renders e as a DynamoDB condition string, allocating every name
// and value through p. Nodes on an excluded attribute are dropped; the
// empty string means nothing remains to compile.
func Compile(e Expression, p *Placeholders, excluded map[string]bool) (string, error) {
	if e == nil {
		return "", nil
	}
	switch n := e.(type) {
	case Logical:
		return compileLogical(n, p, excluded)
	case Binary:
		if excluded[n.Attribute] {
			return "", nil
		}
		return compileBinary(n, p)
	case Function:
		if excluded[n.Attribute] {
			return "", nil
		}
		return compileFunction(n, p)
	default:
		return "", fmt.Errorf("unsupported expression %T", e)
	}
}

func compileLogical(n Logical, p *Placeholders, excluded map[string]bool) (string, error) {
	if n.Op != OpAnd && n.Op != OpOr {
		return "", fmt.Errorf("unsupported logical operator %q", n.Op)
	}
	parts := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		s, err := Compile(c, p, excluded)
		if err != nil {
			return "", err
		}
		if s != "" {
			parts = append(parts, s)
		}
	}
	switch len(parts) {
	case 0:
		return "", nil
	case 1:
		return parts[0], nil
	}
	return "(" + strings.Join(parts, " "+string(n.Op)+" ") + ")", nil
}

func compileBinary(n Binary, p *Placeholders) (string, error) {
	name := p.Name(n.Attribute)
	switch n.Op {
	case OpEq, OpNe, OpLt, OpLte, OpGte, OpGt:
		v, err := p.Value(n.Value)
		if err != nil {
			return "", fmt.Errorf("attribute %q: %w", n.Attribute, err)
		}
		return name + " " + string(n.Op) + " " + v, nil
	case OpBetween:
		bounds, ok := n.Value.([2]any)
		if !ok {
			return "", fmt.Errorf("attribute %q: between needs [2]any bounds, got %T", n.Attribute, n.Value)
		}
		low, err := p.Value(bounds[0])
		if err != nil {
			return "", fmt.Errorf("attribute %q: %w", n.Attribute, err)
		}
		high, err := p.Value(bounds[1])
		if err != nil {
			return "", fmt.Errorf("attribute %q: %w", n.Attribute, err)
		}
		return name + " BETWEEN " + low + " AND " + high, nil
	case OpIn:
		values, ok := n.Value.([]any)
		if !ok || len(values) == 0 {
			return "", fmt.Errorf("attribute %q: in needs a non-empty []any, got %T", n.Attribute, n.Value)
		}
		phs := make([]string, len(values))
		for i, v := range values {
			ph, err := p.Value(v)
			if err != nil {
				return "", fmt.Errorf("attribute %q: %w", n.Attribute, err)
			}
			phs[i] = ph
		}
		return name + " IN (" + strings.Join(phs, ", ") + ")", nil
	default:
		return "", fmt.Errorf("attribute %q: unsupported operator %q", n.Attribute, n.Op)
	}
}

func compileFunction(n Function, p *Placeholders) (string, error) {
	name := p.Name(n.Attribute)
	switch n.Op {
	case FuncAttributeExists, FuncAttributeNotExists:
		return string(n.Op) + "(" + name + ")", nil
	case FuncBeginsWith, FuncContains:
		v, err := p.Value(n.Value)
		if err != nil {
			return "", fmt.Errorf("attribute %q: %w", n.Attribute, err)
		}
		return string(n.Op) + "(" + name + ", " + v + ")", nil
	default:
		return "", fmt.Errorf("attribute %q: unsupported function %q", n.Attribute, n.Op)
	}
}

// KeyCondition renders the key condition for a query: partition key
// equality, optionally AND a sort key equality.
func KeyCondition(p *Placeholders, pkName string, pkValue any, skName string, skValue any) (string, error) {
	cond, err := compileBinary(Binary{Attribute: pkName, Op: OpEq, Value: pkValue}, p)
	if err != nil {
		return "", err
	}
	if skName == "" {
		return cond, nil
	}
	sk, err := compileBinary(Binary{Attribute: skName, Op: OpEq, Value: skValue}, p)
	if err != nil {
		return "", err
	}
	return cond + " AND " + sk, nil
}

// KeyConditionPrefix renders a partition key equality AND begins_with on
// the sort key, for queries that select one item type of a collection.
func KeyConditionPrefix(p *Placeholders, pkName string, pkValue any, skName, prefix string) (string, error) {
	cond, err := compileBinary(Binary{Attribute: pkName, Op: OpEq, Value: pkValue}, p)
	if err != nil {
		return "", err
	}
	sk, err := compileFunction(Function{Attribute: skName, Op: FuncBeginsWith, Value: prefix}, p)
	if err != nil {
		return "", err
	}
	return cond + " AND " + sk, nil
}
