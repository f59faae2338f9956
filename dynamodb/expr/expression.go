// Package expr models DynamoDB conditions as an immutable tree and compiles
// them into placeholder based expression strings.
//
// Trees are built with the combinators in this package:
//
//	cond := expr.And(expr.Eq("status", "active"), expr.Between("age", 18, 65))
//
// and consumed by Compile, Equalities and Match.
package expr

import (
	"golang.org/x/exp/constraints"
)

// Expression is a node of a condition tree: Binary, Logical or Function.
type Expression interface {
	isExpression()
}

// Op is a comparison operator of a Binary node.
type Op string

const (
	OpEq      Op = "="
	OpNe      Op = "<>"
	OpLt      Op = "<"
	OpLte     Op = "<="
	OpGte     Op = ">="
	OpGt      Op = ">"
	OpBetween Op = "between"
	OpIn      Op = "in"
)

// LogicalOp joins the children of a Logical node.
type LogicalOp string

const (
	OpAnd LogicalOp = "AND"
	OpOr  LogicalOp = "OR"
)

// FuncOp is a DynamoDB condition function.
type FuncOp string

const (
	FuncBeginsWith         FuncOp = "begins_with"
	FuncContains           FuncOp = "contains"
	FuncAttributeExists    FuncOp = "attribute_exists"
	FuncAttributeNotExists FuncOp = "attribute_not_exists"
)

// Binary compares an attribute with a value. For OpBetween Value is a
// [2]any{low, high}; for OpIn it is a []any.
type Binary struct {
	Attribute string
	Op        Op
	Value     any
}

// Logical combines child expressions.
type Logical struct {
	Op       LogicalOp
	Children []Expression
}

// Function applies a condition function to an attribute.
type Function struct {
	Attribute string
	Op        FuncOp
	Value     any // unused by attribute_exists / attribute_not_exists
}

func (Binary) isExpression()   {}
func (Logical) isExpression()  {}
func (Function) isExpression() {}

func Eq(attr string, v any) Expression { return Binary{Attribute: attr, Op: OpEq, Value: v} }
func Ne(attr string, v any) Expression { return Binary{Attribute: attr, Op: OpNe, Value: v} }

func Lt[T constraints.Ordered](attr string, v T) Expression {
	return Binary{Attribute: attr, Op: OpLt, Value: v}
}

func Lte[T constraints.Ordered](attr string, v T) Expression {
	return Binary{Attribute: attr, Op: OpLte, Value: v}
}

func Gt[T constraints.Ordered](attr string, v T) Expression {
	return Binary{Attribute: attr, Op: OpGt, Value: v}
}

func Gte[T constraints.Ordered](attr string, v T) Expression {
	return Binary{Attribute: attr, Op: OpGte, Value: v}
}

// Between matches low <= attr <= high.
func Between[T constraints.Ordered](attr string, low, high T) Expression {
	return Binary{Attribute: attr, Op: OpBetween, Value: [2]any{low, high}}
}

// In matches when the attribute equals any of the values.
func In(attr string, values ...any) Expression {
	vs := make([]any, len(values))
	copy(vs, values)
	return Binary{Attribute: attr, Op: OpIn, Value: vs}
}

// And combines expressions; nil children are ignored.
func And(children ...Expression) Expression { return logical(OpAnd, children) }

// Or combines expressions; nil children are ignored.
func Or(children ...Expression) Expression { return logical(OpOr, children) }

func logical(op LogicalOp, children []Expression) Expression {
	kept := make([]Expression, 0, len(children))
	for _, c := range children {
		if c != nil {
			kept = append(kept, c)
		}
	}
	return Logical{Op: op, Children: kept}
}

func BeginsWith(attr, prefix string) Expression {
	return Function{Attribute: attr, Op: FuncBeginsWith, Value: prefix}
}

func Contains(attr string, v any) Expression {
	return Function{Attribute: attr, Op: FuncContains, Value: v}
}

func Exists(attr string) Expression {
	return Function{Attribute: attr, Op: FuncAttributeExists}
}

func NotExists(attr string) Expression {
	return Function{Attribute: attr, Op: FuncAttributeNotExists}
}

// Where builds an AND of equalities from a map, in sorted attribute order.
func Where(values map[string]any) Expression {
	if len(values) == 0 {
		return nil
	}
	names := sortedKeys(values)
	children := make([]Expression, len(names))
	for i, n := range names {
		children[i] = Eq(n, values[n])
	}
	if len(children) == 1 {
		return children[0]
	}
	return And(children...)
}
