package expr_test

import (
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acksell/dynaplan/dynamodb/expr"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		name       string
		expr       expr.Expression
		want       string
		wantValues int
	}{
		{"nil", nil, "", 0},
		{"equality", expr.Eq("a", "x"), "#n0 = :v0", 1},
		{"and with between", expr.And(expr.Eq("a", 1), expr.Between("b", 1, 10)), "(#n0 = :v0 AND #n1 BETWEEN :v1 AND :v2)", 3},
		{"or", expr.Or(expr.Eq("a", 1), expr.Gt("a", 5)), "(#n0 = :v0 OR #n0 > :v1)", 2},
		{"in", expr.In("status", "a", "b", "c"), "#n0 IN (:v0, :v1, :v2)", 3},
		{"exists allocates no value", expr.Exists("a"), "attribute_exists(#n0)", 0},
		{"begins_with", expr.BeginsWith("sk", "POST#"), "begins_with(#n0, :v0)", 1},
		{"single child collapses", expr.And(expr.Eq("a", 1)), "#n0 = :v0", 1},
		{"empty logical", expr.And(), "", 0},
		{"nested path", expr.Eq("profile.name", "x"), "#n0.#n1 = :v0", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := expr.NewPlaceholders()
			got, err := expr.Compile(tt.expr, p, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Len(t, p.Values(), tt.wantValues)
		})
	}
}

func TestCompile_AndShape(t *testing.T) {
	p := expr.NewPlaceholders()
	got, err := expr.Compile(expr.And(expr.Eq("a", 1), expr.Between("b", 1, 10)), p, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(got, "("))
	assert.Equal(t, 1, strings.Count(got, ")"))
	assert.Contains(t, got, " AND ")
	assert.Equal(t, map[string]string{"#n0": "a", "#n1": "b"}, p.Names())
	assert.Equal(t, &types.AttributeValueMemberN{Value: "10"}, p.Values()[":v2"])
}

func TestCompile_Excluded(t *testing.T) {
	e := expr.And(expr.Eq("pk", "USER#1"), expr.Eq("status", "active"), expr.Or(expr.Eq("pk", "x")))
	p := expr.NewPlaceholders()
	got, err := expr.Compile(e, p, map[string]bool{"pk": true})
	require.NoError(t, err)

	assert.Equal(t, "#n0 = :v0", got)
	assert.Equal(t, map[string]string{"#n0": "status"}, p.Names())
	for _, v := range p.Values() {
		assert.NotEqual(t, &types.AttributeValueMemberS{Value: "USER#1"}, v)
	}

	p = expr.NewPlaceholders()
	got, err = expr.Compile(expr.Eq("pk", "x"), p, map[string]bool{"pk": true})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Nil(t, p.Names())
	assert.Nil(t, p.Values())
}

func TestCompile_Errors(t *testing.T) {
	_, err := expr.Compile(expr.Binary{Attribute: "a", Op: expr.OpBetween, Value: 1}, expr.NewPlaceholders(), nil)
	assert.Error(t, err)

	_, err = expr.Compile(expr.In("a"), expr.NewPlaceholders(), nil)
	assert.Error(t, err)

	_, err = expr.Compile(expr.Binary{Attribute: "a", Op: "~", Value: 1}, expr.NewPlaceholders(), nil)
	assert.Error(t, err)
}

func TestKeyCondition(t *testing.T) {
	p := expr.NewPlaceholders()
	got, err := expr.KeyCondition(p, "pk", "USER#1", "sk", "PROFILE")
	require.NoError(t, err)
	assert.Equal(t, "#n0 = :v0 AND #n1 = :v1", got)

	p = expr.NewPlaceholders()
	got, err = expr.KeyCondition(p, "pk", "USER#1", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "#n0 = :v0", got)

	p = expr.NewPlaceholders()
	got, err = expr.KeyConditionPrefix(p, "pk", "USER#1", "sk", "POST#")
	require.NoError(t, err)
	assert.Equal(t, "#n0 = :v0 AND begins_with(#n1, :v1)", got)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "POST#"}, p.Values()[":v1"])
}

func TestPlaceholders_Projection(t *testing.T) {
	p := expr.NewPlaceholders()
	assert.Equal(t, "#n0, #n1.#n2, #n0", p.Projection("a", "b.c", "a"))
	assert.Equal(t, "", p.Projection())
}

func TestEqualities(t *testing.T) {
	e := expr.And(
		expr.Eq("id", "1"),
		expr.And(expr.Eq("org", "acme"), expr.Gt("age", 3)),
		expr.Or(expr.Eq("status", "a"), expr.Eq("status", "b")),
		expr.Eq("id", "2"),
	)
	assert.Equal(t, map[string]any{"id": "1", "org": "acme"}, expr.Equalities(e))
	assert.Empty(t, expr.Equalities(expr.Or(expr.Eq("id", "1"))))
	assert.Empty(t, expr.Equalities(nil))
}

func TestAttributesAndRename(t *testing.T) {
	e := expr.And(expr.Eq("b", 1), expr.Or(expr.Eq("a", 2), expr.Exists("c")))
	assert.Equal(t, []string{"a", "b", "c"}, expr.Attributes(e))

	renamed := expr.Rename(e, strings.ToUpper)
	assert.Equal(t, []string{"A", "B", "C"}, expr.Attributes(renamed))
	assert.Equal(t, []string{"a", "b", "c"}, expr.Attributes(e))

	without := expr.Without(e, map[string]bool{"a": true, "c": true})
	assert.Equal(t, []string{"b"}, expr.Attributes(without))
}

func TestMatch(t *testing.T) {
	item := map[string]any{
		"id":     "1",
		"age":    float64(30),
		"status": "active",
		"tags":   []any{"x", "y"},
		"meta":   map[string]any{"plan": "pro"},
	}
	tests := []struct {
		name string
		expr expr.Expression
		want bool
	}{
		{"nil matches", nil, true},
		{"eq numeric normalised", expr.Eq("age", 30), true},
		{"ne missing attribute", expr.Ne("missing", 1), true},
		{"eq missing attribute", expr.Eq("missing", 1), false},
		{"between", expr.Between("age", 18, 65), true},
		{"lt", expr.Lt("age", 18), false},
		{"in", expr.In("status", "deleted", "active"), true},
		{"begins_with", expr.BeginsWith("status", "act"), true},
		{"contains list", expr.Contains("tags", "y"), true},
		{"contains string", expr.Contains("status", "tiv"), true},
		{"exists", expr.Exists("meta.plan"), true},
		{"not exists", expr.NotExists("meta.seats"), true},
		{"nested eq", expr.Eq("meta.plan", "pro"), true},
		{"and short circuits", expr.And(expr.Eq("id", "1"), expr.Eq("status", "gone")), false},
		{"or", expr.Or(expr.Eq("id", "2"), expr.Eq("status", "active")), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expr.Match(tt.expr, item))
		})
	}
}

func TestCompileUpdate(t *testing.T) {
	state := expr.NewUpdateState(map[string]any{
		"name":    "bob",
		"count":   expr.Add(1),
		"old":     nil,
		"legacy":  expr.Remove(),
		"tags":    expr.Delete([]string{"a"}),
		"history": expr.ListAppend([]string{"x"}),
		"created": expr.IfNotExists("2024-01-01"),
	})

	p := expr.NewPlaceholders()
	got, err := expr.CompileUpdate(state, p)
	require.NoError(t, err)

	set := strings.Index(got, "SET ")
	add := strings.Index(got, "ADD ")
	remove := strings.Index(got, "REMOVE ")
	del := strings.Index(got, "DELETE ")
	require.True(t, set >= 0 && add > set && remove > add && del > remove, got)

	names := p.Names()
	byName := make(map[string]string, len(names))
	for ph, n := range names {
		byName[n] = ph
	}
	assert.Contains(t, got, byName["history"]+" = list_append("+byName["history"]+", ")
	assert.Contains(t, got, byName["created"]+" = if_not_exists("+byName["created"]+", ")
	assert.Contains(t, got, "REMOVE "+byName["legacy"]+", "+byName["old"])
	assert.ElementsMatch(t, []string{"count", "created", "history", "legacy", "name", "old", "tags"}, state.Attributes())
}

func TestCompileUpdate_SetOperands(t *testing.T) {
	tests := []struct {
		name  string
		value expr.UpdateAction
		want  types.AttributeValue
	}{
		{name: "delete strings", value: expr.Delete([]string{"a", "b"}), want: &types.AttributeValueMemberSS{Value: []string{"a", "b"}}},
		{name: "add strings", value: expr.Add([]string{"b"}), want: &types.AttributeValueMemberSS{Value: []string{"b"}}},
		{name: "add numbers", value: expr.Add([]int{1, 2}), want: &types.AttributeValueMemberNS{Value: []string{"1", "2"}}},
		{name: "delete binary", value: expr.Delete([][]byte{{1}}), want: &types.AttributeValueMemberBS{Value: [][]byte{{1}}}},
		{name: "add counter", value: expr.Add(5), want: &types.AttributeValueMemberN{Value: "5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := expr.NewPlaceholders()
			_, err := expr.CompileUpdate(expr.NewUpdateState(map[string]any{"tags": tt.value}), p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Values()[":v0"])
		})
	}

	_, err := expr.CompileUpdate(expr.NewUpdateState(map[string]any{"tags": expr.Delete([]any{"a", 1})}), expr.NewPlaceholders())
	assert.Error(t, err)
	_, err = expr.CompileUpdate(expr.NewUpdateState(map[string]any{"tags": expr.Add([]string{})}), expr.NewPlaceholders())
	assert.Error(t, err)
}

func TestCompileUpdate_OmitsEmptyClauses(t *testing.T) {
	p := expr.NewPlaceholders()
	got, err := expr.CompileUpdate(expr.NewUpdateState(map[string]any{"a": 1}), p)
	require.NoError(t, err)
	assert.Equal(t, "SET #n0 = :v0", got)

	assert.True(t, expr.NewUpdateState(nil).IsEmpty())
}

func TestCompileUpdate_Deterministic(t *testing.T) {
	values := map[string]any{"c": 1, "a": 2, "b": expr.Add(3), "d": nil}
	first, err := expr.CompileUpdate(expr.NewUpdateState(values), expr.NewPlaceholders())
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := expr.CompileUpdate(expr.NewUpdateState(values), expr.NewPlaceholders())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, "SET #n0 = :v0, #n1 = :v1 ADD #n2 :v2 REMOVE #n3", first)
}
