package expr

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ActionKind selects the update clause an action belongs to.
type ActionKind string

const (
	ActionSet    ActionKind = "SET"
	ActionAdd    ActionKind = "ADD"
	ActionRemove ActionKind = "REMOVE"
	ActionDelete ActionKind = "DELETE"
)

// UpdateFunc is a function usable on the right hand side of SET.
type UpdateFunc string

const (
	FuncListAppend  UpdateFunc = "list_append"
	FuncIfNotExists UpdateFunc = "if_not_exists"
)

// UpdateAction tags a value in an update map with the clause it belongs to.
// Untagged values are plain SET assignments.
type UpdateAction struct {
	Kind  ActionKind
	Value any
	// Func wraps the SET value, rendering fn(path, value) when
	// UsePathAsFirstArg is set and fn(value) otherwise.
	Func              UpdateFunc
	UsePathAsFirstArg bool
}

func Set(v any) UpdateAction    { return UpdateAction{Kind: ActionSet, Value: v} }
func Add(v any) UpdateAction    { return UpdateAction{Kind: ActionAdd, Value: v} }
func Remove() UpdateAction      { return UpdateAction{Kind: ActionRemove} }
func Delete(v any) UpdateAction { return UpdateAction{Kind: ActionDelete, Value: v} }

// ListAppend appends v to the list stored at the attribute: SET a = list_append(a, :v).
func ListAppend(v any) UpdateAction {
	return UpdateAction{Kind: ActionSet, Value: v, Func: FuncListAppend, UsePathAsFirstArg: true}
}

// IfNotExists sets the attribute only when it is absent: SET a = if_not_exists(a, :v).
func IfNotExists(v any) UpdateAction {
	return UpdateAction{Kind: ActionSet, Value: v, Func: FuncIfNotExists, UsePathAsFirstArg: true}
}

// SetEntry is one assignment of the SET clause.
type SetEntry struct {
	Value             any
	Func              UpdateFunc
	UsePathAsFirstArg bool
}

// UpdateState is an update split into its four clauses. Build it with
// NewUpdateState; it is not modified afterwards.
type UpdateState struct {
	Set    map[string]SetEntry
	Add    map[string]any
	Remove []string
	Delete map[string]any
}

// NewUpdateState partitions a map of attribute -> value. Values may be
// literals (SET), UpdateAction / *UpdateAction (their clause), or nil (REMOVE).
func NewUpdateState(values map[string]any) UpdateState {
	s := UpdateState{
		Set:    make(map[string]SetEntry),
		Add:    make(map[string]any),
		Delete: make(map[string]any),
	}
	for _, attr := range sortedKeys(values) {
		v := values[attr]
		if pa, ok := v.(*UpdateAction); ok && pa != nil {
			v = *pa
		}
		a, ok := v.(UpdateAction)
		if !ok {
			if v == nil {
				s.Remove = append(s.Remove, attr)
				continue
			}
			s.Set[attr] = SetEntry{Value: v}
			continue
		}
		switch a.Kind {
		case ActionAdd:
			s.Add[attr] = a.Value
		case ActionRemove:
			s.Remove = append(s.Remove, attr)
		case ActionDelete:
			s.Delete[attr] = a.Value
		default:
			s.Set[attr] = SetEntry{Value: a.Value, Func: a.Func, UsePathAsFirstArg: a.UsePathAsFirstArg}
		}
	}
	return s
}

// IsEmpty reports whether the update has no clauses.
func (s UpdateState) IsEmpty() bool {
	return len(s.Set) == 0 && len(s.Add) == 0 && len(s.Remove) == 0 && len(s.Delete) == 0
}

// Attributes lists the attributes touched by the update, sorted.
func (s UpdateState) Attributes() []string {
	seen := make(map[string]bool)
	for k := range s.Set {
		seen[k] = true
	}
	for k := range s.Add {
		seen[k] = true
	}
	for _, k := range s.Remove {
		seen[k] = true
	}
	for k := range s.Delete {
		seen[k] = true
	}
	return sortedKeys(seen)
}

// Clone returns a copy whose buckets can be modified independently.
func (s UpdateState) Clone() UpdateState {
	return s.Rename(func(attr string) string { return attr })
}

// Rename returns a copy with every attribute mapped through fn.
func (s UpdateState) Rename(fn func(string) string) UpdateState {
	out := UpdateState{
		Set:    make(map[string]SetEntry, len(s.Set)),
		Add:    make(map[string]any, len(s.Add)),
		Remove: make([]string, len(s.Remove)),
		Delete: make(map[string]any, len(s.Delete)),
	}
	for k, v := range s.Set {
		out.Set[fn(k)] = v
	}
	for k, v := range s.Add {
		out.Add[fn(k)] = v
	}
	for i, k := range s.Remove {
		out.Remove[i] = fn(k)
	}
	for k, v := range s.Delete {
		out.Delete[fn(k)] = v
	}
	return out
}

// CompileUpdate renders the UpdateExpression. Clauses always appear in the
// order SET, ADD, REMOVE, DELETE and empty clauses are left out.
func CompileUpdate(s UpdateState, p *Placeholders) (string, error) {
	var clauses []string

	if len(s.Set) > 0 {
		parts := make([]string, 0, len(s.Set))
		for _, attr := range sortedKeys(s.Set) {
			entry := s.Set[attr]
			path := p.Name(attr)
			v, err := p.Value(entry.Value)
			if err != nil {
				return "", fmt.Errorf("set %q: %w", attr, err)
			}
			switch {
			case entry.Func != "" && entry.UsePathAsFirstArg:
				parts = append(parts, fmt.Sprintf("%s = %s(%s, %s)", path, entry.Func, path, v))
			case entry.Func != "":
				parts = append(parts, fmt.Sprintf("%s = %s(%s)", path, entry.Func, v))
			default:
				parts = append(parts, path+" = "+v)
			}
		}
		clauses = append(clauses, "SET "+strings.Join(parts, ", "))
	}

	if len(s.Add) > 0 {
		parts, err := pathValuePairs(s.Add, p)
		if err != nil {
			return "", fmt.Errorf("add: %w", err)
		}
		clauses = append(clauses, "ADD "+strings.Join(parts, ", "))
	}

	if len(s.Remove) > 0 {
		parts := make([]string, len(s.Remove))
		for i, attr := range s.Remove {
			parts[i] = p.Name(attr)
		}
		clauses = append(clauses, "REMOVE "+strings.Join(parts, ", "))
	}

	if len(s.Delete) > 0 {
		parts, err := pathValuePairs(s.Delete, p)
		if err != nil {
			return "", fmt.Errorf("delete: %w", err)
		}
		clauses = append(clauses, "DELETE "+strings.Join(parts, ", "))
	}

	return strings.Join(clauses, " "), nil
}

// pathValuePairs renders the operands of ADD and DELETE. Both act on
// numbers and sets only, so slices are sent as SS, NS or BS.
func pathValuePairs(m map[string]any, p *Placeholders) ([]string, error) {
	parts := make([]string, 0, len(m))
	for _, attr := range sortedKeys(m) {
		operand, err := setOperand(m[attr])
		if err != nil {
			return nil, fmt.Errorf("%q: %w", attr, err)
		}
		v, err := p.Value(operand)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", attr, err)
		}
		parts = append(parts, p.Name(attr)+" "+v)
	}
	return parts, nil
}

func setOperand(v any) (types.AttributeValue, error) {
	av, ok := v.(types.AttributeValue)
	if !ok {
		var err error
		if av, err = attributevalue.Marshal(v); err != nil {
			return nil, fmt.Errorf("marshal value of type %T: %w", v, err)
		}
	}
	if _, ok := av.(*types.AttributeValueMemberNULL); ok {
		return nil, fmt.Errorf("empty set")
	}
	list, ok := av.(*types.AttributeValueMemberL)
	if !ok {
		return av, nil
	}
	if len(list.Value) == 0 {
		return nil, fmt.Errorf("empty set")
	}
	switch list.Value[0].(type) {
	case *types.AttributeValueMemberS:
		ss := make([]string, len(list.Value))
		for i, m := range list.Value {
			s, ok := m.(*types.AttributeValueMemberS)
			if !ok {
				return nil, fmt.Errorf("set members must share one type, got %T", m)
			}
			ss[i] = s.Value
		}
		return &types.AttributeValueMemberSS{Value: ss}, nil
	case *types.AttributeValueMemberN:
		ns := make([]string, len(list.Value))
		for i, m := range list.Value {
			n, ok := m.(*types.AttributeValueMemberN)
			if !ok {
				return nil, fmt.Errorf("set members must share one type, got %T", m)
			}
			ns[i] = n.Value
		}
		return &types.AttributeValueMemberNS{Value: ns}, nil
	case *types.AttributeValueMemberB:
		bs := make([][]byte, len(list.Value))
		for i, m := range list.Value {
			b, ok := m.(*types.AttributeValueMemberB)
			if !ok {
				return nil, fmt.Errorf("set members must share one type, got %T", m)
			}
			bs[i] = b.Value
		}
		return &types.AttributeValueMemberBS{Value: bs}, nil
	}
	return nil, fmt.Errorf("set members must be strings, numbers or binary, got %T", list.Value[0])
}
