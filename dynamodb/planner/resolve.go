// Package planner turns a logical condition on an entity into the cheapest
// DynamoDB read that answers it: GetItem, Query or Scan.
package planner

import (
	"fmt"
	"sort"

	"github.com/acksell/dynaplan/dynamodb/entity"
	"github.com/acksell/dynaplan/dynamodb/expr"
	"github.com/acksell/dynaplan/dynamodb/keys"
	"github.com/acksell/dynaplan/dynamodb/table"
)

// AccessPlan is the outcome of key resolution. It is built fresh for every
// request and never modified afterwards.
type AccessPlan struct {
	// Keys maps physical key attribute names to resolved values.
	Keys            map[string]any
	HasPartitionKey bool
	HasSortKey      bool
	// IndexName is empty when the plan targets the table itself.
	IndexName string
	// Consumed lists the logical attributes that produced a key, sorted.
	Consumed []string
}

// Resolve works out which keys of e can be built from provided values and
// the AND-ed equalities of where. Provided values may use logical or
// physical attribute names and take precedence over where. A forcedIndex
// restricts resolution to that index.
//
// An unresolvable key is not an error; it only makes the plan less
// specific. Naming an index the table does not declare is.
func Resolve(e *entity.Entity, where expr.Expression, provided map[string]any, forcedIndex string) (AccessPlan, error) {
	t := e.Table()
	available := availableValues(e, where, provided)
	r := &resolution{plan: AccessPlan{Keys: make(map[string]any)}, consumed: make(map[string]bool)}

	if forcedIndex != "" {
		idx, ok := t.Index(forcedIndex)
		if !ok {
			return AccessPlan{}, fmt.Errorf("%w: %q on table %q", table.ErrUnknownIndex, forcedIndex, t.Name)
		}
		r.resolveIndex(e, idx, provided, available)
		r.plan.IndexName = idx.Name
		return r.finish(), nil
	}

	def := t.KeyDefinitions
	if raw, ok := provided[def.PartitionKey.Name]; ok && raw != nil {
		r.raw(def.PartitionKey.Name, raw)
		r.plan.HasPartitionKey = true
	} else if v, ok := r.strategy(e.Keys().PK, available); ok {
		r.plan.Keys[def.PartitionKey.Name] = v
		r.plan.HasPartitionKey = true
	}

	if r.plan.HasPartitionKey {
		switch {
		case !def.HasSortKey():
			r.plan.HasSortKey = true
		default:
			if raw, ok := provided[def.SortKey.Name]; ok && raw != nil {
				r.raw(def.SortKey.Name, raw)
				r.plan.HasSortKey = true
			} else if v, ok := r.strategy(e.Keys().SK, available); ok {
				r.plan.Keys[def.SortKey.Name] = v
				r.plan.HasSortKey = true
			}
		}
		return r.finish(), nil
	}

	// Declaration order decides between several usable indexes.
	for _, idx := range t.Indexes {
		if r.resolveIndex(e, idx, provided, available) {
			r.plan.IndexName = idx.Name
			break
		}
	}
	return r.finish(), nil
}

type resolution struct {
	plan     AccessPlan
	consumed map[string]bool
}

func (r *resolution) raw(physical string, v any) {
	r.plan.Keys[physical] = v
}

// strategy resolves s and records the attributes it consumed.
func (r *resolution) strategy(s keys.Strategy, available map[string]any) (string, bool) {
	if s == nil {
		return "", false
	}
	v, ok := s.Resolve(available)
	if !ok {
		return "", false
	}
	for _, a := range s.Attributes() {
		r.consumed[a] = true
	}
	return v, true
}

// resolveIndex fills the plan from one index and reports whether its
// partition key resolved. A local index without its own binding shares
// the table's partition key strategy.
func (r *resolution) resolveIndex(e *entity.Entity, idx table.IndexDefinition, provided, available map[string]any) bool {
	def := idx.KeyDefinitions
	bound, hasBinding := e.IndexKeys(idx.Name)
	if !hasBinding && idx.IsLocal() {
		bound = entity.KeyStrategies{PK: e.Keys().PK}
	}

	if raw, ok := rawIndexKey(def.PartitionKey.Name, provided, available); ok {
		r.raw(def.PartitionKey.Name, raw)
	} else if v, ok := r.strategy(bound.PK, available); ok {
		r.plan.Keys[def.PartitionKey.Name] = v
	} else {
		return false
	}
	r.plan.HasPartitionKey = true

	if !def.HasSortKey() {
		return true
	}
	if raw, ok := rawIndexKey(def.SortKey.Name, provided, available); ok {
		r.raw(def.SortKey.Name, raw)
		r.plan.HasSortKey = true
	} else if v, ok := r.strategy(bound.SK, available); ok {
		r.plan.Keys[def.SortKey.Name] = v
		r.plan.HasSortKey = true
	}
	return true
}

// rawIndexKey looks an index key up by its physical name, in provided
// values first and then in the where equalities.
func rawIndexKey(name string, provided, available map[string]any) (any, bool) {
	if raw, ok := provided[name]; ok && raw != nil {
		return raw, true
	}
	raw, ok := available[name]
	return raw, ok && raw != nil
}

func (r *resolution) finish() AccessPlan {
	r.plan.Consumed = make([]string, 0, len(r.consumed))
	for a := range r.consumed {
		r.plan.Consumed = append(r.plan.Consumed, a)
	}
	sort.Strings(r.plan.Consumed)
	return r.plan
}

// availableValues merges provided values (logical names first, then
// physical names mapped back to logical) with the equalities of where.
func availableValues(e *entity.Entity, where expr.Expression, provided map[string]any) map[string]any {
	out := make(map[string]any, len(provided))
	for k, v := range provided {
		if _, ok := e.Attribute(k); ok {
			out[k] = v
		}
	}
	for k, v := range provided {
		logical := e.LogicalName(k)
		if _, ok := out[logical]; !ok {
			out[logical] = v
		}
	}
	for k, v := range expr.Equalities(where) {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return out
}
