package relational

import (
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/acksell/dynaplan/dynamodb/entity"
	"github.com/acksell/dynaplan/dynamodb/expr"
	"github.com/acksell/dynaplan/dynamodb/keys"
)

// ItemCollectionParser turns the flat items of one partition into root
// items with their co-located relations attached.
type ItemCollectionParser struct {
	registry *entity.Registry
}

func NewItemCollectionParser(r *entity.Registry) *ItemCollectionParser {
	return &ItemCollectionParser{registry: r}
}

// Parse classifies every item by the entity of the root's table whose keys
// match it best, keeps the root entity and the targets of the requested
// relations, and groups the targets under each root item.
// Items are kept in the order they were read. A relation is only set on
// a root item when at least one item of the collection belongs to it.
//
// Include.Where and Include.Limit are applied to the grouped items;
// nested Include.With is left to the caller.
func (p *ItemCollectionParser) Parse(items []map[string]types.AttributeValue, root string, with map[string]*Include) ([]Item, error) {
	rootEntity, err := p.registry.Get(root)
	if err != nil {
		return nil, err
	}
	rels, err := p.relations(rootEntity, with)
	if err != nil {
		return nil, err
	}

	// Every entity of the table competes for an item, so one that merely
	// shares a key prefix with a requested target is not taken for it.
	// Ties go to the root and the requested targets.
	candidates := []*entity.Entity{rootEntity}
	for _, r := range rels {
		candidates = appendEntity(candidates, r.target)
	}
	for _, e := range p.registry.Entities() {
		if e.Table().Name == rootEntity.Table().Name {
			candidates = appendEntity(candidates, e)
		}
	}

	var (
		roots    []Item
		children = make(map[string][]Item, len(rels))
	)
	for _, raw := range items {
		e := classify(raw, candidates)
		if e == nil {
			continue
		}
		values, err := e.ToLogical(raw)
		if err != nil {
			return nil, err
		}
		if e == rootEntity {
			roots = append(roots, values)
		}
		for _, r := range rels {
			if r.target == e {
				children[r.relation.Name] = append(children[r.relation.Name], values)
			}
		}
	}

	for _, parent := range roots {
		for _, r := range rels {
			var matched []Item
			for _, child := range children[r.relation.Name] {
				if !belongs(parent, child, r.relation) || !expr.Match(r.include.Where, child) {
					continue
				}
				matched = append(matched, child)
				if r.include.Limit > 0 && len(matched) == r.include.Limit {
					break
				}
			}
			if len(matched) == 0 {
				continue
			}
			if r.relation.Cardinality == entity.One {
				parent[r.relation.Name] = matched[0]
			} else {
				parent[r.relation.Name] = matched
			}
		}
	}
	return roots, nil
}

type requested struct {
	relation entity.Relation
	target   *entity.Entity
	include  *Include
}

// relations resolves the requested relations whose target lives in the
// same table as the root, sorted by name.
func (p *ItemCollectionParser) relations(root *entity.Entity, with map[string]*Include) ([]requested, error) {
	names := make([]string, 0, len(with))
	for n := range with {
		names = append(names, n)
	}
	sort.Strings(names)

	out := make([]requested, 0, len(names))
	for _, n := range names {
		rel, ok := root.Relation(n)
		if !ok {
			return nil, fmt.Errorf("entity %q: %w %q", root.Name(), ErrUnknownRelation, n)
		}
		target, err := p.registry.Get(rel.Target)
		if err != nil {
			return nil, fmt.Errorf("entity %q relation %q: %w", root.Name(), n, err)
		}
		if target.Table().Name != root.Table().Name {
			continue
		}
		out = append(out, requested{relation: rel, target: target, include: with[n].orEmpty()})
	}
	return out, nil
}

// classify returns the candidate whose key strategies match the item most
// specifically, or nil. Ties go to the earlier candidate.
func classify(item map[string]types.AttributeValue, candidates []*entity.Entity) *entity.Entity {
	var (
		best      *entity.Entity
		bestScore = -1
	)
	for _, c := range candidates {
		def := c.Table().KeyDefinitions
		ks := c.Keys()
		pk, ok := keyString(item[def.PartitionKey.Name])
		if !ok || !ks.PK.Matches(pk) {
			continue
		}
		score := keys.Specificity(ks.PK)
		if def.HasSortKey() {
			sk, ok := keyString(item[def.SortKey.Name])
			if !ok || ks.SK == nil || !ks.SK.Matches(sk) {
				continue
			}
			score += keys.Specificity(ks.SK)
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

func appendEntity(list []*entity.Entity, e *entity.Entity) []*entity.Entity {
	for _, have := range list {
		if have == e {
			return list
		}
	}
	return append(list, e)
}

func keyString(av types.AttributeValue) (string, bool) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value, true
	case *types.AttributeValueMemberN:
		return v.Value, true
	}
	return "", false
}

// belongs reports whether child can belong to parent: every mapped field
// present on both sides must agree.
func belongs(parent, child Item, rel entity.Relation) bool {
	for from, to := range rel.Fields {
		pv, ok := parent[from]
		if !ok {
			continue
		}
		cv, ok := child[to]
		if !ok {
			continue
		}
		ps, pok := keys.ToString(pv)
		cs, cok := keys.ToString(cv)
		if pok && cok && ps != cs {
			return false
		}
	}
	return true
}
