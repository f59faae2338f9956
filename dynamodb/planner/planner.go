package planner

import (
	"context"
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/acksell/dynaplan/dynamodb/ddbiface"
	"github.com/acksell/dynaplan/dynamodb/entity"
	"github.com/acksell/dynaplan/dynamodb/expr"
	"github.com/acksell/dynaplan/dynamodb/keys"
	"github.com/acksell/dynaplan/dynamodb/table"
)

// Planner plans and executes reads of entities.
type Planner struct {
	client ddbiface.AWSDynamoClientV2
	logger *zap.Logger
}

// New returns a planner sending requests through client, which should
// already carry the retry policy (see ddbsdk.Client.Transport).
func New(client ddbiface.AWSDynamoClientV2, opts ...Option) *Planner {
	p := &Planner{client: client, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Explanation is a fully compiled request, ready to send. Explain returns
// it without talking to DynamoDB.
type Explanation struct {
	Entity string
	Table  string
	Plan   AccessPlan
	Path   Path

	// Key is the exact item key of a GetItem.
	Key map[string]types.AttributeValue
	// Residual is evaluated on the client after a GetItem; it holds the
	// predicates of the condition that the key does not already imply.
	Residual expr.Expression

	KeyCondition string
	Filter       string
	Projection   string
	Names        map[string]string
	Values       map[string]types.AttributeValue

	ConsistentRead bool
	Descending     bool
	Limit          int
	PageSize       int32

	// owner drops Query and Scan items that belong to other entities of
	// the table. Nil keeps every item.
	owner *entity.Entity
	// keysAdded are table key attributes projected only so owner can
	// check them.
	keysAdded []string
}

// Explain plans a read of e without executing it.
func (p *Planner) Explain(e *entity.Entity, where expr.Expression, opts ...FindOption) (Explanation, error) {
	o := defaultFindOpts()
	for _, opt := range opts {
		opt(&o)
	}
	return explain(e, where, o)
}

func explain(e *entity.Entity, where expr.Expression, o findOpts) (Explanation, error) {
	plan, err := Resolve(e, where, o.values, o.index)
	if err != nil {
		return Explanation{}, err
	}
	t := e.Table()
	ex := Explanation{
		Entity:     e.Name(),
		Table:      t.Name,
		Plan:       plan,
		Path:       SelectPath(plan),
		Descending: o.descending,
		Limit:      o.limit,
		PageSize:   o.pageSize,
		owner:      e,
	}

	ph := expr.NewPlaceholders()
	physicalWhere := expr.Rename(where, e.PhysicalName)
	excluded := make(map[string]bool, len(plan.Keys)+len(plan.Consumed))
	for k := range plan.Keys {
		excluded[k] = true
	}
	for _, c := range plan.Consumed {
		excluded[e.PhysicalName(c)] = true
	}

	switch ex.Path {
	case PathGetItem:
		key, err := keyValues(t.KeyDefinitions, plan)
		if err != nil {
			return Explanation{}, err
		}
		ex.Key = key
		logicalExcluded := make(map[string]bool, len(excluded))
		for k := range excluded {
			logicalExcluded[e.LogicalName(k)] = true
		}
		for _, c := range plan.Consumed {
			logicalExcluded[c] = true
		}
		ex.Residual = expr.Without(where, logicalExcluded)
		ex.ConsistentRead = o.consistent
	case PathQuery:
		defs := t.KeyDefinitions
		if plan.IndexName != "" {
			idx, _ := t.Index(plan.IndexName)
			defs = idx.KeyDefinitions
		}
		key, err := keyValues(defs, plan)
		if err != nil {
			return Explanation{}, err
		}
		pkName := defs.PartitionKey.Name
		if _, ok := key[defs.SortKey.Name]; ok && defs.HasSortKey() {
			ex.KeyCondition, err = expr.KeyCondition(ph, pkName, key[pkName], defs.SortKey.Name, key[defs.SortKey.Name])
		} else if prefix := sortKeyPrefix(e, plan.IndexName, defs, availableValues(e, where, o.values)); prefix != "" {
			ex.KeyCondition, err = expr.KeyConditionPrefix(ph, pkName, key[pkName], defs.SortKey.Name, prefix)
		} else {
			ex.KeyCondition, err = expr.KeyCondition(ph, pkName, key[pkName], "", nil)
		}
		if err != nil {
			return Explanation{}, fmt.Errorf("key condition: %w", err)
		}
		if ex.Filter, err = expr.Compile(physicalWhere, ph, excluded); err != nil {
			return Explanation{}, fmt.Errorf("filter: %w", err)
		}
		ex.ConsistentRead = o.consistent && plan.IndexName == ""
	case PathScan:
		if ex.Filter, err = expr.Compile(physicalWhere, ph, nil); err != nil {
			return Explanation{}, fmt.Errorf("filter: %w", err)
		}
		ex.ConsistentRead = o.consistent && plan.IndexName == ""
	}

	if len(o.projection) > 0 {
		physical := make([]string, len(o.projection))
		for i, a := range o.projection {
			physical[i] = e.PhysicalName(a)
		}
		if ex.Path != PathGetItem {
			for _, k := range t.KeyDefinitions.Names() {
				if !slices.Contains(physical, k) {
					physical = append(physical, k)
					ex.keysAdded = append(ex.keysAdded, k)
				}
			}
		}
		ex.Projection = ph.Projection(physical...)
	}
	ex.Names = ph.Names()
	ex.Values = ph.Values()
	return ex, nil
}

// sortKeyPrefix is the part of e's sort key that values determine, used to
// narrow a partition query to e's items. It is empty when the key is not a
// string or e binds no sort key strategy for it.
func sortKeyPrefix(e *entity.Entity, index string, defs table.PrimaryKeyDefinition, values map[string]any) string {
	if !defs.HasSortKey() || (defs.SortKey.Kind != "" && defs.SortKey.Kind != table.KeyKindS) {
		return ""
	}
	sk := e.Keys().SK
	if index != "" {
		bound, ok := e.IndexKeys(index)
		if !ok {
			return ""
		}
		sk = bound.SK
	}
	if sk == nil {
		return ""
	}
	return keys.PartialPrefix(sk, values)
}

// keyValues marshals the plan's values for the key attributes of defs.
func keyValues(defs table.PrimaryKeyDefinition, plan AccessPlan) (map[string]types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue, 2)
	for _, def := range []table.KeyDef{defs.PartitionKey, defs.SortKey} {
		if def.Name == "" {
			continue
		}
		v, ok := plan.Keys[def.Name]
		if !ok {
			continue
		}
		av, err := table.MarshalKeyValue(def, v)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", def.Name, err)
		}
		out[def.Name] = av
	}
	return out, nil
}

// Find plans and executes a read of e, returning logical items.
func (p *Planner) Find(ctx context.Context, e *entity.Entity, where expr.Expression, opts ...FindOption) ([]map[string]any, error) {
	ex, err := p.Explain(e, where, opts...)
	if err != nil {
		return nil, err
	}
	raw, err := p.Execute(ctx, ex)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		values, err := e.ToLogical(item)
		if err != nil {
			return nil, err
		}
		for _, k := range ex.keysAdded {
			delete(values, e.LogicalName(k))
		}
		if ex.Path == PathGetItem && !expr.Match(ex.Residual, values) {
			continue
		}
		out = append(out, values)
	}
	return out, nil
}

// Execute sends an explained request and returns the raw items, following
// pagination until the limit is reached or the results run out.
func (p *Planner) Execute(ctx context.Context, ex Explanation) ([]map[string]types.AttributeValue, error) {
	p.logger.Debug("executing access plan",
		zap.String("entity", ex.Entity),
		zap.String("path", string(ex.Path)),
		zap.String("index", ex.Plan.IndexName))

	switch ex.Path {
	case PathGetItem:
		return p.getItem(ctx, ex)
	case PathQuery:
		return p.paginate(ctx, ex, func(start map[string]types.AttributeValue) ([]map[string]types.AttributeValue, map[string]types.AttributeValue, error) {
			out, err := p.client.Query(ctx, &dynamodb.QueryInput{
				TableName:                 &ex.Table,
				IndexName:                 optional(ex.Plan.IndexName),
				KeyConditionExpression:    &ex.KeyCondition,
				FilterExpression:          optional(ex.Filter),
				ProjectionExpression:      optional(ex.Projection),
				ExpressionAttributeNames:  ex.Names,
				ExpressionAttributeValues: ex.Values,
				ConsistentRead:            consistency(ex),
				ScanIndexForward:          ptr(!ex.Descending),
				Limit:                     pageLimit(ex),
				ExclusiveStartKey:         start,
			})
			if err != nil {
				return nil, nil, fmt.Errorf("query %q: %w", ex.Table, err)
			}
			return out.Items, out.LastEvaluatedKey, nil
		})
	case PathScan:
		p.logger.Warn("no key resolved, scanning",
			zap.String("entity", ex.Entity),
			zap.String("table", ex.Table),
			zap.String("index", ex.Plan.IndexName))
		return p.paginate(ctx, ex, func(start map[string]types.AttributeValue) ([]map[string]types.AttributeValue, map[string]types.AttributeValue, error) {
			out, err := p.client.Scan(ctx, &dynamodb.ScanInput{
				TableName:                 &ex.Table,
				IndexName:                 optional(ex.Plan.IndexName),
				FilterExpression:          optional(ex.Filter),
				ProjectionExpression:      optional(ex.Projection),
				ExpressionAttributeNames:  ex.Names,
				ExpressionAttributeValues: ex.Values,
				ConsistentRead:            consistency(ex),
				Limit:                     pageLimit(ex),
				ExclusiveStartKey:         start,
			})
			if err != nil {
				return nil, nil, fmt.Errorf("scan %q: %w", ex.Table, err)
			}
			return out.Items, out.LastEvaluatedKey, nil
		})
	}
	return nil, fmt.Errorf("unknown access path %q", ex.Path)
}

func (p *Planner) getItem(ctx context.Context, ex Explanation) ([]map[string]types.AttributeValue, error) {
	out, err := p.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                &ex.Table,
		Key:                      ex.Key,
		ProjectionExpression:     optional(ex.Projection),
		ExpressionAttributeNames: ex.Names,
		ConsistentRead:           &ex.ConsistentRead,
	})
	if err != nil {
		return nil, fmt.Errorf("get item %q: %w", ex.Table, err)
	}
	if out.Item == nil {
		return nil, nil
	}
	return []map[string]types.AttributeValue{out.Item}, nil
}

type pageFunc func(start map[string]types.AttributeValue) (items []map[string]types.AttributeValue, next map[string]types.AttributeValue, err error)

func (p *Planner) paginate(ctx context.Context, ex Explanation, page pageFunc) ([]map[string]types.AttributeValue, error) {
	var (
		all   []map[string]types.AttributeValue
		start map[string]types.AttributeValue
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		items, next, err := page(start)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if ex.owner == nil || ex.owner.Owns(item) {
				all = append(all, item)
			}
		}
		if ex.Limit > 0 && len(all) >= ex.Limit {
			return all[:ex.Limit], nil
		}
		if len(next) == 0 {
			return all, nil
		}
		start = next
	}
}

func pageLimit(ex Explanation) *int32 {
	switch {
	case ex.PageSize > 0:
		return &ex.PageSize
	case ex.Limit > 0 && ex.Filter == "":
		return ptr(int32(ex.Limit))
	}
	return nil
}

func consistency(ex Explanation) *bool {
	if !ex.ConsistentRead {
		return nil
	}
	return ptr(true)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func ptr[T any](v T) *T { return &v }
